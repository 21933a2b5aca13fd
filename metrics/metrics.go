// Package metrics exposes trial bot counters to prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Pool reports current pool sizes for the gauges.
type Pool interface {
	CountUnused() int
	CountIssued() int
}

type Metrics struct {
	Registry      *prometheus.Registry
	TrialRequests *prometheus.CounterVec
	AdminActions  *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New(pool Pool) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		TrialRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trialbot",
			Name:      "trial_requests_total",
			Help:      "Trial code requests by outcome.",
		}, []string{"outcome"}),
		AdminActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trialbot",
			Name:      "admin_actions_total",
			Help:      "Management panel actions by action id.",
		}, []string{"action"}),
	}

	m.Registry.MustRegister(
		m.TrialRequests,
		m.AdminActions,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "trialbot",
			Name:      "unused_codes",
			Help:      "Codes left in the pool.",
		}, func() float64 { return float64(pool.CountUnused()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "trialbot",
			Name:      "issued_codes",
			Help:      "Users holding an issued code.",
		}, func() float64 { return float64(pool.CountIssued()) }),
	)
	return m
}

// TrialRequest counts one trial request outcome. Safe on a nil receiver.
func (m *Metrics) TrialRequest(outcome string) {
	if m == nil {
		return
	}
	m.TrialRequests.WithLabelValues(outcome).Inc()
}

// AdminAction counts one management action. Safe on a nil receiver.
func (m *Metrics) AdminAction(action string) {
	if m == nil {
		return
	}
	m.AdminActions.WithLabelValues(action).Inc()
}
