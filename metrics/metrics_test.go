package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type fakePool struct{ unused, issued int }

func (p fakePool) CountUnused() int { return p.unused }
func (p fakePool) CountIssued() int { return p.issued }

func TestCounters(t *testing.T) {
	m := New(fakePool{unused: 7, issued: 2})
	m.TrialRequest("granted")
	m.TrialRequest("granted")
	m.AdminAction("wipe-keys")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TrialRequests.WithLabelValues("granted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdminActions.WithLabelValues("wipe-keys")))

	families, err := m.Registry.Gather()
	assert.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "trialbot_unused_codes")
	assert.Contains(t, names, "trialbot_issued_codes")

	var nilMetrics *Metrics
	nilMetrics.TrialRequest("granted")
}
