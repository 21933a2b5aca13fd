package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tez-capital/trialbot/keystore"
	"github.com/tez-capital/trialbot/metrics"
)

func newStatusApp(ks *keystore.Keystore, m *metrics.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"unused":         ks.Codes.CountUnused(),
			"issued":         ks.Codes.CountIssued(),
			"second_chances": len(ks.SecondChances.Users()),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	return app
}

// serveStatus runs the status server until ctx is cancelled.
func serveStatus(ctx context.Context, addr string, app *fiber.App, l *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() { errCh <- app.Listen(addr) }()
	l.Info("status server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return app.ShutdownWithTimeout(5 * time.Second)
	}
}
