package main

import (
	"context"
	"errors"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/tez-capital/trialbot/bot"
	"github.com/tez-capital/trialbot/keystore"
	"github.com/tez-capital/trialbot/logging"
	"github.com/tez-capital/trialbot/metrics"
	"github.com/tez-capital/trialbot/ratelimit"
	"github.com/tez-capital/trialbot/trial"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "connect to Discord and serve the trial and management panels",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			l, closeLog := newLogger(cfg.DataDir, true)
			defer closeLog()

			ks := keystore.Open(cfg.DataDir, cfg.BackupDir, l)
			limiter := ratelimit.Open(cfg.DataDir, cfg.RateLimit, time.Now(), l)
			m := metrics.New(ks.Codes)
			policy := trial.NewPolicy(ks.Codes, ks.SecondChances, cfg.Whitelist)
			handler := bot.NewHandler(ks, policy, limiter, bot.Options{
				ManagementChannelID: cfg.ManagementChannelID,
				UploadTimeout:       cfg.UploadTimeout,
				Metrics:             m,
			}, l)

			l.Info("trial bot starting",
				"data_dir", cfg.DataDir,
				"unused", ks.Codes.CountUnused(),
				"issued", ks.Codes.CountIssued(),
				"whitelist", len(cfg.Whitelist),
			)

			discord, err := newDiscordBot(cfg, handler, l)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return discord.run(gctx) })
			if cfg.StatusAddr != "" {
				g.Go(func() error { return serveStatus(gctx, cfg.StatusAddr, newStatusApp(ks, m), l) })
			}

			err = g.Wait()
			if err != nil && !errors.Is(err, context.Canceled) {
				logging.Fatal(l, "trial bot stopped", "err", err)
				return err
			}
			l.Info("trial bot stopped")
			return nil
		},
	}
}
