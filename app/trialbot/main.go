package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/tez-capital/trialbot/config"
	"github.com/tez-capital/trialbot/logging"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "trialbot",
		Usage: "hand out single-use trial codes on Discord",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded at startup and updated with panel message ids",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "directory holding the state files (overrides DATA_DIR)",
			},
			&cli.StringFlag{
				Name:  "backup-dir",
				Usage: "directory holding backup snapshots (overrides BACKUP_DIR)",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			keysCommand(),
			backupCommand(),
		},
	}
}

// loadConfig reads the env file and applies the directory flags.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	root := cmd.Root()
	cfg, err := config.Load(root.String("env-file"))
	if err != nil {
		return config.Config{}, err
	}
	if dir := root.String("data-dir"); dir != "" {
		cfg.DataDir = filepath.Clean(dir)
		if root.String("backup-dir") == "" && os.Getenv("BACKUP_DIR") == "" {
			cfg.BackupDir = filepath.Join(cfg.DataDir, "backups")
		}
	}
	if dir := root.String("backup-dir"); dir != "" {
		cfg.BackupDir = filepath.Clean(dir)
	}
	return cfg, nil
}

// newLogger builds the process logger; the bot also logs to a file in the data dir.
func newLogger(dataDir string, toFile bool) (*slog.Logger, func()) {
	logCfg := logging.NewConfigFromEnv()
	if logCfg.File == "" && toFile {
		logCfg.File = filepath.Join(dataDir, "trialbot.log")
	}
	l, w := logging.New(logCfg)
	if logCfg.File != "" {
		l.Debug("logging to file", "path", logging.CurrentFile())
	}
	return l, func() {
		if w != nil {
			_ = w.Close()
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		slog.Error("trialbot failed", "err", err)
		stop()
		os.Exit(1)
	}
}
