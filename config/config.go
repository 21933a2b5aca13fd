package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"github.com/tez-capital/trialbot/ratelimit"
)

// Config holds runtime configuration with defaults for local use.
type Config struct {
	DiscordToken string

	TrialChannelID      string
	TrialMessageID      string
	ManagementChannelID string
	ManagementMessageID string

	Whitelist []string

	DataDir   string // state files (default ./data)
	BackupDir string // snapshots (default <DataDir>/backups)
	EnvFile   string // rewritten when panel messages are re-posted (default .env)

	RateLimit     ratelimit.Config
	UploadTimeout time.Duration // wait for a key file upload (default 30s)
	StatusAddr    string        // status server address; empty disables it
}

// Load reads the environment after loading envFile (variables already set win).
// A missing envFile is not an error.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	cfg := Config{
		DiscordToken:        strings.TrimSpace(os.Getenv("DISCORD_TOKEN")),
		TrialChannelID:      strings.TrimSpace(os.Getenv("TRIAL_CHANNEL_ID")),
		TrialMessageID:      strings.TrimSpace(os.Getenv("TRIAL_MESSAGE_ID")),
		ManagementChannelID: strings.TrimSpace(os.Getenv("MANAGEMENT_CHANNEL_ID")),
		ManagementMessageID: strings.TrimSpace(os.Getenv("MANAGEMENT_MESSAGE_ID")),
		Whitelist:           splitCSV(os.Getenv("TRIAL_WHITELIST")),
		DataDir:             filepath.Clean(dataDir),
		BackupDir:           filepath.Clean(getEnvOrDefault("BACKUP_DIR", filepath.Join(dataDir, "backups"))),
		EnvFile:             envFile,
		StatusAddr:          strings.TrimSpace(os.Getenv("STATUS_ADDR")),
	}

	var err error
	def := ratelimit.DefaultConfig()
	if cfg.RateLimit.MaxAttempts, err = getEnvInt("RATE_LIMIT_MAX_ATTEMPTS", def.MaxAttempts); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.Window, err = getEnvDuration("RATE_LIMIT_WINDOW", def.Window); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.BlacklistDuration, err = getEnvDuration("BLACKLIST_DURATION", def.BlacklistDuration); err != nil {
		return Config{}, err
	}
	if cfg.UploadTimeout, err = getEnvDuration("UPLOAD_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks what the bot needs to connect.
func (c Config) Validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("missing required environment variable: DISCORD_TOKEN")
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: want a positive integer, got %q", key, v)
	}
	return n, nil
}

// getEnvDuration accepts Go durations ("90s", "1h") or plain seconds ("60").
func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: want a positive duration, got %q", key, v)
	}
	return d, nil
}

func splitCSV(v string) []string {
	parts := lo.Map(strings.Split(v, ","), func(p string, _ int) string { return strings.TrimSpace(p) })
	return lo.Uniq(lo.Compact(parts))
}
