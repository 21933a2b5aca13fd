package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"DISCORD_TOKEN", "TRIAL_CHANNEL_ID", "TRIAL_MESSAGE_ID", "MANAGEMENT_CHANNEL_ID",
	"MANAGEMENT_MESSAGE_ID", "TRIAL_WHITELIST", "DATA_DIR", "BACKUP_DIR",
	"RATE_LIMIT_MAX_ATTEMPTS", "RATE_LIMIT_WINDOW", "BLACKLIST_DURATION",
	"UPLOAD_TIMEOUT", "STATUS_ADDR",
}

// clearEnv blanks every key for the test; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, filepath.Join("data", "backups"), cfg.BackupDir)
	assert.Equal(t, 5, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, time.Hour, cfg.RateLimit.BlacklistDuration)
	assert.Equal(t, 30*time.Second, cfg.UploadTimeout)
	assert.Empty(t, cfg.Whitelist)
	assert.Error(t, cfg.Validate())
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"DISCORD_TOKEN=abc\nTRIAL_WHITELIST=1, 2,,1\nRATE_LIMIT_WINDOW=90\nBLACKLIST_DURATION=2h\nDATA_DIR=/srv/bot\n",
	), 0o644))
	t.Setenv("STATUS_ADDR", ":9090")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "abc", cfg.DiscordToken)
	assert.Equal(t, []string{"1", "2"}, cfg.Whitelist)
	assert.Equal(t, 90*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 2*time.Hour, cfg.RateLimit.BlacklistDuration)
	assert.Equal(t, "/srv/bot", cfg.DataDir)
	assert.Equal(t, "/srv/bot/backups", cfg.BackupDir)
	assert.Equal(t, ":9090", cfg.StatusAddr)
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_MAX_ATTEMPTS", "zero")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "RATE_LIMIT_MAX_ATTEMPTS")

	clearEnv(t)
	t.Setenv("UPLOAD_TIMEOUT", "-5s")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "UPLOAD_TIMEOUT")
}

func TestUpdateEnvFile(t *testing.T) {
	t.Setenv("TRIAL_MESSAGE_ID", "")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DISCORD_TOKEN=abc\nTRIAL_MESSAGE_ID=old\n"), 0o644))

	require.NoError(t, UpdateEnvFile(path, map[string]string{"TRIAL_MESSAGE_ID": "123"}))

	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"DISCORD_TOKEN": "abc", "TRIAL_MESSAGE_ID": "123"}, env)
	assert.Equal(t, "123", os.Getenv("TRIAL_MESSAGE_ID"))
}

func TestUpdateEnvFileCreatesFile(t *testing.T) {
	t.Setenv("MANAGEMENT_MESSAGE_ID", "")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, UpdateEnvFile(path, map[string]string{"MANAGEMENT_MESSAGE_ID": "9"}))

	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "9", env["MANAGEMENT_MESSAGE_ID"])
}
