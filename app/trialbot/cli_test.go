package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tez-capital/trialbot/keystore"
	"github.com/tez-capital/trialbot/logging"
)

func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	full := append([]string{"trialbot",
		"--env-file", filepath.Join(dir, "missing.env"),
		"--data-dir", dir,
		"--backup-dir", filepath.Join(dir, "backups"),
	}, args...)
	err := app.Run(context.Background(), full)
	return buf.String(), err
}

func TestKeysAddListDelete(t *testing.T) {
	dir := t.TempDir()

	got, err := runCLI(t, dir, "keys", "add", "A", "B", "A")
	require.NoError(t, err)
	assert.Equal(t, "added A\nadded B\nexists A\n", got)

	got, err = runCLI(t, dir, "keys", "list")
	require.NoError(t, err)
	assert.Equal(t, "A\nB\n", got)

	_, err = runCLI(t, dir, "keys", "delete", "A")
	require.NoError(t, err)
	_, err = runCLI(t, dir, "keys", "delete", "A")
	assert.ErrorContains(t, err, "key not found")

	ks := keystore.Open(dir, filepath.Join(dir, "backups"), logging.Discard())
	assert.Equal(t, []string{"B"}, ks.Codes.ListUnused())
}

func TestKeysImportAndWipe(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "keys.txt")
	require.NoError(t, os.WriteFile(file, []byte("X, X\nY\n\n"), 0o644))

	got, err := runCLI(t, dir, "keys", "import", file)
	require.NoError(t, err)
	assert.Equal(t, "added 3 keys\n", got)

	got, err = runCLI(t, dir, "keys", "wipe", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "wiped 3 unused keys\n", got)

	got, err = runCLI(t, dir, "backup", "latest")
	require.NoError(t, err)
	assert.Contains(t, got, "0 unused, 0 used, 0 second chances")
}

func TestKeysGenerateAdd(t *testing.T) {
	dir := t.TempDir()
	got, err := runCLI(t, dir, "keys", "generate", "--count", "3", "--prefix", "T-", "--add")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(got), "\n")
	require.Len(t, lines, 4)
	for _, l := range lines[:3] {
		assert.True(t, strings.HasPrefix(l, "T-"), l)
	}
	assert.Equal(t, "added 3 keys", lines[3])
}

func TestKeysStatsAndSecondChance(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, dir, "keys", "add", "A")
	require.NoError(t, err)

	got, err := runCLI(t, dir, "keys", "second-chance", "42")
	require.NoError(t, err)
	assert.Equal(t, "granted second chance to 42\n", got)

	got, err = runCLI(t, dir, "keys", "stats")
	require.NoError(t, err)
	assert.Contains(t, got, "Available Keys")
	assert.Contains(t, got, "Second Chances")
}

func TestBackupLatestMissing(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "backup", "latest")
	assert.ErrorContains(t, err, "no readable backup")
}

func TestGenerateCodes(t *testing.T) {
	codes, err := generateCodes(bytes.NewReader(make([]byte, 20)), 2, "TRIAL-")
	require.NoError(t, err)
	// Ten zero bytes encode to ten leading '1's in base58.
	assert.Equal(t, []string{"TRIAL-1111111111", "TRIAL-1111111111"}, codes)

	_, err = generateCodes(bytes.NewReader(make([]byte, 5)), 1, "")
	assert.Error(t, err)
	_, err = generateCodes(bytes.NewReader(nil), 0, "")
	assert.Error(t, err)
}
