package keystore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tez-capital/trialbot/logging"
)

func TestBackupNamesSortByTime(t *testing.T) {
	early := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	late := early.Add(9 * time.Hour)
	assert.Less(t, backupName(early), backupName(late))
	assert.Less(t, backupName(late), backupName(late.Add(time.Nanosecond)))
}

func TestBackupsLatest(t *testing.T) {
	dir := t.TempDir()
	b := NewBackups(dir, logging.Discard())

	_, ok := b.Latest()
	assert.False(t, ok)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	b.Write(Snapshot{Timestamp: base, UnusedKeys: []string{"old"}})
	b.Write(Snapshot{Timestamp: base.Add(time.Minute), UnusedKeys: []string{"new"}, UsedKeys: map[string]string{"u": "c"}})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	s, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, []string{"new"}, s.UnusedKeys)
	assert.Equal(t, "c", s.UsedKeys["u"])
	assert.True(t, s.Timestamp.Equal(base.Add(time.Minute)))
}

func TestBackupsSameStampKeepsBoth(t *testing.T) {
	dir := t.TempDir()
	b := NewBackups(dir, logging.Discard())

	stamp := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	b.Write(Snapshot{Timestamp: stamp, UnusedKeys: []string{"first"}})
	b.Write(Snapshot{Timestamp: stamp, UnusedKeys: []string{"second"}})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	s, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, []string{"second"}, s.UnusedKeys)
}

func TestBackupsLatestUnparsable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, backupName(time.Now())), []byte("garbage"), 0o644))
	_, ok := NewBackups(dir, logging.Discard()).Latest()
	assert.False(t, ok)
}

func TestOpenRestoresFromBackup(t *testing.T) {
	data := t.TempDir()
	backups := filepath.Join(data, "backups")

	ks := Open(data, backups, logging.Discard())
	ks.Codes.AddMany([]string{"A", "B", "C"})
	ks.SecondChances.Grant("u2")
	_, _ = ks.Codes.TakeOneFor("u1")

	snap, ok := ks.Backups.Latest()
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, snap.UnusedKeys)
	assert.Equal(t, map[string]string{"u1": "C"}, snap.UsedKeys)
	assert.Equal(t, []string{"u2"}, snap.SecondChances)

	// Lose the primary pool file; the backup refills it.
	require.NoError(t, os.Remove(filepath.Join(data, UnusedCodesFile)))
	again := Open(data, backups, logging.Discard())
	assert.Equal(t, []string{"A", "B"}, again.Codes.ListUnused())
}

func TestOpenKeepsNonEmptyPool(t *testing.T) {
	data := t.TempDir()
	backups := filepath.Join(data, "backups")

	ks := Open(data, backups, logging.Discard())
	ks.Codes.AddMany([]string{"A", "B"})
	ks.Codes.Delete("A") // no backup for deletes

	again := Open(data, backups, logging.Discard())
	assert.Equal(t, []string{"B"}, again.Codes.ListUnused())
}
