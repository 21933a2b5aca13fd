package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	backupPrefix = "backup-"
	backupExt    = ".json"
	// Fixed width so file names sort in time order.
	backupStamp = "20060102T150405.000000000Z"
	// Name collisions are resolved by stepping the stamp forward one nanosecond.
	maxNameAttempts = 100
)

// Snapshot is one point-in-time dump of all trial code state.
type Snapshot struct {
	Timestamp     time.Time         `json:"timestamp"`
	UnusedKeys    []string          `json:"unusedKeys"`
	UsedKeys      map[string]string `json:"usedKeys"`
	SecondChances []string          `json:"secondChances"`
}

// Backups writes one snapshot file per mutation into dir.
type Backups struct {
	dir string
	now func() time.Time
	log *slog.Logger
}

func NewBackups(dir string, l *slog.Logger) *Backups {
	return &Backups{dir: dir, now: time.Now, log: l}
}

func backupName(ts time.Time) string {
	return backupPrefix + ts.UTC().Format(backupStamp) + backupExt
}

// Write stores s under a new timestamped name. Failures are logged only.
func (b *Backups) Write(s Snapshot) {
	if s.Timestamp.IsZero() {
		s.Timestamp = b.now()
	}
	if err := b.write(s); err != nil {
		b.log.Error("write backup", "err", err)
		return
	}
	b.log.Debug("backup written", "unused", len(s.UnusedKeys), "used", len(s.UsedKeys))
}

func (b *Backups) write(s Snapshot) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	ts := s.Timestamp
	for range maxNameAttempts {
		path := filepath.Join(b.dir, backupName(ts))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			ts = ts.Add(time.Nanosecond)
			continue
		}
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		return f.Close()
	}
	return fmt.Errorf("no free backup name near %s", backupName(s.Timestamp))
}

// Latest parses the newest snapshot. It reports false when there is none or
// it cannot be read.
func (b *Backups) Latest() (Snapshot, bool) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			b.log.Warn("list backups", "dir", b.dir, "err", err)
		}
		return Snapshot{}, false
	}

	names := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		n := e.Name()
		return n, !e.IsDir() && strings.HasPrefix(n, backupPrefix) && strings.HasSuffix(n, backupExt)
	})
	if len(names) == 0 {
		return Snapshot{}, false
	}

	// os.ReadDir returns entries sorted by name.
	latest := names[len(names)-1]
	var s Snapshot
	if err := readJSON(filepath.Join(b.dir, latest), &s); err != nil {
		b.log.Warn("read latest backup", "file", latest, "err", err)
		return Snapshot{}, false
	}
	return s, true
}
