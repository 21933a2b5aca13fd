// Package keystore holds the trial code state: the code pool and issued map,
// the second-chance registry and the backup snapshots taken after mutations.
package keystore

import (
	"log/slog"
)

// Keystore bundles the stores that share one data directory.
type Keystore struct {
	Codes         *CodeStore
	SecondChances *SecondChances
	Backups       *Backups
}

// Open loads state from dataDir, hooks backups into code mutations and, when
// the pool loads empty, refills it from the newest backup.
func Open(dataDir, backupDir string, l *slog.Logger) *Keystore {
	ks := &Keystore{
		Codes:         OpenCodeStore(dataDir, l),
		SecondChances: OpenSecondChances(dataDir, l),
		Backups:       NewBackups(backupDir, l),
	}

	if ks.Codes.CountUnused() == 0 {
		if snap, ok := ks.Backups.Latest(); ok && len(snap.UnusedKeys) > 0 {
			n := ks.Codes.restoreUnused(snap.UnusedKeys)
			l.Info("restored unused codes from backup", "count", n, "taken_at", snap.Timestamp)
		}
	}

	ks.Codes.OnChange(func(unused []string, used map[string]string) {
		ks.Backups.Write(Snapshot{
			UnusedKeys:    unused,
			UsedKeys:      used,
			SecondChances: ks.SecondChances.Users(),
		})
	})
	return ks
}
