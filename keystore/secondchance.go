package keystore

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/samber/lo"
)

const SecondChanceFile = "second_chances.json"

type secondChanceFile struct {
	Users []string `json:"users"`
}

// SecondChances is the set of users allowed one code beyond the normal limit.
type SecondChances struct {
	mu    sync.Mutex
	path  string
	users []string
	log   *slog.Logger
}

func OpenSecondChances(dir string, l *slog.Logger) *SecondChances {
	r := &SecondChances{path: filepath.Join(dir, SecondChanceFile), log: l}

	var f secondChanceFile
	if err := readJSON(r.path, &f); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.Debug("second chance file missing, starting empty", "err", err)
		} else {
			l.Warn("second chance file unreadable, starting empty", "err", err)
		}
	}
	r.users = lo.Uniq(lo.Compact(f.Users))
	return r
}

func (r *SecondChances) Has(user string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Contains(r.users, user)
}

// Grant adds user and reports whether it was newly added.
func (r *SecondChances) Grant(user string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user == "" || lo.Contains(r.users, user) {
		return false
	}
	r.users = append(r.users, user)
	r.save()
	return true
}

// Consume removes user once their extra code has been handed out.
func (r *SecondChances) Consume(user string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := lo.IndexOf(r.users, user)
	if i < 0 {
		return false
	}
	r.users = slices.Delete(r.users, i, i+1)
	r.save()
	return true
}

func (r *SecondChances) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.users)
}

func (r *SecondChances) save() {
	if err := writeJSON(r.path, secondChanceFile{Users: r.users}); err != nil {
		r.log.Error("persist second chances", "err", err)
	}
}
