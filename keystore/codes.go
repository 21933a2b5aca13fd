package keystore

import (
	"errors"
	"io/fs"
	"log/slog"
	"maps"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"sync"

	"github.com/samber/lo"
)

const (
	UnusedCodesFile = "trial_codes.json"
	UsedCodesFile   = "used_codes.json"
)

type unusedFile struct {
	Codes []string `json:"codes"`
}

type usedFile struct {
	Used map[string]string `json:"used"`
}

// SnapshotFunc receives copies of the pool and the issued map after a mutation.
type SnapshotFunc func(unused []string, used map[string]string)

// CodeStore owns the pool of unused trial codes and the user -> issued code map.
// Every mutation is written through to disk before the call returns.
type CodeStore struct {
	mu         sync.Mutex
	unusedPath string
	usedPath   string
	unused     []string
	used       map[string]string

	onChange SnapshotFunc
	pick     func(n int) int
	log      *slog.Logger
}

// OpenCodeStore loads the two code files from dir. Missing or unreadable files
// yield empty collections.
func OpenCodeStore(dir string, l *slog.Logger) *CodeStore {
	s := &CodeStore{
		unusedPath: filepath.Join(dir, UnusedCodesFile),
		usedPath:   filepath.Join(dir, UsedCodesFile),
		pick:       rand.IntN,
		log:        l,
	}

	var uf unusedFile
	if err := readJSON(s.unusedPath, &uf); err != nil {
		s.logLoadError(err)
	}
	s.unused = lo.Filter(uf.Codes, func(c string, _ int) bool { return c != "" })

	var sf usedFile
	if err := readJSON(s.usedPath, &sf); err != nil {
		s.logLoadError(err)
	}
	s.used = sf.Used
	if s.used == nil {
		s.used = make(map[string]string)
	}
	return s
}

func (s *CodeStore) logLoadError(err error) {
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Debug("code file missing, starting empty", "err", err)
		return
	}
	s.log.Warn("code file unreadable, starting empty", "err", err)
}

// OnChange installs the hook run after backed-up mutations.
func (s *CodeStore) OnChange(fn SnapshotFunc) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *CodeStore) CountUnused() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unused)
}

func (s *CodeStore) CountIssued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.used)
}

// ListUnused returns a copy of the pool in insertion order.
func (s *CodeStore) ListUnused() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.unused)
}

// Issued returns a copy of the user -> code map.
func (s *CodeStore) Issued() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.used)
}

func (s *CodeStore) IssuedFor(user string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.used[user]
	return code, ok
}

// TakeOneFor pops the newest code from the pool and records it against user.
// It reports false when the pool is empty.
func (s *CodeStore) TakeOneFor(user string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.unused) == 0 {
		return "", false
	}
	last := len(s.unused) - 1
	code := s.unused[last]
	s.unused = s.unused[:last]
	s.used[user] = code

	s.saveUnused()
	s.saveUsed()
	s.snapshot()
	return code, true
}

// PeekRandom returns a uniformly random pool entry without removing it.
func (s *CodeStore) PeekRandom() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.unused) == 0 {
		return "", false
	}
	return s.unused[s.pick(len(s.unused))], true
}

// AddOne appends code unless it is already pooled or already issued.
func (s *CodeStore) AddOne(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code == "" || lo.Contains(s.unused, code) || s.issuedLocked(code) {
		return false
	}
	s.unused = append(s.unused, code)
	s.saveUnused()
	s.snapshot()
	return true
}

// AddMany appends every non-empty code. Unlike AddOne there is no duplicate
// check, neither against the pool nor within the batch.
func (s *CodeStore) AddMany(codes []string) int {
	valid := lo.Filter(codes, func(c string, _ int) bool { return c != "" })
	if len(valid) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.unused = append(s.unused, valid...)
	s.saveUnused()
	s.snapshot()
	return len(valid)
}

// Delete removes the first pooled occurrence of code.
func (s *CodeStore) Delete(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := lo.IndexOf(s.unused, code)
	if i < 0 {
		return false
	}
	s.unused = slices.Delete(s.unused, i, i+1)
	s.saveUnused()
	return true
}

// WipeUnused empties the pool and returns how many codes it held.
func (s *CodeStore) WipeUnused() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.unused)
	s.unused = []string{}
	s.saveUnused()
	s.snapshot()
	return n
}

// UserByCode finds who was issued code.
func (s *CodeStore) UserByCode(code string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.FindKey(s.used, code)
}

// restoreUnused replaces an empty pool with codes. Used once at startup.
func (s *CodeStore) restoreUnused(codes []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.unused) > 0 {
		return 0
	}
	s.unused = lo.Filter(codes, func(c string, _ int) bool { return c != "" && !s.issuedLocked(c) })
	if len(s.unused) == 0 {
		return 0
	}
	s.saveUnused()
	return len(s.unused)
}

func (s *CodeStore) issuedLocked(code string) bool {
	_, ok := lo.FindKey(s.used, code)
	return ok
}

func (s *CodeStore) saveUnused() {
	if err := writeJSON(s.unusedPath, unusedFile{Codes: s.unused}); err != nil {
		s.log.Error("persist unused codes", "err", err)
	}
}

func (s *CodeStore) saveUsed() {
	if err := writeJSON(s.usedPath, usedFile{Used: s.used}); err != nil {
		s.log.Error("persist used codes", "err", err)
	}
}

func (s *CodeStore) snapshot() {
	if s.onChange == nil {
		return
	}
	s.onChange(slices.Clone(s.unused), maps.Clone(s.used))
}
