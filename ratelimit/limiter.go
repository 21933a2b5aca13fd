// Package ratelimit throttles trial requests per user with a sliding attempt
// window and a persisted, lazily expiring blacklist.
package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const BlacklistFile = "blacklist.json"

type Config struct {
	MaxAttempts       int
	Window            time.Duration
	BlacklistDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:       5,
		Window:            60 * time.Second,
		BlacklistDuration: time.Hour,
	}
}

// Limiter tracks recent attempts in memory and blacklist expiries on disk.
// Every method takes the current time so callers control the clock.
type Limiter struct {
	mu        sync.Mutex
	cfg       Config
	path      string
	attempts  map[string][]time.Time
	blacklist map[string]time.Time
	log       *slog.Logger
}

// Open loads the blacklist from dir, dropping entries already expired at now.
func Open(dir string, cfg Config, now time.Time, l *slog.Logger) *Limiter {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.BlacklistDuration <= 0 {
		cfg.BlacklistDuration = def.BlacklistDuration
	}

	lim := &Limiter{
		cfg:       cfg,
		path:      filepath.Join(dir, BlacklistFile),
		attempts:  make(map[string][]time.Time),
		blacklist: make(map[string]time.Time),
		log:       l,
	}

	stored, err := lim.load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.Debug("blacklist file missing, starting empty")
		} else {
			l.Warn("blacklist file unreadable, starting empty", "err", err)
		}
	}
	for user, ms := range stored {
		expiry := time.UnixMilli(ms)
		if now.Before(expiry) {
			lim.blacklist[user] = expiry
		}
	}
	return lim
}

func (l *Limiter) Config() Config { return l.cfg }

// IsBlacklisted reports whether user is blocked at now, clearing an expired entry.
func (l *Limiter) IsBlacklisted(user string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blacklistedLocked(user, now)
}

// RemainingMinutes is the rounded-up number of minutes left on user's blacklist.
func (l *Limiter) RemainingMinutes(user string, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, ok := l.blacklist[user]
	if !ok || !now.Before(expiry) {
		return 0
	}
	return int(math.Ceil(expiry.Sub(now).Minutes()))
}

// Allow records an attempt for user when within limits. Once the window
// already holds MaxAttempts attempts the user is blacklisted and false is
// returned; a blacklisted user's attempts are not recorded.
func (l *Limiter) Allow(user string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.blacklistedLocked(user, now) {
		return false
	}

	// Drop stale attempts outside the window.
	prev := l.attempts[user]
	valid := prev[:0]
	for _, ts := range prev {
		if now.Sub(ts) < l.cfg.Window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= l.cfg.MaxAttempts {
		l.attempts[user] = valid
		l.blacklist[user] = now.Add(l.cfg.BlacklistDuration)
		l.log.Warn("user blacklisted", "user", user, "attempts", len(valid), "until", l.blacklist[user])
		l.save()
		return false
	}

	l.attempts[user] = append(valid, now)
	return true
}

func (l *Limiter) blacklistedLocked(user string, now time.Time) bool {
	expiry, ok := l.blacklist[user]
	if !ok {
		return false
	}
	if !now.Before(expiry) {
		delete(l.blacklist, user)
		l.save()
		return false
	}
	return true
}

func (l *Limiter) load() (map[string]int64, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", l.path, err)
	}
	return out, nil
}

func (l *Limiter) save() {
	out := make(map[string]int64, len(l.blacklist))
	for user, expiry := range l.blacklist {
		out[user] = expiry.UnixMilli()
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err == nil {
		if err = os.MkdirAll(filepath.Dir(l.path), 0o755); err == nil {
			err = os.WriteFile(l.path, data, 0o644)
		}
	}
	if err != nil {
		l.log.Error("persist blacklist", "path", l.path, "err", err)
	}
}
