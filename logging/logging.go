package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ----------------- Config -----------------

type Config struct {
	Level        slog.Level // default: Info
	Format       string     // "text" or "json" (default "text")
	File         string     // path to log file; empty = no file
	AlsoStderr   bool       // default true
	MaxSizeMB    int        // rotate after this many megabytes (default 50)
	MaxBackups   int        // rotated files kept (default 3)
	SetAsDefault bool       // set slog.SetDefault
}

const (
	// LevelAll is a custom level logging everything.
	LevelAll slog.Level = -100
	// LevelFatal is a custom level above Error used for fatal events.
	LevelFatal slog.Level = 20
)

func DefaultConfig() Config {
	return Config{
		Level:      slog.LevelInfo,
		Format:     "text",
		AlsoStderr: true,
		MaxSizeMB:  50,
		MaxBackups: 3,
	}
}

// NewConfigFromEnv reads LOG_* variables.
func NewConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.Level = ParseLevel(os.Getenv("LOG_LEVEL"), cfg.Level)

	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "json":
		cfg.Format = "json"
	case "text", "":
		cfg.Format = "text"
	}

	cfg.File = strings.TrimSpace(os.Getenv("LOG_FILE"))
	cfg.AlsoStderr = envBool(os.Getenv("LOG_STDERR"), true)
	cfg.MaxSizeMB = envInt(os.Getenv("LOG_MAX_SIZE_MB"), 5)
	cfg.MaxBackups = envInt(os.Getenv("LOG_MAX_BACKUPS"), cfg.MaxBackups)

	cfg.SetAsDefault = true
	return cfg
}

// ParseLevel maps a level name to a slog.Level, returning def for unknown names.
func ParseLevel(s string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return LevelAll
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "fatal":
		return LevelFatal
	}
	return def
}

func envBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	switch strings.ToLower(s) {
	case "1", "true", "t", "yes", "y":
		return true
	case "0", "false", "f", "no", "n":
		return false
	default:
		return def
	}
}
func envInt(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// ----------------- Setup -----------------

var (
	curFilePath string
	curFileMu   sync.RWMutex
)

func CurrentFile() string {
	curFileMu.RLock()
	defer curFileMu.RUnlock()
	return curFilePath
}
func setCurrentFile(p string) {
	curFileMu.Lock()
	curFilePath = p
	curFileMu.Unlock()
}

// MultiHandler fans out to multiple slog.Handlers
type MultiHandler struct{ hs []slog.Handler }

func (m MultiHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range m.hs {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}
func (m MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.hs {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
func (m MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithAttrs(attrs)
	}
	return MultiHandler{hs: out}
}
func (m MultiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithGroup(name)
	}
	return MultiHandler{hs: out}
}

// EnsureDir creates the parent directory of path if needed.
func EnsureDir(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	switch format {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default: // text
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
}

// New builds a slog.Logger using cfg; returns the logger and the rotating file
// writer (nil when no file is configured). Close the writer on shutdown.
func New(cfg Config) (*slog.Logger, io.WriteCloser) {
	handlers := make([]slog.Handler, 0, 3)

	var logWriter io.WriteCloser
	if cfg.File != "" {
		if err := EnsureDir(cfg.File); err != nil {
			fmt.Fprintf(os.Stderr, "logging: file %q disabled: %v\n", cfg.File, err)
		} else {
			logWriter = &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
			}
			setCurrentFile(cfg.File)
			handlers = append(handlers, newHandler(logWriter, cfg.Format, cfg.Level))
			// Fatal-only handler that appends daily fatal logs next to the main log.
			handlers = append(handlers, newFatalFileHandler(cfg.File, cfg.Format))
		}
	}

	if cfg.AlsoStderr {
		handlers = append(handlers, newHandler(os.Stderr, cfg.Format, cfg.Level))
	}

	var h slog.Handler
	switch len(handlers) {
	case 0:
		// fallback to stderr text
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level})
	case 1:
		h = handlers[0]
	default:
		h = MultiHandler{hs: handlers}
	}

	l := slog.New(h)
	if cfg.SetAsDefault {
		slog.SetDefault(l)
	}
	return l, logWriter
}

func NewFromEnv() (*slog.Logger, io.WriteCloser) {
	return New(NewConfigFromEnv())
}

// Discard returns a logger that drops every record. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: LevelFatal + 1}))
}

// Fatal logs a message at LevelFatal using a background context.
func Fatal(l *slog.Logger, msg string, args ...any) {
	if l == nil {
		return
	}
	l.Log(context.Background(), LevelFatal, msg, args...)
}

// fatalFileHandler appends fatal records to daily files next to the main log.
type fatalFileHandler struct {
	basePath string
	format   string
	attrs    []slog.Attr
	groups   []string
}

func newFatalFileHandler(basePath, format string) slog.Handler {
	return fatalFileHandler{basePath: basePath, format: format}
}

func (h fatalFileHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= LevelFatal
}

func (h fatalFileHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}

	path := fatalFilePath(h.basePath, time.Now())
	if err := EnsureDir(path); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o660)
	if err != nil && errors.Is(err, os.ErrPermission) {
		if rmErr := os.Remove(path); rmErr == nil {
			f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o660)
		}
	}
	if err != nil {
		return err
	}
	defer f.Close()

	handler := newHandler(f, h.format, LevelFatal)
	for _, g := range h.groups {
		handler = handler.WithGroup(g)
	}
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	return handler.Handle(ctx, r)
}

func (h fatalFileHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return h
}

func (h fatalFileHandler) WithGroup(name string) slog.Handler {
	h.groups = append(append([]string(nil), h.groups...), name)
	return h
}

func fatalFilePath(base string, now time.Time) string {
	dir := filepath.Dir(base)
	if dir == "" || dir == "." {
		dir = "."
	}
	name := filepath.Base(base)
	ext := filepath.Ext(name)
	name = strings.TrimSuffix(name, ext)
	if name == "" {
		name = "fatal"
	}
	return filepath.Join(dir, fmt.Sprintf("%s.error.%s", name, now.Format("2006-01-02")))
}
