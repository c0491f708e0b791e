package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Category routes a log event to its persisted stream. Trade events record
// order activity, error events collect every failure regardless of origin.
type Category string

const (
	CategoryTrade    Category = "trade"
	CategorySystem   Category = "system"
	CategoryError    Category = "error"
	CategoryStrategy Category = "strategy"
)

const fieldCategory = "category"

var categories = []Category{CategoryTrade, CategorySystem, CategoryError, CategoryStrategy}

type Options struct {
	Dir          string
	ConsoleLevel string
	FileLevel    string
}

// Manager owns the shared logger and the per-category log files. It is built
// once at the composition root and handed to components as bound entries;
// nothing in this package is a process-wide singleton.
type Manager struct {
	logger *logrus.Logger
	hook   *categoryFileHook
}

func NewManager(opts Options) (*Manager, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "logs"
	}
	for _, cat := range categories {
		if err := os.MkdirAll(filepath.Join(dir, string(cat)), 0o755); err != nil {
			return nil, err
		}
	}

	// The logger itself passes everything through; the console and file sinks
	// are both hooks so each can enforce its own level.
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.TraceLevel)
	logger.AddHook(&consoleHook{
		out:   os.Stdout,
		level: parseLevel(opts.ConsoleLevel, logrus.InfoLevel),
		formatter: &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		},
	})

	hook := &categoryFileHook{
		dir:   dir,
		level: parseLevel(opts.FileLevel, logrus.DebugLevel),
		files: make(map[string]*os.File),
		formatter: &logrus.TextFormatter{
			DisableColors:   true,
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		},
	}
	logger.AddHook(hook)

	return &Manager{logger: logger, hook: hook}, nil
}

// Logger returns an entry bound with the module, exchange and category
// fields every emitted event must carry.
func (m *Manager) Logger(module, exchange string, category Category) *logrus.Entry {
	return m.logger.WithFields(logrus.Fields{
		"module":      module,
		"exchange":    exchange,
		fieldCategory: string(category),
	})
}

func (m *Manager) Close() error {
	if m == nil || m.hook == nil {
		return nil
	}
	return m.hook.closeAll()
}

func parseLevel(v string, fallback logrus.Level) logrus.Level {
	if v == "" {
		return fallback
	}
	level, err := logrus.ParseLevel(v)
	if err != nil {
		return fallback
	}
	return level
}

type consoleHook struct {
	out       io.Writer
	level     logrus.Level
	formatter logrus.Formatter

	mu sync.Mutex
}

func (h *consoleHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *consoleHook) Fire(entry *logrus.Entry) error {
	if entry.Level > h.level {
		return nil
	}
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.out.Write(line)
	return err
}

// categoryFileHook persists each event into its category file plus the
// combined file, with error-level events copied into the error stream. Files
// are named by UTC date so rotation is a matter of opening a new file at
// midnight.
type categoryFileHook struct {
	dir       string
	level     logrus.Level
	formatter logrus.Formatter

	mu    sync.Mutex
	files map[string]*os.File
}

func (h *categoryFileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *categoryFileHook) Fire(entry *logrus.Entry) error {
	if entry.Level > h.level {
		return nil
	}
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	category := CategorySystem
	if raw, ok := entry.Data[fieldCategory].(string); ok && raw != "" {
		category = Category(raw)
	}
	day := entry.Time.UTC().Format("2006-01-02")

	paths := []string{
		filepath.Join(h.dir, string(category), fmt.Sprintf("%s_%s.log", category, day)),
		filepath.Join(h.dir, fmt.Sprintf("all_%s.log", day)),
	}
	if entry.Level <= logrus.ErrorLevel && category != CategoryError {
		paths = append(paths, filepath.Join(h.dir, string(CategoryError), fmt.Sprintf("%s_%s.log", CategoryError, day)))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, path := range paths {
		w, err := h.writer(path)
		if err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}

func (h *categoryFileHook) writer(path string) (io.Writer, error) {
	if f, ok := h.files[path]; ok {
		return f, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	h.files[path] = f
	h.pruneStale(path)
	return f, nil
}

// pruneStale closes handles for previous days' files so a long-running
// process does not accumulate descriptors across rotations.
func (h *categoryFileHook) pruneStale(current string) {
	today := time.Now().UTC().Format("2006-01-02")
	for path, f := range h.files {
		if path == current {
			continue
		}
		if !containsDay(path, today) {
			_ = f.Close()
			delete(h.files, path)
		}
	}
}

func containsDay(path, day string) bool {
	return strings.Contains(filepath.Base(path), day)
}

func (h *categoryFileHook) closeAll() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var firstErr error
	for path, f := range h.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(h.files, path)
	}
	return firstErr
}
