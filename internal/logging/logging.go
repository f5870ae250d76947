// Package logging provides the file-backed slog logger shared by the
// whole application. The TUI owns the terminal, so nothing may log to
// stdout or stderr while it runs.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var (
	mu       sync.Mutex
	root     *slog.Logger
	logFile  *os.File
	levelVar = new(slog.LevelVar)
	initDone bool
)

// DefaultLogPath returns the log file under the user's inkdesk
// directory.
func DefaultLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".inkdesk", "logs", "inkdesk.log"), nil
}

// SetDebug toggles debug-level logging.
func SetDebug(enabled bool) {
	if enabled {
		levelVar.Set(slog.LevelDebug)
	} else {
		levelVar.Set(slog.LevelInfo)
	}
}

// Init opens the log file at path and installs it as the root logger.
// Calling Init twice is a no-op.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if initDone {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	logFile = f
	root = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: levelVar}))
	initDone = true

	root.Info("logger initialized", "path", path)
	return nil
}

// Get returns the root logger. Before Init it falls back to a
// discard-equivalent default so early callers never write to the
// terminal.
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		return slog.New(slog.DiscardHandler)
	}
	return root
}

// WithComponent returns the root logger with a component field
// attached.
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	root = nil
	initDone = false
}
