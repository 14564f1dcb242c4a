package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/zenbase-ai/tech-for-iran-sub001/config"
)

const (
	fallbackDir        = "./logs"
	fallbackOutputFile = "app.log"
	fallbackErrorFile  = "app.error.log"
)

// Manager owns the application's info and error loggers. Each logger writes
// to the console and to its own append-only file.
type Manager struct {
	infoLogger  *log.Logger
	errorLogger *log.Logger
	files       []*os.File
}

var global *Manager

// Initialize configures the global logger manager.
func Initialize(cfg *config.Config) (*Manager, error) {
	manager, err := New(cfg)
	if err != nil {
		return nil, err
	}
	global = manager
	return manager, nil
}

// New creates a new Manager instance.
func New(cfg *config.Config) (*Manager, error) {
	infoPath, errPath := logPaths(cfg)
	if err := os.MkdirAll(filepath.Dir(infoPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	m := &Manager{}
	var err error
	if m.infoLogger, err = m.newFileLogger("[INFO] ", os.Stdout, infoPath); err != nil {
		m.Close()
		return nil, err
	}
	if m.errorLogger, err = m.newFileLogger("[ERROR] ", os.Stderr, errPath); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// logPaths resolves the info and error log file paths, falling back to the
// packaged defaults when configuration left them blank.
func logPaths(cfg *config.Config) (string, string) {
	dir := cfg.LogDirectory
	if dir == "" {
		dir = fallbackDir
	}
	out := cfg.LogOutputFile
	if out == "" {
		out = fallbackOutputFile
	}
	errFile := cfg.LogErrorFile
	if errFile == "" {
		errFile = fallbackErrorFile
	}
	return filepath.Join(dir, out), filepath.Join(dir, errFile)
}

func (m *Manager) newFileLogger(prefix string, console io.Writer, path string) (*log.Logger, error) {
	handle, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	m.files = append(m.files, handle)
	return log.New(io.MultiWriter(console, handle), prefix, log.LstdFlags|log.Lmicroseconds), nil
}

// Info returns the info logger.
func (m *Manager) Info() *log.Logger {
	return m.infoLogger
}

// Error returns the error logger.
func (m *Manager) Error() *log.Logger {
	return m.errorLogger
}

// Close releases file handles.
func (m *Manager) Close() error {
	var firstErr error
	for _, f := range m.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.files = nil
	return firstErr
}

// Close releases the global logger manager if initialized.
func Close() error {
	if global == nil {
		return nil
	}
	err := global.Close()
	global = nil
	return err
}

// Info returns the global info logger.
func Info() *log.Logger {
	if global != nil {
		return global.Info()
	}
	return log.Default()
}

// Error returns the global error logger.
func Error() *log.Logger {
	if global != nil {
		return global.Error()
	}
	return log.Default()
}
