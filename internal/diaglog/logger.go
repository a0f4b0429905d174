// Package diaglog writes the optional diagnostics file that operators can
// switch on from the settings API.
package diaglog

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"amneziawg-webui/internal/logs"
)

// Manager writes optional diagnostic logs to a persistent file.
type Manager struct {
	path    string
	mu      sync.RWMutex
	enabled bool
	file    *os.File
	logger  *logrus.Logger
}

// New creates a diagnostics logger writing to path when enabled.
func New(path string) *Manager {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	return &Manager{
		path:   strings.TrimSpace(path),
		logger: logger,
	}
}

// Configure updates runtime logging controls.
func (m *Manager) Configure(enabled bool, levelRaw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.SetLevel(logs.ParseLevel(levelRaw))
	m.enabled = enabled
	if !enabled {
		m.closeLocked()
		return nil
	}
	return m.ensureFileLocked()
}

// Close closes the diagnostics file descriptor.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *Manager) closeLocked() error {
	m.logger.SetOutput(io.Discard)
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

// Debugf logs a debug-level message.
func (m *Manager) Debugf(format string, args ...any) {
	m.logf(logrus.DebugLevel, format, args...)
}

// Infof logs an info-level message.
func (m *Manager) Infof(format string, args ...any) {
	m.logf(logrus.InfoLevel, format, args...)
}

// Warnf logs a warning-level message.
func (m *Manager) Warnf(format string, args ...any) {
	m.logf(logrus.WarnLevel, format, args...)
}

// Errorf logs an error-level message.
func (m *Manager) Errorf(format string, args ...any) {
	m.logf(logrus.ErrorLevel, format, args...)
}

// Enabled returns whether diagnostics logging is currently enabled.
func (m *Manager) Enabled() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

func (m *Manager) logf(level logrus.Level, format string, args ...any) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}
	if err := m.ensureFileLocked(); err != nil || m.file == nil {
		return
	}
	m.logger.Logf(level, format, args...)
}

func (m *Manager) ensureFileLocked() error {
	if m.path == "" || m.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	m.file = file
	m.logger.SetOutput(file)
	return nil
}
