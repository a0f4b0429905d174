package settings

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Settings captures user preferences and auth credentials persisted across restarts.
type Settings struct {
	// Network
	ListenInterface string `json:"listenInterface"`
	// Diagnostics
	DebugLogEnabled *bool  `json:"debugLogEnabled,omitempty"`
	DebugLogLevel   string `json:"debugLogLevel,omitempty"`
	// Revision history
	RevisionHistoryLimit int `json:"revisionHistoryLimit,omitempty"`

	// Auth, stored as bcrypt hash and random token.
	// Never returned by the settings API; only the settings Manager reads/writes them directly.
	AuthPasswordHash string `json:"authPasswordHash,omitempty"`
	AuthToken        string `json:"authToken,omitempty"`
}

// DefaultRevisionHistoryLimit is used when RevisionHistoryLimit is unset.
const DefaultRevisionHistoryLimit = 50

// HistoryLimit returns the effective revision listing limit.
func (s Settings) HistoryLimit() int {
	if s.RevisionHistoryLimit <= 0 {
		return DefaultRevisionHistoryLimit
	}
	return s.RevisionHistoryLimit
}

// DebugLog reports the effective diagnostics switch.
func (s Settings) DebugLog() bool {
	return s.DebugLogEnabled != nil && *s.DebugLogEnabled
}

// Manager handles persistence of Settings on disk.
type Manager struct {
	path   string
	mu     sync.RWMutex
	cached Settings
	loaded bool
}

// NewManager creates a settings manager whose file is at settingsPath.
// Pass the full file path (e.g. "/data/amneziawg-webui/settings.json").
func NewManager(settingsPath string) *Manager {
	return &Manager{path: settingsPath}
}

// Get returns the cached settings, loading from disk if necessary.
func (m *Manager) Get() (Settings, error) {
	m.mu.RLock()
	if m.loaded {
		defer m.mu.RUnlock()
		return m.cached, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

// Save persists the provided settings to disk.
func (m *Manager) Save(settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(settings)
}

// Update applies fn to the current settings and persists the result while
// holding the write lock, so concurrent updates cannot drop each other.
func (m *Manager) Update(fn func(*Settings) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.loadLocked()
	if err != nil {
		return err
	}
	if err := fn(&current); err != nil {
		return err
	}
	return m.writeLocked(current)
}

func (m *Manager) loadLocked() (Settings, error) {
	if m.loaded {
		return m.cached, nil
	}
	bytes, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.loaded = true
			m.cached = Settings{}
			return m.cached, nil
		}
		return Settings{}, err
	}

	var settings Settings
	if err := json.Unmarshal(bytes, &settings); err != nil {
		return Settings{}, err
	}
	m.cached = settings
	m.loaded = true
	return settings, nil
}

func (m *Manager) writeLocked(settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return err
	}
	m.cached = settings
	m.loaded = true
	return nil
}
