// Package store holds the live, editable tunnel configuration.
package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"amneziawg-webui/internal/tunnel"
)

var (
	// ErrUnknownPath indicates a Get/Set path that names no field.
	ErrUnknownPath = errors.New("unknown config path")
	// ErrInvalidValue indicates a value that cannot be coerced to the field type.
	ErrInvalidValue = errors.New("invalid config value")
)

// Store is the in-memory canonical configuration. It performs no semantic
// validation; that is the backend's job.
type Store struct {
	mu    sync.RWMutex
	cfg   tunnel.Config
	dirty bool
}

// New creates a store initialised from tunnel.Defaults.
func New() *Store {
	return &Store{cfg: tunnel.Defaults()}
}

// NewFrom creates a store holding a copy of cfg.
func NewFrom(cfg tunnel.Config) *Store {
	return &Store{cfg: cfg.Clone()}
}

// Get returns the value at a dotted path such as "interface.listen_port".
// Table paths ("peers", "policy", "policy.routes", "policy.marks") return copies.
func (s *Store) Get(path string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch normalizePath(path) {
	case "peers":
		return append([]tunnel.Peer(nil), s.cfg.Peers...), nil
	case "policy":
		return s.cfg.Policy.Clone(), nil
	case "policy.routes":
		return append([]tunnel.PolicyRoute(nil), s.cfg.Policy.Routes...), nil
	case "policy.marks":
		return append([]tunnel.MarkRule(nil), s.cfg.Policy.Marks...), nil
	}
	f, ok := fields[normalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
	return f.get(&s.cfg), nil
}

// Set writes value at path, coercing it to the field's type, and marks the
// store dirty.
func (s *Store) Set(path string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizePath(path)
	switch key {
	case "peers":
		peers, ok := value.([]tunnel.Peer)
		if !ok {
			return fmt.Errorf("%w: %s expects []tunnel.Peer, got %T", ErrInvalidValue, path, value)
		}
		s.cfg.Peers = append(make([]tunnel.Peer, 0, len(peers)), peers...)
		s.dirty = true
		return nil
	case "policy":
		policy, ok := value.(tunnel.Policy)
		if !ok {
			return fmt.Errorf("%w: %s expects tunnel.Policy, got %T", ErrInvalidValue, path, value)
		}
		s.cfg.Policy = policy.Clone()
		s.dirty = true
		return nil
	}
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
	if err := f.set(&s.cfg, value); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, path, err)
	}
	s.dirty = true
	return nil
}

// Update runs fn against the live config under the write lock and marks the
// store dirty.
func (s *Store) Update(fn func(cfg *tunnel.Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cfg)
	s.dirty = true
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() tunnel.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Dirty reports whether the store changed since the last load or MarkClean.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// MarkClean clears the dirty flag, typically after a successful save.
func (s *Store) MarkClean() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

func normalizePath(path string) string {
	return strings.ToLower(strings.TrimSpace(path))
}
