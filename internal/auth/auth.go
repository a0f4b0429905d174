// Package auth manages password authentication and API token validation
// for the single-admin tunnel editor backend.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"amneziawg-webui/internal/settings"
)

const defaultPassword = "amneziawg"

// bcryptCost is the work factor used when hashing passwords.
// Tests lower it to bcrypt.MinCost.
var bcryptCost = bcrypt.DefaultCost

// ErrEmptyPassword is returned when a blank password is set.
var ErrEmptyPassword = errors.New("password cannot be empty")

// Manager handles password authentication and API token management.
// Auth state is persisted inside the Settings struct.
type Manager struct {
	settings *settings.Manager
}

// NewManager creates an auth manager backed by the provided settings manager.
func NewManager(sm *settings.Manager) *Manager {
	return &Manager{settings: sm}
}

// EnsureDefaults initialises auth credentials on first run: the default
// password hash and a random API token.
func (m *Manager) EnsureDefaults() error {
	return m.settings.Update(func(s *settings.Settings) error {
		if s.AuthPasswordHash == "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcryptCost)
			if err != nil {
				return err
			}
			s.AuthPasswordHash = string(hash)
		}
		if s.AuthToken == "" {
			token, err := generateToken()
			if err != nil {
				return err
			}
			s.AuthToken = token
		}
		return nil
	})
}

// CheckPassword returns true if plain matches the stored password hash.
// Falls back to comparing against the default password if no hash is stored yet.
func (m *Manager) CheckPassword(plain string) bool {
	s, err := m.settings.Get()
	if err != nil {
		return false
	}
	if s.AuthPasswordHash == "" {
		return subtle.ConstantTimeCompare([]byte(plain), []byte(defaultPassword)) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(s.AuthPasswordHash), []byte(plain)) == nil
}

// SetPassword hashes plain and persists the new hash.
func (m *Manager) SetPassword(plain string) error {
	if plain == "" {
		return ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return err
	}
	return m.settings.Update(func(s *settings.Settings) error {
		s.AuthPasswordHash = string(hash)
		return nil
	})
}

// ValidateToken returns true if token matches the stored API token.
func (m *Manager) ValidateToken(token string) bool {
	if token == "" {
		return false
	}
	s, err := m.settings.Get()
	if err != nil || s.AuthToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.AuthToken)) == 1
}

// GetToken returns the current API / session token.
func (m *Manager) GetToken() (string, error) {
	s, err := m.settings.Get()
	if err != nil {
		return "", err
	}
	return s.AuthToken, nil
}

// RegenerateToken creates a new random API token, persists it, and returns it.
// All existing sessions are invalidated when the token changes.
func (m *Manager) RegenerateToken() (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := m.settings.Update(func(s *settings.Settings) error {
		s.AuthToken = token
		return nil
	}); err != nil {
		return "", err
	}
	return token, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
