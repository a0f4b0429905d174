// Package keys provisions the interface private key. It never derives the
// public key; that is left to the backend.
package keys

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"amneziawg-webui/internal/logs"
	"amneziawg-webui/internal/store"
	"amneziawg-webui/internal/tunnel"
)

// State is the provisioner lifecycle state.
type State int

const (
	StateIdle State = iota
	StateGenerating
	StateImporting
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateImporting:
		return "importing"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrNoSecureRandom is returned when the strong source fails and the weak
// fallback has not been allowed.
var ErrNoSecureRandom = errors.New("no cryptographically secure random source available")

// Result describes a generated key.
type Result struct {
	PrivateKey string
	Source     string
	// Insecure is set when the weak fallback produced the key.
	Insecure bool
}

// Options configures a Provisioner.
type Options struct {
	Strong Source
	Weak   Source
	// AllowInsecureFallback permits the weak tier. Off by default.
	AllowInsecureFallback bool
}

// Provisioner generates or imports the interface private key into a store.
type Provisioner struct {
	store *store.Store
	opts  Options

	mu      sync.Mutex
	state   State
	lastErr error
}

// New creates a provisioner writing into s.
func New(s *store.Store, opts Options) *Provisioner {
	if opts.Strong == nil {
		opts.Strong = CryptoSource()
	}
	if opts.Weak == nil {
		opts.Weak = WeakSource()
	}
	return &Provisioner{store: s, opts: opts}
}

// State returns the current state and the last error, if any.
func (p *Provisioner) State() (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.lastErr
}

// Generate writes a fresh base64 32-byte private key and clears public_key.
func (p *Provisioner) Generate() (Result, error) {
	p.setState(StateGenerating, nil)

	buf, source, err := p.randomKeyBytes()
	if err != nil {
		p.setState(StateError, err)
		return Result{}, err
	}
	key, err := wgtypes.NewKey(buf)
	if err != nil {
		p.setState(StateError, err)
		return Result{}, err
	}

	encoded := key.String()
	p.store.Update(func(cfg *tunnel.Config) {
		cfg.Interface.PrivateKey = encoded
		cfg.Interface.PublicKey = ""
	})
	p.setState(StateReady, nil)
	return Result{PrivateKey: encoded, Source: source.Name(), Insecure: !source.Secure()}, nil
}

// Import stores operator-supplied key text verbatim (trimmed) and clears
// public_key so the backend re-derives it.
func (p *Provisioner) Import(privateKeyText string) string {
	p.setState(StateImporting, nil)
	trimmed := strings.TrimSpace(privateKeyText)
	p.store.Update(func(cfg *tunnel.Config) {
		cfg.Interface.PrivateKey = trimmed
		cfg.Interface.PublicKey = ""
	})
	p.setState(StateReady, nil)
	return trimmed
}

func (p *Provisioner) randomKeyBytes() ([]byte, Source, error) {
	buf := make([]byte, wgtypes.KeyLen)
	strong := p.opts.Strong
	if strong.Available() {
		_, err := io.ReadFull(strong, buf)
		if err == nil {
			return buf, strong, nil
		}
		logs.Logger.WithError(err).WithField("source", strong.Name()).Warn("secure random source failed")
	}
	if !p.opts.AllowInsecureFallback {
		return nil, nil, ErrNoSecureRandom
	}
	weak := p.opts.Weak
	if !weak.Available() {
		return nil, nil, ErrNoSecureRandom
	}
	if _, err := io.ReadFull(weak, buf); err != nil {
		return nil, nil, fmt.Errorf("fallback random source: %w", err)
	}
	logs.Logger.WithField("source", weak.Name()).Warn("generated private key from NON-CRYPTOGRAPHIC fallback source; replace it before production use")
	return buf, weak, nil
}

func (p *Provisioner) setState(state State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
	p.lastErr = err
}
