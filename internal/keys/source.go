package keys

import (
	crand "crypto/rand"
	"math/rand/v2"
	"time"
)

// Source is one tier of the randomness strategy.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// Available reports whether the source can currently be used.
	Available() bool
	// Read fills p with random bytes.
	Read(p []byte) (int, error)
	// Secure reports whether output is suitable for key material.
	Secure() bool
}

type cryptoSource struct{}

// CryptoSource returns the operating system CSPRNG tier.
func CryptoSource() Source { return cryptoSource{} }

func (cryptoSource) Name() string { return "crypto/rand" }
func (cryptoSource) Available() bool { return true }
func (cryptoSource) Read(p []byte) (int, error) { return crand.Read(p) }
func (cryptoSource) Secure() bool { return true }

type weakSource struct {
	rng *rand.Rand
}

// WeakSource returns a time-seeded pseudo-random tier. Its output is NOT
// suitable for key material and is only used when explicitly allowed.
func WeakSource() Source {
	seed := uint64(time.Now().UnixNano())
	return &weakSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (w *weakSource) Name() string { return "math/rand" }
func (w *weakSource) Available() bool { return true }
func (w *weakSource) Secure() bool { return false }

func (w *weakSource) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(w.rng.Uint32())
	}
	return len(p), nil
}
