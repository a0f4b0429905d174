// Package serialize assembles the document sent to the backend.
package serialize

import (
	"amneziawg-webui/internal/collect"
	"amneziawg-webui/internal/store"
	"amneziawg-webui/internal/tunnel"
)

// PeerSource yields the current peer table.
type PeerSource interface {
	Collect() []tunnel.Peer
}

// PolicySource yields the current policy tables.
type PolicySource interface {
	Collect() tunnel.Policy
}

// Serializer merges the store with freshly harvested tables.
type Serializer struct {
	store  *store.Store
	peers  PeerSource
	policy PolicySource
}

// New creates a Serializer.
func New(s *store.Store, peers PeerSource, policy PolicySource) *Serializer {
	return &Serializer{store: s, peers: peers, policy: policy}
}

// Serialize returns an independent snapshot. Peers and policy always come
// from the collectors, never from the store's own copy.
func (s *Serializer) Serialize() tunnel.Config {
	cfg := s.store.Snapshot()
	cfg.Peers = s.peers.Collect()
	cfg.Policy = s.policy.Collect().Clone()
	return cfg
}

var (
	_ PeerSource   = (*collect.PeerCollector)(nil)
	_ PolicySource = (*collect.PolicyCollector)(nil)
)
