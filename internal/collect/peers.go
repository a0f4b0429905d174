// Package collect harvests the dynamic tables of the editor into typed
// records. Peers are taken as-is; policy rows pass an acceptance predicate.
package collect

import (
	"strings"

	"amneziawg-webui/internal/form"
	"amneziawg-webui/internal/tunnel"
)

// PeerCollector reads peer rows from a form adapter.
type PeerCollector struct {
	adapter form.Adapter
}

// NewPeerCollector creates a PeerCollector over adapter.
func NewPeerCollector(adapter form.Adapter) *PeerCollector {
	return &PeerCollector{adapter: adapter}
}

// Collect returns one Peer per row in row order. Nothing is filtered: an
// all-empty row yields a zero Peer. Completeness is checked by the backend.
func (c *PeerCollector) Collect() []tunnel.Peer {
	rows := c.adapter.Rows(form.TablePeers)
	peers := make([]tunnel.Peer, 0, len(rows))
	for _, row := range rows {
		peers = append(peers, tunnel.Peer{
			Name:         field(row, form.FieldName),
			AllowedIPs:   field(row, form.FieldAllowedIPs),
			PublicKey:    field(row, form.FieldPublicKey),
			PresharedKey: field(row, form.FieldPresharedKey),
			Endpoint:     field(row, form.FieldEndpoint),
			Keepalive:    uint(parseUint(field(row, form.FieldKeepalive), 32)),
		})
	}
	return peers
}

func field(row form.Row, name string) string {
	return strings.TrimSpace(row[name])
}

// parseUint accepts decimal or 0x-prefixed hex; anything else is 0.
func parseUint(raw string, bits int) uint64 {
	if raw == "" {
		return 0
	}
	n, err := tunnel.ParseUint(raw, bits)
	if err != nil {
		return 0
	}
	return n
}
