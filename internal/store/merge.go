package store

import (
	"github.com/spf13/cast"

	"amneziawg-webui/internal/tunnel"
)

// MergeLoaded overlays a loaded document onto the current state one section
// at a time. A section missing from doc, or of the wrong shape, keeps its
// current value. A present section replaces the current one entirely; inside
// it, missing or uncoercible fields fall back to defaults. It never fails.
func (s *Store) MergeLoaded(doc tunnel.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := tunnel.Defaults()
	for _, name := range scalarSections {
		raw, ok := doc[name].(map[string]any)
		if !ok {
			continue
		}
		for key, f := range sectionFields(name) {
			value, present := raw[key]
			if !present || value == nil {
				continue
			}
			_ = f.set(&fresh, value)
		}
		switch name {
		case "interface":
			s.cfg.Interface = fresh.Interface
		case "obfs":
			s.cfg.Obfs = fresh.Obfs
		case "transport":
			s.cfg.Transport = fresh.Transport
		case "advanced":
			s.cfg.Advanced = fresh.Advanced
		}
	}

	if raw, ok := doc["peers"].([]any); ok {
		peers := make([]tunnel.Peer, 0, len(raw))
		for _, item := range raw {
			if entry, ok := item.(map[string]any); ok {
				peers = append(peers, decodePeer(entry))
			}
		}
		s.cfg.Peers = peers
	}

	if raw, ok := doc["policy"].(map[string]any); ok {
		policy := tunnel.Policy{
			Routes: []tunnel.PolicyRoute{},
			Marks:  []tunnel.MarkRule{},
		}
		if routes, ok := raw["routes"].([]any); ok {
			for _, item := range routes {
				if entry, ok := item.(map[string]any); ok {
					policy.Routes = append(policy.Routes, decodeRoute(entry))
				}
			}
		}
		if marks, ok := raw["marks"].([]any); ok {
			for _, item := range marks {
				if entry, ok := item.(map[string]any); ok {
					policy.Marks = append(policy.Marks, decodeMark(entry))
				}
			}
		}
		s.cfg.Policy = policy
	}
	s.dirty = false
}

func decodePeer(entry map[string]any) tunnel.Peer {
	keepalive, _ := toUint(entry["keepalive"], 32)
	return tunnel.Peer{
		Name:         lenientString(entry["name"]),
		AllowedIPs:   lenientString(entry["allowed_ips"]),
		PublicKey:    lenientString(entry["public_key"]),
		PresharedKey: lenientString(entry["preshared_key"]),
		Endpoint:     lenientString(entry["endpoint"]),
		Keepalive:    uint(keepalive),
	}
}

func decodeRoute(entry map[string]any) tunnel.PolicyRoute {
	table := lenientString(entry["table"])
	if table == "" {
		table = tunnel.TableWAN
	}
	return tunnel.PolicyRoute{
		Table:   table,
		Dest:    lenientString(entry["dest"]),
		Sources: lenientString(entry["sources"]),
	}
}

func decodeMark(entry map[string]any) tunnel.MarkRule {
	mark, _ := toUint(entry["fwmark"], 32)
	return tunnel.MarkRule{
		FwMark: uint32(mark),
		Ports:  lenientString(entry["ports"]),
	}
}

func lenientString(v any) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(plain(v))
	if err != nil {
		return ""
	}
	return s
}
