package tunnel

import (
	"fmt"
	"strings"
)

// Section names a save target. Each save transmits the whole document; the
// section only tells the backend which part to apply.
type Section string

const (
	SectionBasic    Section = "basic"
	SectionObfs     Section = "obfs"
	SectionPolicy   Section = "policy"
	SectionAdvanced Section = "advanced"
)

// Sections lists every save target in tab order.
var Sections = []Section{SectionBasic, SectionObfs, SectionPolicy, SectionAdvanced}

// ParseSection validates a section name.
func ParseSection(raw string) (Section, error) {
	s := Section(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Sections {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown section %q", raw)
}

// Label is the human name used in notifications.
func (s Section) Label() string {
	switch s {
	case SectionBasic:
		return "Basic"
	case SectionObfs:
		return "Obfuscation"
	case SectionPolicy:
		return "Policy"
	case SectionAdvanced:
		return "Advanced"
	default:
		return string(s)
	}
}

// Apply copies the parts of src owned by section s onto dst.
func (s Section) Apply(dst *Config, src Config) {
	switch s {
	case SectionBasic:
		dst.Interface = src.Interface
		dst.Peers = append(make([]Peer, 0, len(src.Peers)), src.Peers...)
	case SectionObfs:
		dst.Obfs = src.Obfs
		dst.Transport = src.Transport
	case SectionPolicy:
		dst.Policy = src.Policy.Clone()
	case SectionAdvanced:
		dst.Advanced = src.Advanced
	}
}

// SectionOf reports which section owns a dotted field path.
func SectionOf(path string) (Section, bool) {
	head, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(path)), ".")
	switch head {
	case "interface", "peers":
		return SectionBasic, true
	case "obfs", "transport":
		return SectionObfs, true
	case "policy":
		return SectionPolicy, true
	case "advanced":
		return SectionAdvanced, true
	}
	return "", false
}
