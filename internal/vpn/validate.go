package vpn

import (
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"go4.org/netipx"

	"amneziawg-webui/internal/keys"
	"amneziawg-webui/internal/tunnel"
)

var (
	ifaceNamePattern  = regexp.MustCompile(`^[a-zA-Z0-9_=+.-]{1,15}$`)
	domainLabelRegexp = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
)

// ValidateInterfaceName checks a tunnel interface name against the kernel limits.
func ValidateInterfaceName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("interface name is required")
	}
	if trimmed != name {
		return fmt.Errorf("interface name must not start or end with whitespace")
	}
	for _, r := range trimmed {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("interface name must not contain whitespace or control characters")
		}
	}
	if len(trimmed) > 15 {
		return fmt.Errorf("interface name must be 15 characters or fewer")
	}
	if trimmed == "." || trimmed == ".." {
		return fmt.Errorf("interface name must not be %q", trimmed)
	}
	if !ifaceNamePattern.MatchString(trimmed) {
		return fmt.Errorf("interface name must match ^[a-zA-Z0-9_=+.-]{1,15}$")
	}
	return nil
}

// ValidateDomain checks a DNS search domain entry.
func ValidateDomain(domain string) error {
	trimmed := strings.TrimSpace(strings.ToLower(domain))
	if trimmed == "" {
		return fmt.Errorf("domain is required")
	}
	if strings.ContainsAny(trimmed, " \t\r\n*") {
		return fmt.Errorf("domain must not contain whitespace or wildcards")
	}
	if len(trimmed) > 253 {
		return fmt.Errorf("domain is too long")
	}
	if strings.HasPrefix(trimmed, ".") || strings.HasSuffix(trimmed, ".") {
		return fmt.Errorf("domain must not start or end with '.'")
	}
	for _, label := range strings.Split(trimmed, ".") {
		if len(label) == 0 || len(label) > 63 {
			return fmt.Errorf("domain label length must be 1-63 characters")
		}
		if !domainLabelRegexp.MatchString(label) {
			return fmt.Errorf("domain labels may only contain letters, numbers, and '-' characters")
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return fmt.Errorf("domain labels must not start or end with '-' characters")
		}
	}
	return nil
}

// ValidateEndpoint checks a host:port endpoint.
func ValidateEndpoint(endpoint string) error {
	host, port, err := net.SplitHostPort(strings.TrimSpace(endpoint))
	if err != nil {
		return fmt.Errorf("endpoint must be host:port: %w", err)
	}
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("endpoint host is required")
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("endpoint port %q is out of range", port)
	}
	return nil
}

// Check returns non-fatal warnings about cfg. The backend stores the document
// regardless and reports these next to the save result.
func Check(cfg tunnel.Config) []string {
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	iface := cfg.Interface
	if err := ValidateInterfaceName(iface.Name); err != nil {
		warn("interface: %v", err)
	}
	if strings.TrimSpace(iface.PrivateKey) == "" {
		if iface.Enabled {
			warn("interface: private key is missing")
		}
	} else if !keys.Valid(iface.PrivateKey) {
		warn("interface: private key is not a valid key")
	}
	if iface.IPv4 != "" {
		if p, err := parsePrefixOrAddr(iface.IPv4); err != nil || !p.Addr().Is4() {
			warn("interface: ipv4 %q is not an IPv4 address", iface.IPv4)
		}
	}
	if iface.IPv6 != "" {
		if p, err := parsePrefixOrAddr(iface.IPv6); err != nil || !p.Addr().Is6() {
			warn("interface: ipv6 %q is not an IPv6 address", iface.IPv6)
		}
	}
	for _, entry := range parseCSVList(iface.DNS) {
		if _, err := netip.ParseAddr(entry); err == nil {
			continue
		}
		if err := ValidateDomain(entry); err != nil {
			warn("interface: dns entry %q: %v", entry, err)
		}
	}
	if iface.MTU != "" {
		mtu, err := strconv.Atoi(strings.TrimSpace(iface.MTU))
		if err != nil || mtu < 576 || mtu > 9000 {
			warn("interface: mtu %q must be a number between 576 and 9000", iface.MTU)
		}
	}
	if iface.Enabled && len(cfg.Peers) == 0 {
		warn("interface: enabled without any peers")
	}

	warnings = append(warnings, checkPeers(cfg.Peers)...)

	switch cfg.Obfs.Mode {
	case tunnel.ModeNone, tunnel.ModeJunk, tunnel.ModeTLS, tunnel.ModeQUIC:
	default:
		warn("obfs: unknown mode %q", cfg.Obfs.Mode)
	}
	if cfg.Obfs.Enabled && cfg.Obfs.Mode == tunnel.ModeNone {
		warn("obfs: enabled with mode %q", tunnel.ModeNone)
	}
	switch cfg.Transport.Proto {
	case tunnel.ProtoUDP, tunnel.ProtoTCP, tunnel.ProtoWS:
	default:
		warn("transport: unknown protocol %q", cfg.Transport.Proto)
	}
	if cfg.Transport.EndpointOverride != "" {
		if err := ValidateEndpoint(cfg.Transport.EndpointOverride); err != nil {
			warn("transport: endpoint override: %v", err)
		}
	}

	for i, route := range cfg.Policy.Routes {
		if route.Table != tunnel.TableWAN && route.Table != tunnel.TableWG {
			warn("policy.routes[%d]: unknown table %q", i, route.Table)
		}
		if _, err := parsePrefixOrAddr(route.Dest); err != nil {
			warn("policy.routes[%d]: dest %q is not an address or prefix", i, route.Dest)
		}
		for _, src := range splitList(route.Sources) {
			if _, err := parsePrefixOrAddr(src); err != nil {
				warn("policy.routes[%d]: source %q is not an address or prefix", i, src)
			}
		}
	}
	for i, mark := range cfg.Policy.Marks {
		if mark.FwMark == 0 {
			warn("policy.marks[%d]: fwmark is zero", i)
		}
		if err := validatePorts(mark.Ports); err != nil {
			warn("policy.marks[%d]: %v", i, err)
		}
	}
	return warnings
}

func checkPeers(peers []tunnel.Peer) []string {
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	var claimed netipx.IPSetBuilder
	seenKeys := make(map[string]int, len(peers))
	for i, peer := range peers {
		switch {
		case strings.TrimSpace(peer.PublicKey) == "":
			warn("peers[%d]: public key is missing", i)
		case !keys.Valid(peer.PublicKey):
			warn("peers[%d]: public key is not a valid key", i)
		default:
			if prev, ok := seenKeys[peer.PublicKey]; ok {
				warn("peers[%d]: public key duplicates peers[%d]", i, prev)
			} else {
				seenKeys[peer.PublicKey] = i
			}
		}
		if peer.PresharedKey != "" && !keys.Valid(peer.PresharedKey) {
			warn("peers[%d]: preshared key is not a valid key", i)
		}
		if peer.Endpoint != "" {
			if err := ValidateEndpoint(peer.Endpoint); err != nil {
				warn("peers[%d]: %v", i, err)
			}
		}
		if peer.Keepalive > 65535 {
			warn("peers[%d]: keepalive %d exceeds 65535", i, peer.Keepalive)
		}

		entries := parseCSVList(peer.AllowedIPs)
		if len(entries) == 0 {
			warn("peers[%d]: allowed_ips is empty", i)
			continue
		}
		current, err := claimed.IPSet()
		if err != nil {
			current = nil
		}
		for _, entry := range entries {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				warn("peers[%d]: allowed ip %q is not a prefix", i, entry)
				continue
			}
			prefix = prefix.Masked()
			if current != nil && current.OverlapsPrefix(prefix) {
				warn("peers[%d]: allowed ip %s overlaps an earlier peer", i, prefix)
			}
			claimed.AddPrefix(prefix)
		}
	}
	return warnings
}

// splitList accepts comma or whitespace separated entries.
func splitList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// validatePorts accepts "80", "80,443" and ranges like "1000-2000".
func validatePorts(spec string) error {
	entries := splitList(spec)
	if len(entries) == 0 {
		return fmt.Errorf("ports are required")
	}
	for _, entry := range entries {
		lo, hi, isRange := strings.Cut(entry, "-")
		first, err := parsePort(lo)
		if err != nil {
			return fmt.Errorf("port %q: %w", entry, err)
		}
		if !isRange {
			continue
		}
		last, err := parsePort(hi)
		if err != nil {
			return fmt.Errorf("port %q: %w", entry, err)
		}
		if last < first {
			return fmt.Errorf("port range %q is reversed", entry)
		}
	}
	return nil
}

func parsePort(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("out of range")
	}
	return n, nil
}
