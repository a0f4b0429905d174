package vpn

import (
	"bufio"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"amneziawg-webui/internal/store"
	"amneziawg-webui/internal/tunnel"
)

// metaPrefix marks comment lines that carry document fields awg-quick itself
// has no directive for, e.g. "#@ obfs.mode = tls".
const metaPrefix = "#@"

// ParseConfig parses awg-quick text into a tunnel configuration. Fields the
// text does not mention keep their defaults. Policy tables are never set.
func ParseConfig(raw string) (tunnel.Config, error) {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 1024), 1024*1024)

	s := store.New()
	var (
		section   string
		peers     []tunnel.Peer
		current   *tunnel.Peer
		addresses []string
		dns       []string
		extras    []string
		sawIface  bool
		lineNum   int
	)
	hookLines := map[string][]string{}

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, metaPrefix) {
			key, value, ok := splitINIKeyValue(strings.TrimSpace(strings.TrimPrefix(line, metaPrefix)))
			if !ok {
				continue
			}
			if section == "peer" && current != nil && strings.EqualFold(key, "name") {
				current.Name = value
				continue
			}
			_ = s.Set(key, value)
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			switch section {
			case "interface":
				sawIface = true
				current = nil
			case "peer":
				peers = append(peers, tunnel.Peer{})
				current = &peers[len(peers)-1]
			default:
				return tunnel.Config{}, fmt.Errorf("line %d: unsupported section [%s]", lineNum, section)
			}
			continue
		}

		key, value, ok := splitINIKeyValue(line)
		if !ok {
			return tunnel.Config{}, fmt.Errorf("line %d: invalid key-value pair", lineNum)
		}
		lowerKey := strings.ToLower(key)
		if !isHookKey(lowerKey) {
			value = stripInlineComment(value)
		}

		switch section {
		case "interface":
			switch lowerKey {
			case "privatekey":
				_ = s.Set("interface.private_key", value)
			case "address":
				addresses = append(addresses, parseCSVList(value)...)
			case "dns":
				dns = append(dns, parseCSVList(value)...)
			case "listenport":
				if err := s.Set("interface.listen_port", value); err != nil {
					return tunnel.Config{}, fmt.Errorf("line %d: invalid ListenPort %q", lineNum, value)
				}
			case "mtu":
				_ = s.Set("interface.mtu", value)
			case "preup", "postup", "predown", "postdown":
				hookLines[lowerKey] = append(hookLines[lowerKey], value)
			default:
				extras = append(extras, key+" = "+value)
			}
		case "peer":
			if current == nil {
				return tunnel.Config{}, fmt.Errorf("line %d: key outside of [Peer] section", lineNum)
			}
			applyPeerField(current, lowerKey, value)
		default:
			return tunnel.Config{}, fmt.Errorf("line %d: key outside known section", lineNum)
		}
	}
	if err := scanner.Err(); err != nil {
		return tunnel.Config{}, err
	}
	if !sawIface {
		return tunnel.Config{}, fmt.Errorf("[Interface] section is required")
	}

	v4, v6 := splitAddressFamilies(addresses)
	_ = s.Set("interface.ipv4", v4)
	_ = s.Set("interface.ipv6", v6)
	_ = s.Set("interface.dns", strings.Join(dns, ", "))
	for key, path := range map[string]string{
		"preup":    "advanced.pre_up",
		"postup":   "advanced.post_up",
		"predown":  "advanced.pre_down",
		"postdown": "advanced.post_down",
	} {
		if lines := hookLines[key]; len(lines) > 0 {
			_ = s.Set(path, strings.Join(lines, "; "))
		}
	}
	if len(extras) > 0 {
		_ = s.Set("advanced.extra", strings.Join(extras, "\n"))
	}
	if peers == nil {
		peers = []tunnel.Peer{}
	}
	_ = s.Set("peers", peers)
	return s.Snapshot(), nil
}

func isHookKey(key string) bool {
	switch key {
	case "preup", "postup", "predown", "postdown":
		return true
	}
	return false
}

func applyPeerField(target *tunnel.Peer, key, value string) {
	switch key {
	case "publickey":
		target.PublicKey = value
	case "presharedkey":
		target.PresharedKey = value
	case "allowedips":
		ips := parseCSVList(value)
		if target.AllowedIPs != "" {
			ips = append([]string{target.AllowedIPs}, ips...)
		}
		target.AllowedIPs = strings.Join(ips, ", ")
	case "endpoint":
		target.Endpoint = value
	case "persistentkeepalive":
		if strings.EqualFold(value, "off") {
			target.Keepalive = 0
			return
		}
		if n, err := strconv.ParseUint(value, 10, 16); err == nil {
			target.Keepalive = uint(n)
		}
	}
}

// splitAddressFamilies returns the first IPv4 and first IPv6 address.
func splitAddressFamilies(addresses []string) (string, string) {
	var v4, v6 string
	for _, addr := range addresses {
		prefix, err := parsePrefixOrAddr(addr)
		if err != nil {
			continue
		}
		if prefix.Addr().Is4() && v4 == "" {
			v4 = addr
		}
		if prefix.Addr().Is6() && !prefix.Addr().Is4In6() && v6 == "" {
			v6 = addr
		}
	}
	return v4, v6
}

func parsePrefixOrAddr(value string) (netip.Prefix, error) {
	trimmed := strings.TrimSpace(value)
	if strings.Contains(trimmed, "/") {
		return netip.ParsePrefix(trimmed)
	}
	addr, err := netip.ParseAddr(trimmed)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func splitINIKeyValue(line string) (string, string, bool) {
	if idx := strings.Index(line, "="); idx >= 0 {
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if key == "" {
			return "", "", false
		}
		return key, value, true
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "", false
	}
	key := fields[0]
	value := strings.TrimSpace(line[len(key):])
	return key, value, true
}

func parseCSVList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		items = append(items, trimmed)
	}
	return items
}

func stripInlineComment(value string) string {
	for _, marker := range []string{" #", " ;"} {
		if idx := strings.Index(value, marker); idx >= 0 {
			value = value[:idx]
		}
	}
	return strings.TrimSpace(value)
}
