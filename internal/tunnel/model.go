// Package tunnel defines the AmneziaWG tunnel configuration document exchanged
// between the editor and the backend.
package tunnel

// InterfaceConfig is the local tunnel interface section.
type InterfaceConfig struct {
	Enabled    bool   `json:"enabled"`
	Name       string `json:"name"`
	ListenPort uint16 `json:"listen_port"`
	MTU        string `json:"mtu"`
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
	IPv4       string `json:"ipv4"`
	IPv6       string `json:"ipv6"`
	DNS        string `json:"dns"`
}

// Peer is one remote peer. Peers are identified by position, not by key.
type Peer struct {
	Name         string `json:"name"`
	AllowedIPs   string `json:"allowed_ips"`
	PublicKey    string `json:"public_key"`
	PresharedKey string `json:"preshared_key"`
	Endpoint     string `json:"endpoint"`
	Keepalive    uint   `json:"keepalive"`
}

// ObfuscationConfig controls the transport disguise layer.
type ObfuscationConfig struct {
	Enabled bool   `json:"enabled"`
	Mode    string `json:"mode"`
	Secret  string `json:"secret"`
	Padding uint   `json:"padding"`
}

// TransportConfig selects the carrier protocol.
type TransportConfig struct {
	Proto            string `json:"proto"`
	EndpointOverride string `json:"endpoint_override"`
	HandshakeTimeout uint   `json:"handshake_timeout"`
}

// PolicyRoute sends traffic for Dest (optionally limited to Sources) via Table.
type PolicyRoute struct {
	Table   string `json:"table"`
	Dest    string `json:"dest"`
	Sources string `json:"sources"`
}

// MarkRule tags traffic on Ports with FwMark.
type MarkRule struct {
	FwMark uint32 `json:"fwmark"`
	Ports  string `json:"ports"`
}

// Policy holds the ordered routing and mark tables. Order is first-match.
type Policy struct {
	Routes []PolicyRoute `json:"routes"`
	Marks  []MarkRule    `json:"marks"`
}

// AdvancedHooks holds interface lifecycle hooks and raw extra config.
type AdvancedHooks struct {
	PreUp    string `json:"pre_up"`
	PostUp   string `json:"post_up"`
	PreDown  string `json:"pre_down"`
	PostDown string `json:"post_down"`
	Extra    string `json:"extra"`
}

// Config is the full tunnel configuration document.
type Config struct {
	Interface InterfaceConfig   `json:"interface"`
	Peers     []Peer            `json:"peers"`
	Obfs      ObfuscationConfig `json:"obfs"`
	Transport TransportConfig   `json:"transport"`
	Policy    Policy            `json:"policy"`
	Advanced  AdvancedHooks     `json:"advanced"`
}

// Route tables.
const (
	TableWAN = "wan"
	TableWG  = "wg"
)

// Obfuscation modes understood by the backend.
const (
	ModeNone = "none"
	ModeJunk = "junk"
	ModeTLS  = "tls"
	ModeQUIC = "quic"
)

// Transport protocols.
const (
	ProtoUDP = "UDP"
	ProtoTCP = "TCP"
	ProtoWS  = "WS"
)

// Defaults returns the configuration a fresh process starts from.
func Defaults() Config {
	return Config{
		Interface: InterfaceConfig{
			Name:       "awg0",
			ListenPort: 51820,
		},
		Peers: []Peer{},
		Obfs: ObfuscationConfig{
			Mode: ModeNone,
		},
		Transport: TransportConfig{
			Proto:            ProtoUDP,
			HandshakeTimeout: 5,
		},
		Policy: Policy{
			Routes: []PolicyRoute{},
			Marks:  []MarkRule{},
		},
	}
}

// Clone returns a deep copy that shares no slices with c.
func (c Config) Clone() Config {
	out := c
	out.Peers = append(make([]Peer, 0, len(c.Peers)), c.Peers...)
	out.Policy = c.Policy.Clone()
	return out
}

// Clone returns a deep copy of the policy tables.
func (p Policy) Clone() Policy {
	return Policy{
		Routes: append(make([]PolicyRoute, 0, len(p.Routes)), p.Routes...),
		Marks:  append(make([]MarkRule, 0, len(p.Marks)), p.Marks...),
	}
}
