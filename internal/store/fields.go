package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"amneziawg-webui/internal/tunnel"
)

// field binds one dotted path to a scalar in tunnel.Config.
type field struct {
	get func(*tunnel.Config) any
	set func(*tunnel.Config, any) error
}

func stringField(ptr func(*tunnel.Config) *string) field {
	return field{
		get: func(c *tunnel.Config) any { return *ptr(c) },
		set: func(c *tunnel.Config, v any) error {
			s, err := cast.ToStringE(plain(v))
			if err != nil {
				return err
			}
			*ptr(c) = s
			return nil
		},
	}
}

func boolField(ptr func(*tunnel.Config) *bool) field {
	return field{
		get: func(c *tunnel.Config) any { return *ptr(c) },
		set: func(c *tunnel.Config, v any) error {
			b, err := toBool(v)
			if err != nil {
				return err
			}
			*ptr(c) = b
			return nil
		},
	}
}

func uintField(ptr func(*tunnel.Config) *uint) field {
	return field{
		get: func(c *tunnel.Config) any { return *ptr(c) },
		set: func(c *tunnel.Config, v any) error {
			n, err := toUint(v, 64)
			if err != nil {
				return err
			}
			*ptr(c) = uint(n)
			return nil
		},
	}
}

func portField(ptr func(*tunnel.Config) *uint16) field {
	return field{
		get: func(c *tunnel.Config) any { return *ptr(c) },
		set: func(c *tunnel.Config, v any) error {
			n, err := toUint(v, 16)
			if err != nil {
				return err
			}
			*ptr(c) = uint16(n)
			return nil
		},
	}
}

// toUint rejects negatives and values wider than bits instead of wrapping.
func toUint(v any, bits int) (uint64, error) {
	v = plain(v)
	if s, ok := v.(string); ok {
		if strings.TrimSpace(s) == "" {
			return 0, nil
		}
		return tunnel.ParseUint(s, bits)
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	if bits < 64 && uint64(n) >= 1<<bits {
		return 0, fmt.Errorf("value %d out of range", n)
	}
	return uint64(n), nil
}

var fields = map[string]field{
	"interface.enabled":     boolField(func(c *tunnel.Config) *bool { return &c.Interface.Enabled }),
	"interface.name":        stringField(func(c *tunnel.Config) *string { return &c.Interface.Name }),
	"interface.listen_port": portField(func(c *tunnel.Config) *uint16 { return &c.Interface.ListenPort }),
	"interface.mtu":         stringField(func(c *tunnel.Config) *string { return &c.Interface.MTU }),
	"interface.private_key": stringField(func(c *tunnel.Config) *string { return &c.Interface.PrivateKey }),
	"interface.public_key":  stringField(func(c *tunnel.Config) *string { return &c.Interface.PublicKey }),
	"interface.ipv4":        stringField(func(c *tunnel.Config) *string { return &c.Interface.IPv4 }),
	"interface.ipv6":        stringField(func(c *tunnel.Config) *string { return &c.Interface.IPv6 }),
	"interface.dns":         stringField(func(c *tunnel.Config) *string { return &c.Interface.DNS }),

	"obfs.enabled": boolField(func(c *tunnel.Config) *bool { return &c.Obfs.Enabled }),
	"obfs.mode":    stringField(func(c *tunnel.Config) *string { return &c.Obfs.Mode }),
	"obfs.secret":  stringField(func(c *tunnel.Config) *string { return &c.Obfs.Secret }),
	"obfs.padding": uintField(func(c *tunnel.Config) *uint { return &c.Obfs.Padding }),

	"transport.proto":             stringField(func(c *tunnel.Config) *string { return &c.Transport.Proto }),
	"transport.endpoint_override": stringField(func(c *tunnel.Config) *string { return &c.Transport.EndpointOverride }),
	"transport.handshake_timeout": uintField(func(c *tunnel.Config) *uint { return &c.Transport.HandshakeTimeout }),

	"advanced.pre_up":    stringField(func(c *tunnel.Config) *string { return &c.Advanced.PreUp }),
	"advanced.post_up":   stringField(func(c *tunnel.Config) *string { return &c.Advanced.PostUp }),
	"advanced.pre_down":  stringField(func(c *tunnel.Config) *string { return &c.Advanced.PreDown }),
	"advanced.post_down": stringField(func(c *tunnel.Config) *string { return &c.Advanced.PostDown }),
	"advanced.extra":     stringField(func(c *tunnel.Config) *string { return &c.Advanced.Extra }),
}

// scalarSections are the document sections made only of registered fields.
var scalarSections = []string{"interface", "obfs", "transport", "advanced"}

// Paths returns every settable dotted path, sorted.
func Paths() []string {
	out := make([]string, 0, len(fields))
	for path := range fields {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func sectionFields(section string) map[string]field {
	prefix := section + "."
	out := make(map[string]field)
	for path, f := range fields {
		if strings.HasPrefix(path, prefix) {
			out[strings.TrimPrefix(path, prefix)] = f
		}
	}
	return out
}

// toBool also accepts the "on"/"off" values HTML checkboxes submit.
func toBool(v any) (bool, error) {
	v = plain(v)
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "on", "yes":
			return true, nil
		case "off", "no", "":
			return false, nil
		}
	}
	return cast.ToBoolE(v)
}

// plain unwraps json.Number so cast sees an ordinary string.
func plain(v any) any {
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	return v
}
