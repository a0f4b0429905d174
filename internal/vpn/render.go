package vpn

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/aymerick/raymond"

	"amneziawg-webui/internal/tunnel"
)

//go:embed templates/awg-quick.conf.hbs
var templateFS embed.FS

const quickTemplatePath = "templates/awg-quick.conf.hbs"

var (
	quickTemplateOnce sync.Once
	quickTemplate     *raymond.Template
	quickTemplateErr  error
)

func loadQuickTemplate() (*raymond.Template, error) {
	quickTemplateOnce.Do(func() {
		source, err := templateFS.ReadFile(quickTemplatePath)
		if err != nil {
			quickTemplateErr = err
			return
		}
		quickTemplate, quickTemplateErr = raymond.Parse(string(source))
	})
	return quickTemplate, quickTemplateErr
}

// RenderConfig renders cfg as awg-quick text. Document fields without an
// awg-quick directive are written as "#@ path = value" comments, which
// ParseConfig reads back. Policy tables are not rendered.
func RenderConfig(cfg tunnel.Config) (string, error) {
	tpl, err := loadQuickTemplate()
	if err != nil {
		return "", fmt.Errorf("load awg-quick template: %w", err)
	}
	out, err := tpl.Exec(quickContext(cfg))
	if err != nil {
		return "", fmt.Errorf("render awg-quick config: %w", err)
	}
	return out, nil
}

func quickContext(cfg tunnel.Config) map[string]any {
	iface := cfg.Interface

	var addresses []string
	for _, addr := range []string{iface.IPv4, iface.IPv6} {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			addresses = append(addresses, trimmed)
		}
	}

	var hooks []string
	for _, hook := range []struct{ key, value string }{
		{"PreUp", cfg.Advanced.PreUp},
		{"PostUp", cfg.Advanced.PostUp},
		{"PreDown", cfg.Advanced.PreDown},
		{"PostDown", cfg.Advanced.PostDown},
	} {
		if strings.TrimSpace(hook.value) != "" {
			hooks = append(hooks, hook.key+" = "+hook.value)
		}
	}

	meta := []string{
		fmt.Sprintf("interface.name = %s", iface.Name),
		fmt.Sprintf("interface.enabled = %t", iface.Enabled),
		fmt.Sprintf("obfs.enabled = %t", cfg.Obfs.Enabled),
		fmt.Sprintf("obfs.mode = %s", cfg.Obfs.Mode),
	}
	if cfg.Obfs.Secret != "" {
		meta = append(meta, fmt.Sprintf("obfs.secret = %s", cfg.Obfs.Secret))
	}
	if cfg.Obfs.Padding > 0 {
		meta = append(meta, fmt.Sprintf("obfs.padding = %d", cfg.Obfs.Padding))
	}
	meta = append(meta,
		fmt.Sprintf("transport.proto = %s", cfg.Transport.Proto),
		fmt.Sprintf("transport.handshake_timeout = %d", cfg.Transport.HandshakeTimeout),
	)
	if cfg.Transport.EndpointOverride != "" {
		meta = append(meta, fmt.Sprintf("transport.endpoint_override = %s", cfg.Transport.EndpointOverride))
	}

	peers := make([]map[string]any, 0, len(cfg.Peers))
	for _, peer := range cfg.Peers {
		peers = append(peers, map[string]any{
			"name":         peer.Name,
			"publicKey":    peer.PublicKey,
			"presharedKey": peer.PresharedKey,
			"allowedIPs":   peer.AllowedIPs,
			"endpoint":     peer.Endpoint,
			"keepalive":    peer.Keepalive,
		})
	}

	return map[string]any{
		"privateKey": iface.PrivateKey,
		"address":    strings.Join(addresses, ", "),
		"listenPort": iface.ListenPort,
		"mtu":        iface.MTU,
		"dns":        iface.DNS,
		"hooks":      hooks,
		"meta":       meta,
		"extra":      strings.TrimSpace(cfg.Advanced.Extra),
		"peers":      peers,
	}
}
