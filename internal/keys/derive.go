package keys

import (
	"fmt"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// PublicKey derives the curve25519 public key for a base64 private key.
// Only the backend calls this; the editor leaves public_key empty.
func PublicKey(privateKey string) (string, error) {
	key, err := wgtypes.ParseKey(strings.TrimSpace(privateKey))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	return key.PublicKey().String(), nil
}

// Valid reports whether text is a base64 encoding of exactly 32 bytes.
func Valid(text string) bool {
	_, err := wgtypes.ParseKey(strings.TrimSpace(text))
	return err == nil
}
