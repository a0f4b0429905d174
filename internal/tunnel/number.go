package tunnel

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseUint reads a numeric form field as decimal, or as hex when it carries
// an explicit 0x prefix. Leading zeros stay decimal ("025" is 25); octal,
// binary and underscore forms are rejected. Blank input is an error.
func ParseUint(raw string, bits int) (uint64, error) {
	s := strings.TrimSpace(raw)
	base := 10
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s, base = s[2:], 16
	}
	n, err := strconv.ParseUint(s, base, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	return n, nil
}
