// Package address canonicalizes chain addresses before they reach the ledger.
// Every write path runs through Canonical so the same wallet never splits into
// multiple ledger histories over letter casing.
package address

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const hexLen = 40

// Canonical validates addr and returns its EIP-55 checksummed form.
func Canonical(addr string) (string, error) {
	trimmed := strings.TrimSpace(addr)
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		return "", fmt.Errorf("address %q missing 0x prefix", addr)
	}
	hexPart := strings.ToLower(trimmed[2:])
	if len(hexPart) != hexLen {
		return "", fmt.Errorf("address %q must carry %d hex characters", addr, hexLen)
	}
	for _, c := range hexPart {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("address %q contains non-hex character %q", addr, c)
		}
	}

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(hexPart))
	sum := hasher.Sum(nil)

	out := []byte(hexPart)
	for i, c := range out {
		if c >= '0' && c <= '9' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = c - ('a' - 'A')
		}
	}
	return "0x" + string(out), nil
}

// Equal reports whether two addresses name the same wallet regardless of
// casing. Invalid addresses never compare equal.
func Equal(a, b string) bool {
	ca, err := Canonical(a)
	if err != nil {
		return false
	}
	cb, err := Canonical(b)
	if err != nil {
		return false
	}
	return ca == cb
}

// Mask elides the middle of an address for display, keeping a fixed-length
// prefix and suffix.
func Mask(addr string) string {
	const (
		prefix = 6
		suffix = 4
	)
	trimmed := strings.TrimSpace(addr)
	if len(trimmed) <= prefix+suffix {
		return trimmed
	}
	return trimmed[:prefix] + "…" + trimmed[len(trimmed)-suffix:]
}
