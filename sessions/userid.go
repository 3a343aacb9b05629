package sessions

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// UserID derives the pseudonymous user id for a contact address. The id is a
// keyed BLAKE2b-256 hash, so it is stable for a given secret and cannot be
// reversed into a phone number without it. The secret may be at most 64 bytes.
func UserID(secret []byte, contactAddress string) (string, error) {
	h, err := blake2b.New256(secret)
	if err != nil {
		return "", fmt.Errorf("invalid user id secret: %w", err)
	}
	h.Write([]byte(NormalizeContact(contactAddress)))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// NormalizeContact strips formatting from a phone number, keeping a leading
// "+" and the digits. Other addresses are lowercased and trimmed.
func NormalizeContact(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return addr
	}
	isPhone := true
	for _, r := range addr {
		if !unicode.IsDigit(r) && !strings.ContainsRune("+-(). ", r) {
			isPhone = false
			break
		}
	}
	if !isPhone {
		return strings.ToLower(addr)
	}

	var b strings.Builder
	for i, r := range addr {
		if unicode.IsDigit(r) || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
