// Package token generates and verifies namespace credentials.
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	// ReadTokenBytes of randomness encode to a 24-character read token.
	ReadTokenBytes = 18
	// WriteTokenBytes of randomness encode to a 48-character write token.
	WriteTokenBytes = 36
)

// base64 emits '+', '/' and '=' which are awkward in URLs and headers.
// Remapping each to a fixed letter keeps tokens alphanumeric at a small,
// accepted entropy cost.
var alphanumeric = strings.NewReplacer("+", "a", "/", "b", "=", "c")

// Generate draws byteLen cryptographically secure random bytes and encodes
// them into a fixed-length alphanumeric string.
func Generate(byteLen int) (string, error) {
	raw := make([]byte, byteLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("rand.Read: %w", err)
	}
	return alphanumeric.Replace(base64.StdEncoding.EncodeToString(raw)), nil
}

// Verify compares a provided token against the stored secret in constant
// time. Ordinary string equality may exit at the first differing byte and
// leak the mismatch position through timing, so the comparison goes through
// crypto/subtle, which checks length and then inspects every byte.
func Verify(provided, secret string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) == 1
}

// FromAuthorization extracts the raw token from an Authorization header
// value, stripping an optional case-insensitive "Bearer " prefix.
func FromAuthorization(header string) string {
	header = strings.TrimSpace(header)
	const prefix = "bearer "
	if len(header) >= len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return header
}
