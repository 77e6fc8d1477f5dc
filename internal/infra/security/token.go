package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// BearerPrefix is the literal, case-sensitive scheme expected in Authorization headers.
const BearerPrefix = "Bearer "

// HashToken calculates a SHA-256 hash of the provided value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// TokensEqual compares two credentials in constant time.
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ExtractBearer returns the credential following the Bearer prefix.
// The second return value is false when the prefix is missing or nothing follows it.
func ExtractBearer(header string) (string, bool) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(BearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
