package util

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateToken returns a URL-safe random token built from n random bytes.
// Used for authorization codes, access tokens and API keys.
func GenerateToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
