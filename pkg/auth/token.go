package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateToken returns 128 bits of randomness as a 32-character hex string.
// Used for connection ids, refresh-token jti claims and generated username
// suffixes.
func GenerateToken() string {
	buf := make([]byte, 16)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
