// Package token hashes session tokens for storage.
package token

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashSHA256 returns the hex SHA-256 digest of a raw token. Sessions are
// looked up by this digest so raw tokens never reach the database.
func HashSHA256(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
