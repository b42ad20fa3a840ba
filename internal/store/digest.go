package store

import (
	"crypto/sha256"
	"encoding/hex"
)

// URLDigest returns the hex SHA-256 of the exact URL string. It backs the
// uniqueness of registered URLs without indexing unbounded text.
func URLDigest(longURL string) string {
	h := sha256.Sum256([]byte(longURL))

	return hex.EncodeToString(h[:])
}
