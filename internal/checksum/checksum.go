// Package checksum fingerprints local document content so history can tell
// whether a document changed since it was last published.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// String is Sum for text content.
func String(s string) string {
	return Sum([]byte(s))
}
