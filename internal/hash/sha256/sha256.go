// Package sha256 provides SHA-256 digest helpers.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hex returns the hex digest of data.
func Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ShortHex returns the first n hex characters of the digest of data. It is
// used for stable, compact object names; n is clamped to the digest length.
func ShortHex(data []byte, n int) string {
	digest := Hex(data)
	if n <= 0 || n > len(digest) {
		return digest
	}
	return digest[:n]
}
