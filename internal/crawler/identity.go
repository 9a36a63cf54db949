package crawler

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"unicode"
)

// identityLen is the length of a stable product identity. Truncation is for
// dedup compactness, not security.
const identityLen = 12

// ProductIdentity derives the stable product key used for idempotent
// upserts. A declared SKU wins: it is normalized so the same SKU seen on
// different URLs collides to one identity. Without a SKU the identity is a
// deterministic function of the URL alone.
func ProductIdentity(productURL, sku string) string {
	if norm := NormalizeSKU(sku); norm != "" {
		return norm
	}
	sum := sha1.Sum([]byte(productURL))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:identityLen]
}

// NormalizeSKU strips non-alphanumeric runes, uppercases, and truncates to
// the identity length. An effectively empty SKU normalizes to "".
func NormalizeSKU(sku string) string {
	var b strings.Builder
	for _, r := range sku {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	out := b.String()
	if len(out) > identityLen {
		out = out[:identityLen]
	}
	return out
}
