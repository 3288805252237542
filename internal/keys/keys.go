// Package keys derives content-addressed cache keys.
//
// Keys are full SHA-256 digests rendered as hex. The digest width makes
// accidental collisions a negligible-probability event; collisions are
// accepted rather than corrected.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key is an opaque, fixed-length cache key. Equal inputs always derive
// equal keys.
type Key string

// FromBytes derives a key from raw bytes.
func FromBytes(b []byte) Key {
	sum := sha256.Sum256(b)
	return Key(hex.EncodeToString(sum[:]))
}

// FromURL derives a key addressing a fetched resource by its URL.
// The URL is trimmed but otherwise used as-is: two spellings of the
// same resource ("http://a" vs "http://a/") are distinct fetch keys.
// Deduplication across URLs happens one tier down, where results are
// addressed by content.
func FromURL(rawURL string) Key {
	return FromBytes([]byte(strings.TrimSpace(rawURL)))
}

// FromText derives a key addressing derived results by the normalized
// text they were computed from. Two different URLs rendering identical
// extracted text share one key.
func FromText(normalized string) Key {
	return FromBytes([]byte(normalized))
}

// Short returns a truncated form suitable for log lines and file names.
func (k Key) Short() string {
	if len(k) > 16 {
		return string(k[:16])
	}
	return string(k)
}

func (k Key) String() string { return string(k) }
