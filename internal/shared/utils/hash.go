package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Hasher derives content-addressable keys from sha256 digests
type Hasher struct{}

// DefaultHasher returns the shared hasher
func DefaultHasher() *Hasher {
	return &Hasher{}
}

// Hash computes a hex digest of data
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString computes a hex digest of s
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// HashFields digests an ordered tuple. Each field is length-prefixed, so
// ("a|b", "c") and ("a", "b|c") never collide, and field order matters.
func (h *Hasher) HashFields(fields ...string) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(strconv.Itoa(len(f)))
		b.WriteByte(':')
		b.WriteString(f)
		b.WriteByte('|')
	}
	return h.HashString(b.String())
}

// Key builds a namespaced cache key such as "proxy:<digest>".
func (h *Hasher) Key(namespace string, fields ...string) string {
	return namespace + ":" + h.HashFields(fields...)
}
