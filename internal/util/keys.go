package util

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// digestLen is the number of hex chars kept from a sha256 sum (128 bits).
const digestLen = 32

// HashPairs returns a deterministic digest of name=value pairs. Pairs are
// sorted by name so map iteration order never leaks into the result.
func HashPairs(tag string, pairs map[string]string) string {
	names := make([]string, 0, len(pairs))
	for n := range pairs {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(tag)
	for _, n := range names {
		b.WriteByte(0)
		b.WriteString(n)
		b.WriteByte('=')
		b.WriteString(pairs[n])
	}
	return Digest(b.String())
}

// Digest hashes the parts (NUL separated) and returns a short hex string.
func Digest(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])[:digestLen]
}
