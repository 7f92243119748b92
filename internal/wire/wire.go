// Package wire frames cache entries before they reach a provider.
//
// The frame carries the generation the entry was written under, the write
// time and the TTL, so that expiry is enforced on read even when the
// provider has no per-entry TTL (bigcache) or is shared with other writers.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version byte = 1

	// KindValue marks a codec-encoded payload.
	KindValue byte = 1
	// KindUnknown marks the "no content could be determined" sentinel.
	// Sentinel frames carry no payload.
	KindUnknown byte = 2
)

var (
	ErrCorrupt = errors.New("gistcache: corrupt entry")
	magic4     = [...]byte{'G', 'I', 'S', 'T'}
)

const hdrLen = 4 + 1 + 1 + 8 + 8 + 8 + 4

// Entry is a decoded frame. Payload aliases the input slice.
type Entry struct {
	Kind     byte
	Gen      uint64
	StoredAt time.Time
	TTL      time.Duration
	Payload  []byte
}

// Expired reports whether the entry is past its TTL at now.
// A non-positive TTL never expires.
func (e Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return !now.Before(e.StoredAt.Add(e.TTL))
}

// Encode: magic(4) | ver(1) | kind(1) | gen(u64 be) | storedAt(i64 be, unix nanos) |
// ttl(i64 be, nanos) | vlen(u32 be) | payload(vlen)
func Encode(e Entry) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(e.Kind)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], e.Gen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(e.StoredAt.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(e.TTL))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])

	buf.Write(e.Payload)
	return buf.Bytes()
}

// Decode parses a frame strictly: unknown versions or kinds, short input and
// trailing bytes are all ErrCorrupt.
func Decode(b []byte) (Entry, error) {
	if len(b) < hdrLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return Entry{}, ErrCorrupt
	}
	kind := b[5]
	if kind != KindValue && kind != KindUnknown {
		return Entry{}, ErrCorrupt
	}

	off := 6
	gen := binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	stored := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	ttl := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4

	if vlen < 0 || vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}
	if kind == KindUnknown && vlen != 0 {
		return Entry{}, ErrCorrupt
	}

	return Entry{
		Kind:     kind,
		Gen:      gen,
		StoredAt: time.Unix(0, stored),
		TTL:      time.Duration(ttl),
		Payload:  b[off:],
	}, nil
}
