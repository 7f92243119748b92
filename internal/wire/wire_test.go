package wire

import (
	"bytes"
	"math"
	"testing"
	"time"
)

func mustDecode(t *testing.T, b []byte) Entry {
	t.Helper()
	e, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return e
}

func TestRoundTripValueAndUnknown(t *testing.T) {
	stored := time.Unix(1700000000, 123456789)
	cases := []Entry{
		{Kind: KindValue, Gen: 0, StoredAt: stored, TTL: 24 * time.Hour, Payload: nil},
		{Kind: KindValue, Gen: 42, StoredAt: stored, TTL: time.Hour, Payload: []byte("<table></table>")},
		{Kind: KindValue, Gen: math.MaxUint64, StoredAt: stored, TTL: 0, Payload: []byte{0, 1, 2}},
		{Kind: KindUnknown, Gen: 7, StoredAt: stored, TTL: time.Hour},
	}
	for _, tc := range cases {
		got := mustDecode(t, Encode(tc))
		if got.Kind != tc.Kind || got.Gen != tc.Gen || got.TTL != tc.TTL {
			t.Fatalf("header mismatch: got %+v want %+v", got, tc)
		}
		if !got.StoredAt.Equal(tc.StoredAt) {
			t.Fatalf("storedAt: got %v want %v", got.StoredAt, tc.StoredAt)
		}
		if !bytes.Equal(got.Payload, tc.Payload) {
			t.Fatalf("payload: got %x want %x", got.Payload, tc.Payload)
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	enc := Encode(Entry{Kind: KindValue, Payload: []byte("x")})
	enc = append(enc, 0xDE, 0xAD)
	if _, err := Decode(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestDecodeRejectsCorruptHeaders(t *testing.T) {
	good := Encode(Entry{Kind: KindValue, Gen: 1, Payload: []byte("abc")})

	mutate := func(f func(b []byte) []byte) []byte {
		cp := append([]byte(nil), good...)
		return f(cp)
	}

	cases := map[string][]byte{
		"empty":       nil,
		"short":       good[:hdrLen-1],
		"bad magic":   mutate(func(b []byte) []byte { b[0] = 'X'; return b }),
		"bad version": mutate(func(b []byte) []byte { b[4] = 9; return b }),
		"bad kind":    mutate(func(b []byte) []byte { b[5] = 9; return b }),
		"truncated":   good[:len(good)-1],
	}
	for name, b := range cases {
		if _, err := Decode(b); err != ErrCorrupt {
			t.Fatalf("%s: want ErrCorrupt, got %v", name, err)
		}
	}
}

func TestDecodeRejectsSentinelWithPayload(t *testing.T) {
	enc := Encode(Entry{Kind: KindUnknown, Payload: []byte("nope")})
	if _, err := Decode(enc); err != ErrCorrupt {
		t.Fatalf("sentinel with payload must be corrupt, got %v", err)
	}
}

func TestExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	e := Entry{StoredAt: now, TTL: time.Hour}

	if e.Expired(now.Add(59 * time.Minute)) {
		t.Fatalf("should be fresh before ttl")
	}
	if !e.Expired(now.Add(time.Hour)) {
		t.Fatalf("should expire exactly at ttl")
	}
	if (Entry{StoredAt: now}).Expired(now.Add(1000 * time.Hour)) {
		t.Fatalf("zero ttl never expires")
	}
}
