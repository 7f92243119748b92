package codec

import "fmt"

// Limit refuses to decode payloads larger than Max bytes. The cache wraps
// every tier with it: a shared provider (Redis) may hold something huge
// under our keyspace, and an oversized entry is then healed like any other
// undecodable one. Max <= 0 disables the check.
type Limit[V any] struct {
	Inner Codec[V]
	Max   int
}

func (c Limit[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err == nil && c.Max > 0 && len(b) > c.Max {
		return nil, fmt.Errorf("codec: value too large: %d > %d", len(b), c.Max)
	}
	return b, err
}

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.Max > 0 && len(b) > c.Max {
		var zero V
		return zero, fmt.Errorf("codec: payload too large: %d > %d", len(b), c.Max)
	}
	return c.Inner.Decode(b)
}
