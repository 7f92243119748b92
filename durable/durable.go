// Package durable holds the last known good upstream markup per owner and
// snippet. It is written only after a successful fetch and read only when a
// fetch fails, so content that was once visible stays visible through
// upstream outages. Nothing here expires.
package durable

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/unkn0wn-root/gistcache/codec"
)

// Entry is the durable record of one snippet.
type Entry struct {
	Content    string    `json:"content" cbor:"content" msgpack:"content"`
	Stylesheet string    `json:"stylesheet,omitempty" cbor:"stylesheet,omitempty" msgpack:"stylesheet,omitempty"`
	FetchedAt  time.Time `json:"fetched_at" cbor:"fetched_at" msgpack:"fetched_at"`
}

// Store is a persistent byte store. Must be safe for concurrent use.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put overwrites key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close(ctx context.Context) error
}

// EntryCodec resolves a codec name to an Entry codec: json (default),
// cbor, msgpack or proto.
func EntryCodec(name string) (codec.Codec[Entry], error) {
	if name == NameProto {
		return ProtoCodec{}, nil
	}
	c, err := codec.ByName[Entry](name)
	if err != nil {
		return nil, fmt.Errorf("durable: %w", err)
	}
	return c, nil
}

// Local keeps entries in process memory. It does not survive restarts and
// is meant for tests and single-shot tools.
type Local struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewLocal() *Local { return &Local{m: make(map[string][]byte)} }

func (l *Local) Get(_ context.Context, key string) ([]byte, bool, error) {
	l.mu.RLock()
	v, ok := l.m[key]
	l.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (l *Local) Put(_ context.Context, key string, value []byte) error {
	l.mu.Lock()
	l.m[key] = append([]byte(nil), value...)
	l.mu.Unlock()
	return nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.m, key)
	l.mu.Unlock()
	return nil
}

func (l *Local) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.m)
}

func (l *Local) Close(context.Context) error { return nil }
