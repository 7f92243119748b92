// Package nats is a durable.Store on a NATS JetStream key-value bucket, for
// deployments where several replicas share one fallback store.
package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type Store struct {
	kv        jetstream.KeyValue
	conn      *nats.Conn
	closeConn bool
}

type Config struct {
	Conn      *nats.Conn
	Bucket    string // created when missing
	Replicas  int    // 0 => 1
	CloseConn bool
}

// New binds to the bucket, creating it if it does not exist.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Conn == nil {
		return nil, errors.New("durable/nats: connection is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("durable/nats: bucket is required")
	}
	js, err := jetstream.New(cfg.Conn)
	if err != nil {
		return nil, fmt.Errorf("durable/nats: jetstream: %w", err)
	}
	kv, err := js.KeyValue(ctx, cfg.Bucket)
	if err != nil {
		kv, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      cfg.Bucket,
			Description: "gistcache last known good snippets",
			History:     1,
			Replicas:    max(cfg.Replicas, 1),
			Storage:     jetstream.FileStorage,
		})
		if err != nil {
			return nil, fmt.Errorf("durable/nats: bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &Store{kv: kv, conn: cfg.Conn, closeConn: cfg.CloseConn}, nil
}

// Keys are limited to [-/_=.a-zA-Z0-9]; ":" is mapped to ".".
func kvKey(key string) string {
	b := []byte(key)
	for i, c := range b {
		if c == ':' {
			b[i] = '.'
		}
	}
	return string(b)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, err := s.kv.Get(ctx, kvKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e.Value(), true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.kv.Put(ctx, kvKey(key), value)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.kv.Purge(ctx, kvKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (s *Store) Close(context.Context) error {
	if s.closeConn {
		s.conn.Close()
	}
	return nil
}
