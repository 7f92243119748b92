// Package redis is a durable.Store on Redis. Keys are written without
// expiry; pair it with a Redis instance configured for persistence.
package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb         redis.UniversalClient
	prefix      string
	closeClient bool
}

type Config struct {
	Client      redis.UniversalClient
	Prefix      string // e.g. "gistcache:durable:"
	CloseClient bool   // close the client in Close
}

func New(cfg Config) *Store {
	return &Store{rdb: cfg.Client, prefix: cfg.Prefix, closeClient: cfg.CloseClient}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

func (s *Store) Close(context.Context) error {
	if s.closeClient {
		return s.rdb.Close()
	}
	return nil
}
