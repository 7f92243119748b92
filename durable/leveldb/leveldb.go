// Package leveldb is an on-disk durable.Store backed by goleveldb.
package leveldb

import (
	"context"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

type Store struct {
	db   *leveldb.DB
	sync bool
}

// Open opens or creates the database at path. With sync every Put is
// fsynced before returning.
func Open(path string, sync bool) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, sync: sync}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	return s.db.Put([]byte(key), value, &opt.WriteOptions{Sync: s.sync})
}

func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Delete([]byte(key), nil)
}

func (s *Store) Close(context.Context) error { return s.db.Close() }
