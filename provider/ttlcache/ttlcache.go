package ttlcache

import (
	"context"
	"sync"
	"time"

	tc "github.com/jellydator/ttlcache/v3"

	pr "github.com/unkn0wn-root/gistcache/provider"
)

// Provider keeps entries in a jellydator/ttlcache instance. Hits do not
// extend an entry's lifetime.
type Provider struct {
	c    *tc.Cache[string, []byte]
	stop sync.Once
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	// Capacity bounds the number of entries (LRU eviction). 0 = unbounded.
	Capacity uint64
	// DefaultTTL applies when Set receives ttl <= 0. 0 = no expiry.
	DefaultTTL time.Duration
}

func New(cfg Config) *Provider {
	opts := []tc.Option[string, []byte]{
		tc.WithDisableTouchOnHit[string, []byte](),
	}
	if cfg.Capacity > 0 {
		opts = append(opts, tc.WithCapacity[string, []byte](cfg.Capacity))
	}
	if cfg.DefaultTTL > 0 {
		opts = append(opts, tc.WithTTL[string, []byte](cfg.DefaultTTL))
	}
	c := tc.New[string, []byte](opts...)
	go c.Start() // expired-item janitor
	return &Provider{c: c}
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	it := p.c.Get(key)
	if it == nil || it.IsExpired() {
		return nil, false, nil
	}
	return it.Value(), true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = tc.DefaultTTL
	}
	p.c.Set(key, value, ttl)
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Delete(key)
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.stop.Do(p.c.Stop)
	return nil
}
