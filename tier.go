package gistcache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/gistcache/codec"
	gen "github.com/unkn0wn-root/gistcache/genstore"
	"github.com/unkn0wn-root/gistcache/internal/wire"
	pr "github.com/unkn0wn-root/gistcache/provider"
)

// tier is one generation-guarded ephemeral keyspace on the shared provider.
// Backend failures never escape: reads degrade to misses, writes are dropped.
type tier[V any] struct {
	name     Tier
	prefix   string
	provider pr.Provider
	codec    codec.Codec[V]
	gen      gen.GenStore
	log      Logger
	hooks    Hooks
	now      func() time.Time
	cost     SetCostFunc
	enabled  bool
}

// lookup is a decoded hit. unknown marks the sentinel.
type lookup[V any] struct {
	value   V
	unknown bool
}

// observed is a generation snapshot taken before a slow path. When the
// gen store failed, valid is false and writes under it are skipped.
type observed struct {
	gen   uint64
	valid bool
}

func newTier[V any](c *Cache, name Tier, cd codec.Codec[V], cost SetCostFunc, enabled bool) *tier[V] {
	return &tier[V]{
		name:     name,
		prefix:   string(name) + ":" + c.ns + ":",
		provider: c.provider,
		codec:    cd,
		gen:      c.gen,
		log:      c.log,
		hooks:    c.hooks,
		now:      c.now,
		cost:     cost,
		enabled:  enabled,
	}
}

func (t *tier[V]) key(k string) string { return t.prefix + k }

func (t *tier[V]) get(ctx context.Context, key string) (lookup[V], bool) {
	if !t.enabled {
		return lookup[V]{}, false
	}
	sk := t.key(key)
	l, ok := t.read(ctx, sk)
	if ok {
		t.hooks.CacheHit(t.name, sk)
	} else {
		t.hooks.CacheMiss(t.name, sk)
	}
	return l, ok
}

func (t *tier[V]) read(ctx context.Context, sk string) (lookup[V], bool) {
	var zero lookup[V]
	raw, ok, err := t.provider.Get(ctx, sk)
	if err != nil {
		t.storeError("get", sk, err)
		return zero, false
	}
	if !ok {
		return zero, false
	}
	e, err := wire.Decode(raw)
	if err != nil {
		t.heal(ctx, sk, "corrupt")
		return zero, false
	}
	cur, err := t.gen.Snapshot(ctx, sk)
	if err != nil {
		// can't tell whether the entry is current; leave it alone
		t.storeError("gen", sk, err)
		return zero, false
	}
	if e.Gen != cur {
		t.heal(ctx, sk, "gen_mismatch")
		return zero, false
	}
	if e.Expired(t.now()) {
		t.heal(ctx, sk, "expired")
		return zero, false
	}
	if e.Kind == wire.KindUnknown {
		return lookup[V]{unknown: true}, true
	}
	v, err := t.codec.Decode(e.Payload)
	if err != nil {
		t.heal(ctx, sk, "value_decode")
		return zero, false
	}
	return lookup[V]{value: v}, true
}

func (t *tier[V]) snapshot(ctx context.Context, key string) observed {
	if !t.enabled {
		return observed{}
	}
	sk := t.key(key)
	g, err := t.gen.Snapshot(ctx, sk)
	if err != nil {
		t.storeError("gen", sk, err)
		return observed{}
	}
	return observed{gen: g, valid: true}
}

func (t *tier[V]) set(ctx context.Context, key string, v V, obs observed, ttl time.Duration) {
	if !t.enabled || !obs.valid {
		return
	}
	payload, err := t.codec.Encode(v)
	if err != nil {
		t.log.Warn("encode failed; entry not cached", Fields{"tier": t.name, "key": key, "err": err})
		return
	}
	t.write(ctx, key, wire.KindValue, payload, obs, ttl)
}

func (t *tier[V]) setUnknown(ctx context.Context, key string, obs observed, ttl time.Duration) {
	if !t.enabled || !obs.valid {
		return
	}
	t.write(ctx, key, wire.KindUnknown, nil, obs, ttl)
}

func (t *tier[V]) write(ctx context.Context, key string, kind byte, payload []byte, obs observed, ttl time.Duration) {
	sk := t.key(key)
	cur, err := t.gen.Snapshot(ctx, sk)
	if err != nil {
		t.storeError("gen", sk, err)
		return
	}
	if cur != obs.gen {
		// invalidated while we were fetching; skip stale write
		t.log.Debug("write skipped (gen moved)", Fields{"key": sk, "obs": obs.gen, "cur": cur})
		return
	}
	b := wire.Encode(wire.Entry{
		Kind:     kind,
		Gen:      obs.gen,
		StoredAt: t.now(),
		TTL:      ttl,
		Payload:  payload,
	})
	ok, err := t.provider.Set(ctx, sk, b, t.cost(sk, b), ttl)
	if err != nil {
		t.storeError("set", sk, err)
		return
	}
	if !ok {
		t.hooks.ProviderSetRejected(sk)
		t.log.Debug("write rejected by provider (pressure)", Fields{"key": sk})
	}
}

// invalidate bumps the generation and deletes the entry. Either alone is
// enough to hide the old value; only a double failure is returned.
func (t *tier[V]) invalidate(ctx context.Context, key string) error {
	if !t.enabled {
		return nil
	}
	sk := t.key(key)
	newGen, bumpErr := t.gen.Bump(ctx, sk)
	if bumpErr != nil {
		t.storeError("gen", sk, bumpErr)
	}
	delErr := t.provider.Del(ctx, sk)
	if delErr != nil {
		t.storeError("del", sk, delErr)
	}
	if bumpErr != nil && delErr != nil {
		t.hooks.InvalidateOutage(sk, bumpErr, delErr)
		return &InvalidateError{Key: sk, BumpErr: bumpErr, DelErr: delErr}
	}
	t.log.Debug("invalidated key (bumped gen + deleted)", Fields{"key": sk, "newGen": newGen})
	return nil
}

func (t *tier[V]) heal(ctx context.Context, sk, reason string) {
	_ = t.provider.Del(ctx, sk)
	t.hooks.SelfHeal(sk, reason)
	t.log.Debug("self-heal", Fields{"key": sk, "reason": reason})
}

func (t *tier[V]) storeError(op, sk string, err error) {
	t.hooks.StoreError(&StoreError{Tier: t.name, Op: op, Key: sk, Err: err})
	t.log.Warn("cache backend error", Fields{"tier": t.name, "op": op, "key": sk, "err": err})
}
