package gistcache

import "time"

// Tier names a storage layer in hooks, logs and errors.
type Tier string

const (
	TierRendered Tier = "html"
	TierRaw      Tier = "raw"
	TierFiles    Tier = "files"
	TierDurable  Tier = "durable"
)

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// Lookup outcome on an ephemeral tier.
	CacheHit(tier Tier, storageKey string)
	CacheMiss(tier Tier, storageKey string)

	// One upstream call finished; err is nil on success.
	FetchAttempted(key SnippetKey, elapsed time.Duration, err error)

	// A render could not use fresh content.
	// source ∈ {SourceDurable, SourceNone}
	FallbackServed(key SnippetKey, source Source)

	// An entry was deleted on read.
	// reason ∈ {"corrupt", "gen_mismatch", "expired", "value_decode"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// A backend call failed; the cache carried on without it.
	StoreError(err *StoreError)

	// Both gen bump and delete failed during invalidation (likely outage).
	InvalidateOutage(key string, bumpErr, delErr error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CacheHit(Tier, string)                           {}
func (NopHooks) CacheMiss(Tier, string)                          {}
func (NopHooks) FetchAttempted(SnippetKey, time.Duration, error) {}
func (NopHooks) FallbackServed(SnippetKey, Source)               {}
func (NopHooks) SelfHeal(string, string)                         {}
func (NopHooks) ProviderSetRejected(string)                      {}
func (NopHooks) StoreError(*StoreError)                          {}
func (NopHooks) InvalidateOutage(string, error, error)           {}

// MultiHooks fans every event out to hs in order.
func MultiHooks(hs ...Hooks) Hooks { return multiHooks(hs) }

type multiHooks []Hooks

func (m multiHooks) CacheHit(t Tier, k string) {
	for _, h := range m {
		h.CacheHit(t, k)
	}
}

func (m multiHooks) CacheMiss(t Tier, k string) {
	for _, h := range m {
		h.CacheMiss(t, k)
	}
}

func (m multiHooks) FetchAttempted(k SnippetKey, d time.Duration, err error) {
	for _, h := range m {
		h.FetchAttempted(k, d, err)
	}
}

func (m multiHooks) FallbackServed(k SnippetKey, s Source) {
	for _, h := range m {
		h.FallbackServed(k, s)
	}
}

func (m multiHooks) SelfHeal(k, r string) {
	for _, h := range m {
		h.SelfHeal(k, r)
	}
}

func (m multiHooks) ProviderSetRejected(k string) {
	for _, h := range m {
		h.ProviderSetRejected(k)
	}
}

func (m multiHooks) StoreError(err *StoreError) {
	for _, h := range m {
		h.StoreError(err)
	}
}

func (m multiHooks) InvalidateOutage(k string, be, de error) {
	for _, h := range m {
		h.InvalidateOutage(k, be, de)
	}
}
