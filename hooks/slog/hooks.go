// Package sloghooks logs cache events with log/slog. Keys are redacted
// (they embed document owners) and noisy events can be sampled.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/gistcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	LookupEvery   uint64 // cache hits and misses; 0 => not logged
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	lookupCtr   atomic.Uint64
}

var _ gistcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) lookup(msg string, tier gistcache.Tier, key string) {
	if h.l == nil || h.opts.LookupEvery == 0 || !sample(h.opts.LookupEvery, &h.lookupCtr) {
		return
	}
	h.l.Debug(msg, "tier", string(tier), "key", h.redact(key))
}

func (h *Hooks) CacheHit(tier gistcache.Tier, key string)  { h.lookup("gistcache.hit", tier, key) }
func (h *Hooks) CacheMiss(tier gistcache.Tier, key string) { h.lookup("gistcache.miss", tier, key) }

func (h *Hooks) FetchAttempted(key gistcache.SnippetKey, elapsed time.Duration, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Warn("gistcache.fetch_failed",
			"snippet", key.String(),
			"elapsed", elapsed,
			"err", err)
		return
	}
	h.l.Debug("gistcache.fetched",
		"snippet", key.String(),
		"elapsed", elapsed)
}

func (h *Hooks) FallbackServed(key gistcache.SnippetKey, source gistcache.Source) {
	if h.l == nil {
		return
	}
	h.l.Info("gistcache.fallback_served",
		"snippet", key.String(),
		"source", source.String())
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("gistcache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("gistcache.provider_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) StoreError(err *gistcache.StoreError) {
	if h.l == nil {
		return
	}
	h.l.Warn("gistcache.store_error",
		"tier", string(err.Tier),
		"op", err.Op,
		"key", h.redact(err.Key),
		"err", err.Err)
}

func (h *Hooks) InvalidateOutage(key string, bumpErr, delErr error) {
	if h.l == nil {
		return
	}
	h.l.Error("gistcache.invalidate_outage",
		"key", h.redact(key),
		"bump_err", bumpErr,
		"del_err", delErr)
}
