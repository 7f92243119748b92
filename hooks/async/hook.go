// Package asynchook moves hook work off the render path. Events go through a
// bounded queue served by a fixed worker pool; when the queue is full the
// event is dropped rather than blocking a render.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	prom, err := promhooks.New(reg)
//	if err != nil {
//	    return err
//	}
//	hooks := asynchook.New(gistcache.MultiHooks(raw, prom), 1, 1000)
//	defer hooks.Close()
//
//	cache, _ := gistcache.New(gistcache.Options{
//	    Provider: provider,
//	    Fetcher:  fetcher.New(fetcher.Config{}),
//	    Hooks:    hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/gistcache"
)

type Hooks struct {
	inner   gistcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ gistcache.Hooks = (*Hooks)(nil)

func New(inner gistcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue and stops the workers. Events sent after Close
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full queue.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed queue after Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) CacheHit(t gistcache.Tier, k string)  { h.try(func() { h.inner.CacheHit(t, k) }) }
func (h *Hooks) CacheMiss(t gistcache.Tier, k string) { h.try(func() { h.inner.CacheMiss(t, k) }) }
func (h *Hooks) SelfHeal(k, r string)                 { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string)         { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) StoreError(err *gistcache.StoreError) { h.try(func() { h.inner.StoreError(err) }) }
func (h *Hooks) FetchAttempted(k gistcache.SnippetKey, d time.Duration, err error) {
	h.try(func() { h.inner.FetchAttempted(k, d, err) })
}
func (h *Hooks) FallbackServed(k gistcache.SnippetKey, s gistcache.Source) {
	h.try(func() { h.inner.FallbackServed(k, s) })
}
func (h *Hooks) InvalidateOutage(k string, be, de error) {
	h.try(func() { h.inner.InvalidateOutage(k, be, de) })
}
