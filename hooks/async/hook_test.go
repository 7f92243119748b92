package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/gistcache"
)

type countingHooks struct {
	gistcache.NopHooks
	mu    sync.Mutex
	heals int
	block chan struct{}
}

func (c *countingHooks) SelfHeal(string, string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.heals++
	c.mu.Unlock()
}

func TestDeliversAndDrainsOnClose(t *testing.T) {
	inner := &countingHooks{}
	h := New(inner, 2, 16)
	for i := 0; i < 10; i++ {
		h.SelfHeal("k", "corrupt")
	}
	h.Close()
	if inner.heals != 10 {
		t.Fatalf("heals=%d, want 10", inner.heals)
	}
	h.SelfHeal("k", "late") // must not panic
	if h.Dropped() != 1 {
		t.Fatalf("dropped=%d, want 1", h.Dropped())
	}
}

func TestDropsWhenFull(t *testing.T) {
	inner := &countingHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)
	// one event held by the worker, one in the queue, the rest dropped
	for i := 0; i < 10; i++ {
		h.SelfHeal("k", "corrupt")
	}
	close(inner.block)
	h.Close()
	if got := uint64(inner.heals) + h.Dropped(); got != 10 {
		t.Fatalf("delivered+dropped=%d, want 10", got)
	}
	if h.Dropped() == 0 {
		t.Fatal("expected drops with a full queue")
	}
}
