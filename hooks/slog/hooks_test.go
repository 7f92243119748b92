package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/gistcache"
)

func newBuf() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer
	return &buf, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestKeysAreRedacted(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{})
	h.StoreError(&gistcache.StoreError{Tier: gistcache.TierRaw, Op: "get", Key: "raw:gist:secret-owner", Err: errors.New("down")})
	out := buf.String()
	if strings.Contains(out, "secret-owner") {
		t.Fatalf("key leaked: %s", out)
	}
	if !strings.Contains(out, "gistcache.store_error") || !strings.Contains(out, "op=get") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestSelfHealSampling(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{SelfHealEvery: 3})
	for i := 0; i < 9; i++ {
		h.SelfHeal("k", "corrupt")
	}
	if n := strings.Count(buf.String(), "gistcache.self_heal"); n != 3 {
		t.Fatalf("logged %d self-heals, want 3", n)
	}
}

func TestLookupsOffByDefault(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{})
	h.CacheHit(gistcache.TierRendered, "k")
	h.CacheMiss(gistcache.TierRendered, "k")
	if buf.Len() != 0 {
		t.Fatalf("lookups should not be logged: %s", buf.String())
	}
}
