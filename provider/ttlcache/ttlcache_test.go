package ttlcache

import (
	"context"
	"testing"
	"time"
)

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	p := New(Config{Capacity: 16})
	t.Cleanup(func() { _ = p.Close(ctx) })

	if _, ok, err := p.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, "k", []byte("v"), 1, time.Minute); !ok || err != nil {
		t.Fatalf("Set ok=%v err=%v", ok, err)
	}
	b, ok, err := p.Get(ctx, "k")
	if !ok || err != nil || string(b) != "v" {
		t.Fatalf("Get got=%q ok=%v err=%v", b, ok, err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("deleting a missing key must be a no-op: %v", err)
	}
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after Del")
	}
}

func TestEntriesExpire(t *testing.T) {
	ctx := context.Background()
	p := New(Config{})
	t.Cleanup(func() { _ = p.Close(ctx) })

	_, _ = p.Set(ctx, "k", []byte("v"), 1, 20*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("entry should have expired")
	}
}
