package leveldb

import (
	"context"
	"path/filepath"
	"testing"
)

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "durable")

	s, err := Open(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Get(ctx, "raw:abc"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := s.Put(ctx, "raw:abc", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path, false)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)
	got, ok, err := s.Get(ctx, "raw:abc")
	if err != nil || !ok || string(got) != "v1" {
		t.Fatalf("got %q ok=%v err=%v", got, ok, err)
	}
	if err := s.Delete(ctx, "raw:abc"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "raw:abc"); ok {
		t.Fatal("expected miss after delete")
	}
}
