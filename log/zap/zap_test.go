package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/gistcache"
)

func TestFieldsReachZap(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := Logger{L: zap.New(core)}

	l.Warn("upstream fetch failed", gistcache.Fields{"hash": "h1", "err": errors.New("boom"), "skip": nil})
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["hash"] != "h1" || ctx["err"] != "boom" {
		t.Fatalf("context=%v", ctx)
	}
	if _, ok := ctx["skip"]; ok {
		t.Fatal("nil field should be omitted")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New("loud", false); err == nil {
		t.Fatal("expected level error")
	}
}
