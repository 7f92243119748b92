package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/unkn0wn-root/gistcache"
	"github.com/unkn0wn-root/gistcache/internal/config"
)

func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/abc123.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"div":"<div class=\"gist\">hello</div>","stylesheet":"/embed.css","files":["hello.go"]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, extra string) config.Config {
	t.Helper()
	yml := "upstream:\n  baseURL: " + upstream(t).URL + "\n" +
		"logging:\n  backend: slog\n  level: error\n" + extra
	cfg, err := config.Parse([]byte(yml))
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestNewRendersThroughUpstream(t *testing.T) {
	cfg := testConfig(t, "cache:\n  provider: ttlcache\ndurable:\n  backend: memory\nhooks:\n  async: true\n")
	ctx := context.Background()
	a, err := New(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close(ctx)

	res, err := a.Cache.Render(ctx, "post-1", gistcache.SnippetKey{ID: "abc123"}, gistcache.DefaultRenderOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != gistcache.KindHTML || !strings.Contains(res.HTML, "hello") {
		t.Fatalf("result: %+v", res)
	}
	if got, err := a.Cache.ResolveFile(ctx, "abc123", "hello-go"); err != nil || got != "hello.go" {
		t.Fatalf("ResolveFile = %q, %v", got, err)
	}

	res, err = a.Cache.Render(ctx, "post-1", gistcache.SnippetKey{ID: "missing"}, gistcache.DefaultRenderOptions())
	if err != nil || !res.Unknown() {
		t.Fatalf("missing gist: %+v, %v", res, err)
	}
}

func TestNewPersistentBackends(t *testing.T) {
	for _, backend := range []string{"leveldb", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			path := t.TempDir() + "/store"
			cfg := testConfig(t, "durable:\n  backend: "+backend+"\n  path: "+path+"\n  codec: cbor\n")
			ctx := context.Background()
			a, err := New(ctx, cfg)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := a.Cache.Render(ctx, "p", gistcache.SnippetKey{ID: "abc123"}, gistcache.DefaultRenderOptions()); err != nil {
				t.Fatal(err)
			}
			mfs, err := a.Registry.Gather()
			if err != nil {
				t.Fatal(err)
			}
			names := map[string]bool{}
			for _, mf := range mfs {
				names[mf.GetName()] = true
			}
			if !names["gistcache_ristretto_misses_total"] || !names["gistcache_fetches_total"] {
				t.Fatalf("metrics missing: %v", names)
			}
			if err := a.Close(ctx); err != nil {
				t.Fatalf("Close: %v", err)
			}
		})
	}
}

func TestNewRejectsUnreachableRedis(t *testing.T) {
	cfg := testConfig(t, "cache:\n  provider: redis\nredis:\n  addr: 127.0.0.1:1\n")
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected redis ping error")
	}
}

func TestGenKeyTTLOutlivesEveryCacheTTL(t *testing.T) {
	cfg, err := config.Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if got := genKeyTTL(cfg); got != minGenKeyTTL {
		t.Fatalf("defaults: genKeyTTL=%v, want %v", got, minGenKeyTTL)
	}

	cfg, err = config.Parse([]byte("ttl:\n  files: 2160h\n  rendered: 48h\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := genKeyTTL(cfg); got <= cfg.TTL.Files.D() {
		t.Fatalf("genKeyTTL=%v does not outlive files ttl %v", got, cfg.TTL.Files.D())
	}
}
