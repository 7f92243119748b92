package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 || cfg.Cache.Provider != "ristretto" || cfg.Durable.Backend != "leveldb" {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.TTL.Rendered.D() != 24*time.Hour || cfg.TTL.FilesMiss.D() != 15*time.Minute {
		t.Fatalf("ttl defaults: %+v", cfg.TTL)
	}
	if cfg.Upstream.Timeout.D() != 10*time.Second || cfg.Upstream.VerifyTLS {
		t.Fatalf("upstream defaults: %+v", cfg.Upstream)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gistcache.yaml")
	yml := `
server:
  port: 9090
  maxBody: 1mb
upstream:
  baseURL: https://gist.example.test/
  timeout: 5s
ttl:
  rendered: 12h
cache:
  provider: bigcache
  max: 128m
durable:
  backend: sqlite
  path: /tmp/x.db
  codec: cbor
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.MaxBody != 1<<20 {
		t.Fatalf("server: %+v", cfg.Server)
	}
	if cfg.Upstream.BaseURL != "https://gist.example.test" || cfg.Upstream.Timeout.D() != 5*time.Second {
		t.Fatalf("upstream: %+v", cfg.Upstream)
	}
	if cfg.TTL.Rendered.D() != 12*time.Hour || cfg.TTL.Fallback.D() != time.Hour {
		t.Fatalf("ttl: %+v", cfg.TTL)
	}
	if cfg.Cache.Max != 128<<20 || cfg.Durable.Codec != "cbor" {
		t.Fatalf("cache/durable: %+v %+v", cfg.Cache, cfg.Durable)
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"bad duration":  "ttl:\n  rendered: soon\n",
		"bad size":      "cache:\n  max: lots\n",
		"bad provider":  "cache:\n  provider: memcached\n",
		"redis no addr": "durable:\n  backend: redis\n",
		"nats no url":   "durable:\n  backend: nats\n",
		"bad base url":  "upstream:\n  baseURL: gist.github.com\n",
		"bad codec":     "durable:\n  codec: xml\n",
	}
	for name, yml := range cases {
		if _, err := Parse([]byte(yml)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseBytes(t *testing.T) {
	cases := map[string]int64{"512": 512, "1k": 1024, "1.5kb": 1536, "64MB": 64 << 20, "2g": 2 << 30}
	for in, want := range cases {
		got, err := parseBytes(in)
		if err != nil || got != want {
			t.Fatalf("parseBytes(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	if _, err := parseBytes("-1k"); err == nil || !strings.Contains(err.Error(), "negative") {
		t.Fatalf("expected negative size error, got %v", err)
	}
}
