// Package config loads the gistcached YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port    int    `yaml:"port"`
		MaxBody Size   `yaml:"maxBody"`
		Debug   bool   `yaml:"debug"`   // GET /debug/gists
		Metrics bool   `yaml:"metrics"` // GET /metrics
		Owner   string `yaml:"owner"`   // default owner when a request names none
	} `yaml:"server"`

	Upstream struct {
		BaseURL   string   `yaml:"baseURL"`
		Timeout   Duration `yaml:"timeout"`
		VerifyTLS bool     `yaml:"verifyTLS"`
		UserAgent string   `yaml:"userAgent"`
	} `yaml:"upstream"`

	TTL struct {
		Rendered  Duration `yaml:"rendered"`
		Fallback  Duration `yaml:"fallback"`
		Unknown   Duration `yaml:"unknown"`
		Files     Duration `yaml:"files"`
		FilesMiss Duration `yaml:"filesMiss"`
	} `yaml:"ttl"`

	Cache struct {
		Namespace string `yaml:"namespace"`
		Provider  string `yaml:"provider"` // ristretto | bigcache | ttlcache | redis
		Max       Size   `yaml:"max"`      // memory budget of in-process providers
		Entries   int    `yaml:"entries"`  // expected entry count (sizing)
		GenStore  string `yaml:"genstore"` // local | redis
		Disabled  bool   `yaml:"disabled"`
	} `yaml:"cache"`

	Durable struct {
		Backend string `yaml:"backend"` // leveldb | sqlite | redis | nats | memory
		Path    string `yaml:"path"`
		Codec   string `yaml:"codec"` // json | cbor | msgpack | proto
		Sync    bool   `yaml:"sync"`
		Bucket  string `yaml:"bucket"`
	} `yaml:"durable"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`

	Logging struct {
		Backend string `yaml:"backend"` // zap | logrus | slog
		Level   string `yaml:"level"`
		Format  string `yaml:"format"` // json | console
	} `yaml:"logging"`

	Hooks struct {
		Async         bool   `yaml:"async"`
		Workers       int    `yaml:"workers"`
		Queue         int    `yaml:"queue"`
		SelfHealEvery uint64 `yaml:"selfHealEvery"`
	} `yaml:"hooks"`
}

// Duration accepts Go duration strings ("90s", "24h").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := time.ParseDuration(strings.TrimSpace(n.Value))
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	if v < 0 {
		return fmt.Errorf("line %d: negative duration", n.Line)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) D() time.Duration { return time.Duration(d) }

// Size accepts byte sizes like "64mb", "512k" or "1.5g".
type Size int64

func (s *Size) UnmarshalYAML(n *yaml.Node) error {
	v, err := parseBytes(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*s = Size(v)
	return nil
}

func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes, fills defaults and validates.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) defaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MaxBody == 0 {
		c.Server.MaxBody = 4 << 20
	}
	c.Upstream.BaseURL = strings.TrimRight(c.Upstream.BaseURL, "/")
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = "https://gist.github.com"
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = Duration(10 * time.Second)
	}
	if c.TTL.Rendered == 0 {
		c.TTL.Rendered = Duration(24 * time.Hour)
	}
	if c.TTL.Fallback == 0 {
		c.TTL.Fallback = Duration(time.Hour)
	}
	if c.TTL.Unknown == 0 {
		c.TTL.Unknown = Duration(time.Hour)
	}
	if c.TTL.Files == 0 {
		c.TTL.Files = Duration(7 * 24 * time.Hour)
	}
	if c.TTL.FilesMiss == 0 {
		c.TTL.FilesMiss = Duration(15 * time.Minute)
	}
	if c.Cache.Namespace == "" {
		c.Cache.Namespace = "gist"
	}
	if c.Cache.Provider == "" {
		c.Cache.Provider = "ristretto"
	}
	if c.Cache.Max == 0 {
		c.Cache.Max = 64 << 20
	}
	if c.Cache.Entries == 0 {
		c.Cache.Entries = 10000
	}
	if c.Cache.GenStore == "" {
		c.Cache.GenStore = "local"
	}
	if c.Durable.Backend == "" {
		c.Durable.Backend = "leveldb"
	}
	if c.Durable.Path == "" {
		switch c.Durable.Backend {
		case "leveldb":
			c.Durable.Path = "./data/durable"
		case "sqlite":
			c.Durable.Path = "./data/durable.db"
		}
	}
	if c.Durable.Bucket == "" {
		c.Durable.Bucket = "gistcache"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "gistcache:"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "zap"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Hooks.Workers == 0 {
		c.Hooks.Workers = 1
	}
	if c.Hooks.Queue == 0 {
		c.Hooks.Queue = 1024
	}
}

func oneOf(field, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s: %q is not one of %s", field, v, strings.Join(allowed, ", "))
}

func (c *Config) validate() error {
	checks := []error{
		oneOf("cache.provider", c.Cache.Provider, "ristretto", "bigcache", "ttlcache", "redis"),
		oneOf("cache.genstore", c.Cache.GenStore, "local", "redis"),
		oneOf("durable.backend", c.Durable.Backend, "leveldb", "sqlite", "redis", "nats", "memory"),
		oneOf("durable.codec", c.Durable.Codec, "", "json", "cbor", "msgpack", "proto"),
		oneOf("logging.backend", c.Logging.Backend, "zap", "logrus", "slog"),
		oneOf("logging.format", c.Logging.Format, "json", "console"),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	if !strings.HasPrefix(c.Upstream.BaseURL, "http://") && !strings.HasPrefix(c.Upstream.BaseURL, "https://") {
		return fmt.Errorf("upstream.baseURL: %q must be an http(s) URL", c.Upstream.BaseURL)
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Durable.Backend == "nats" && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if (c.Durable.Backend == "leveldb" || c.Durable.Backend == "sqlite") && c.Durable.Path == "" {
		return fmt.Errorf("durable.path is required")
	}
	return nil
}

// UsesRedis reports whether any component needs the Redis client.
func (c *Config) UsesRedis() bool {
	return c.Cache.Provider == "redis" || c.Cache.GenStore == "redis" || c.Durable.Backend == "redis"
}
