// Package app assembles a gistcache.Cache and its collaborators from a
// config.Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	rc "github.com/dgraph-io/ristretto"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/gistcache"
	"github.com/unkn0wn-root/gistcache/durable"
	"github.com/unkn0wn-root/gistcache/durable/leveldb"
	natsdurable "github.com/unkn0wn-root/gistcache/durable/nats"
	redisdurable "github.com/unkn0wn-root/gistcache/durable/redis"
	"github.com/unkn0wn-root/gistcache/durable/sqlite"
	"github.com/unkn0wn-root/gistcache/embed"
	"github.com/unkn0wn-root/gistcache/fetcher"
	gen "github.com/unkn0wn-root/gistcache/genstore"
	asynchook "github.com/unkn0wn-root/gistcache/hooks/async"
	promhooks "github.com/unkn0wn-root/gistcache/hooks/prom"
	sloghooks "github.com/unkn0wn-root/gistcache/hooks/slog"
	"github.com/unkn0wn-root/gistcache/internal/config"
	logruslog "github.com/unkn0wn-root/gistcache/log/logrus"
	"github.com/unkn0wn-root/gistcache/log/recorder"
	sloglog "github.com/unkn0wn-root/gistcache/log/slog"
	zaplog "github.com/unkn0wn-root/gistcache/log/zap"
	pr "github.com/unkn0wn-root/gistcache/provider"
	"github.com/unkn0wn-root/gistcache/provider/bigcache"
	redisprov "github.com/unkn0wn-root/gistcache/provider/redis"
	"github.com/unkn0wn-root/gistcache/provider/ristretto"
	"github.com/unkn0wn-root/gistcache/provider/ttlcache"
	"github.com/unkn0wn-root/gistcache/render"
)

// minGenKeyTTL is the floor for Redis generation key expiry.
const minGenKeyTTL = 30 * 24 * time.Hour

// genKeyTTL outlives every cached entry, so an expired generation key can
// only hide entries that are already gone.
func genKeyTTL(cfg config.Config) time.Duration {
	longest := max(cfg.TTL.Rendered.D(), cfg.TTL.Fallback.D(), cfg.TTL.Unknown.D(), cfg.TTL.Files.D(), cfg.TTL.FilesMiss.D())
	return max(minGenKeyTTL, 2*longest)
}

// App owns everything a running gistcached needs.
type App struct {
	Cache    *gistcache.Cache
	Parser   *embed.Parser
	Log      gistcache.Logger
	Recorder *recorder.Recorder
	Registry *prometheus.Registry

	closers []func(context.Context) error
}

// New builds the application. On error every component already opened is
// closed again.
func New(ctx context.Context, cfg config.Config) (a *App, err error) {
	a = &App{Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
			a = nil
		}
	}()

	base, err := newLogger(cfg)
	if err != nil {
		return a, err
	}
	a.Recorder = recorder.New(base, 256, 32)
	a.Log = a.Recorder

	hooks, err := a.newHooks(cfg, base)
	if err != nil {
		return a, err
	}

	var rdb goredis.UniversalClient
	if cfg.UsesRedis() {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return a, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		a.onClose(func(context.Context) error { return rdb.Close() })
	}

	provider, err := a.newProvider(ctx, cfg, rdb)
	if err != nil {
		return a, fmt.Errorf("cache.provider: %w", err)
	}

	store, err := a.newDurable(ctx, cfg, rdb)
	if err != nil {
		_ = provider.Close(ctx)
		return a, fmt.Errorf("durable: %w", err)
	}

	entries, err := durable.EntryCodec(cfg.Durable.Codec)
	if err != nil {
		_ = provider.Close(ctx)
		_ = store.Close(ctx)
		return a, err
	}

	var gs gen.GenStore
	if cfg.Cache.GenStore == "redis" {
		gs = gen.NewRedis(rdb, cfg.Cache.Namespace, genKeyTTL(cfg))
	}

	a.Parser = &embed.Parser{Log: a.Log}
	c, err := gistcache.New(gistcache.Options{
		Namespace: cfg.Cache.Namespace,
		Provider:  provider,
		Durable:   store,
		Fetcher: fetcher.New(fetcher.Config{
			BaseURL:   cfg.Upstream.BaseURL,
			Timeout:   cfg.Upstream.Timeout.D(),
			VerifyTLS: cfg.Upstream.VerifyTLS,
			UserAgent: cfg.Upstream.UserAgent,
		}),
		Renderer:     render.Renderer{},
		Parser:       a.Parser,
		GenStore:     gs,
		Logger:       a.Log,
		Hooks:        hooks,
		EntryCodec:   entries,
		TTL:          cfg.TTL.Rendered.D(),
		FallbackTTL:  cfg.TTL.Fallback.D(),
		UnknownTTL:   cfg.TTL.Unknown.D(),
		FilesTTL:     cfg.TTL.Files.D(),
		FilesMissTTL: cfg.TTL.FilesMiss.D(),
		LinkBase:     cfg.Upstream.BaseURL,
		Disabled:     cfg.Cache.Disabled,
	})
	if err != nil {
		_ = provider.Close(ctx)
		_ = store.Close(ctx)
		return a, err
	}
	a.Cache = c
	a.Parser.Files = c
	// the cache closes provider, durable store and generations
	a.closers = append([]func(context.Context) error{c.Close}, a.closers...)
	return a, nil
}

func (a *App) onClose(f func(context.Context) error) { a.closers = append(a.closers, f) }

// Close releases the cache first, then hook workers, then shared clients.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, f := range a.closers {
		if err := f(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newLogger(cfg config.Config) (gistcache.Logger, error) {
	json := cfg.Logging.Format == "json"
	switch cfg.Logging.Backend {
	case "zap":
		l, err := zaplog.New(cfg.Logging.Level, !json)
		return l, err
	case "logrus":
		l, err := logruslog.New(os.Stderr, cfg.Logging.Level, json)
		return l, err
	case "slog":
		l, err := sloglog.New(os.Stderr, cfg.Logging.Level, json)
		return l, err
	}
	return nil, fmt.Errorf("logging.backend: unknown %q", cfg.Logging.Backend)
}

func (a *App) newHooks(cfg config.Config, base gistcache.Logger) (gistcache.Hooks, error) {
	prom, err := promhooks.New(a.Registry)
	if err != nil {
		return nil, err
	}
	hs := []gistcache.Hooks{prom}
	if sl, ok := base.(sloglog.Logger); ok {
		hs = append(hs, sloghooks.New(sl.L, sloghooks.Options{SelfHealEvery: cfg.Hooks.SelfHealEvery}))
	}
	hooks := gistcache.MultiHooks(hs...)
	if !cfg.Hooks.Async {
		return hooks, nil
	}
	ah := asynchook.New(hooks, cfg.Hooks.Workers, cfg.Hooks.Queue)
	a.onClose(func(context.Context) error {
		ah.Close()
		if n := ah.Dropped(); n > 0 {
			a.Log.Warn("hook events dropped", gistcache.Fields{"count": n})
		}
		return nil
	})
	return ah, nil
}

func (a *App) newProvider(ctx context.Context, cfg config.Config, rdb goredis.UniversalClient) (pr.Provider, error) {
	switch cfg.Cache.Provider {
	case "ristretto":
		p, err := ristretto.New(ristretto.Config{
			NumCounters: int64(cfg.Cache.Entries) * 10,
			MaxCost:     int64(cfg.Cache.Max),
			BufferItems: 64,
			Metrics:     true,
		})
		if err != nil {
			return nil, err
		}
		if err := registerRistretto(a.Registry, p.Metrics()); err != nil {
			_ = p.Close(ctx)
			return nil, err
		}
		return p, nil
	case "bigcache":
		return bigcache.New(ctx, bigcache.Config{
			LifeWindow:         max(cfg.TTL.Files.D(), cfg.TTL.Rendered.D()),
			CleanWindow:        5 * time.Minute,
			MaxEntriesInWindow: cfg.Cache.Entries,
			HardMaxCacheSizeMB: int(int64(cfg.Cache.Max) >> 20),
		})
	case "ttlcache":
		return ttlcache.New(ttlcache.Config{Capacity: uint64(cfg.Cache.Entries)}), nil
	case "redis":
		return redisprov.New(redisprov.Config{Client: rdb, Prefix: cfg.Redis.Prefix + "eph:"})
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Cache.Provider)
}

func (a *App) newDurable(ctx context.Context, cfg config.Config, rdb goredis.UniversalClient) (durable.Store, error) {
	switch cfg.Durable.Backend {
	case "memory":
		a.Log.Warn("durable store is in memory; fallbacks do not survive restarts", nil)
		return durable.NewLocal(), nil
	case "leveldb":
		if err := os.MkdirAll(cfg.Durable.Path, 0o755); err != nil {
			return nil, err
		}
		return leveldb.Open(cfg.Durable.Path, cfg.Durable.Sync)
	case "sqlite":
		return sqlite.Open(cfg.Durable.Path)
	case "redis":
		return redisdurable.New(redisdurable.Config{Client: rdb, Prefix: cfg.Redis.Prefix + "durable:"}), nil
	case "nats":
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("gistcached"))
		if err != nil {
			return nil, err
		}
		s, err := natsdurable.New(ctx, natsdurable.Config{Conn: nc, Bucket: cfg.Durable.Bucket, CloseConn: true})
		if err != nil {
			nc.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Durable.Backend)
}

// registerRistretto exports the provider's own counters next to the
// cache-level ones from hooks/prom.
func registerRistretto(reg prometheus.Registerer, m *rc.Metrics) error {
	counters := map[string]func() uint64{
		"hits_total":          m.Hits,
		"misses_total":        m.Misses,
		"keys_evicted_total":  m.KeysEvicted,
		"sets_dropped_total":  m.SetsDropped,
		"sets_rejected_total": m.SetsRejected,
	}
	for name, f := range counters {
		f := f
		c := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "gistcache",
			Subsystem: "ristretto",
			Name:      name,
			Help:      "ristretto " + strings.ReplaceAll(name, "_", " ") + ".",
		}, func() float64 { return float64(f()) })
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
