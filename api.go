package gistcache

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/gistcache/codec"
	"github.com/unkn0wn-root/gistcache/durable"
	gen "github.com/unkn0wn-root/gistcache/genstore"
	pr "github.com/unkn0wn-root/gistcache/provider"
)

const (
	DefaultNamespace = "gist"
	DefaultLinkBase  = "https://gist.github.com"

	DefaultTTL          = 24 * time.Hour
	DefaultFallbackTTL  = time.Hour
	DefaultUnknownTTL   = time.Hour
	DefaultFilesTTL     = 7 * 24 * time.Hour
	DefaultFilesMissTTL = 15 * time.Minute

	defaultGenRetention  = 30 * 24 * time.Hour
	defaultSweep         = time.Hour
	defaultMaxEntryBytes = 8 << 20
)

// Gist is what one upstream call returns.
type Gist struct {
	Div        string   // embeddable markup, never empty on success
	Stylesheet string   // absolute stylesheet URL, may be empty
	Files      []string // file names of the gist
}

// Fetcher performs exactly one upstream request per call and never
// retries. Any failure is returned as an error (normally *FetchError).
type Fetcher interface {
	Fetch(ctx context.Context, key SnippetKey) (Gist, error)
}

type FetcherFunc func(ctx context.Context, key SnippetKey) (Gist, error)

func (f FetcherFunc) Fetch(ctx context.Context, key SnippetKey) (Gist, error) { return f(ctx, key) }

// Renderer turns upstream markup into final HTML. It must be pure and must
// return raw unchanged when it cannot process it.
type Renderer interface {
	Render(raw string, opts RenderOptions) string
}

type RendererFunc func(raw string, opts RenderOptions) string

func (f RendererFunc) Render(raw string, opts RenderOptions) string { return f(raw, opts) }

// Embed is one snippet reference found in a document.
type Embed struct {
	Key     SnippetKey
	Options RenderOptions
}

// Parser extracts every embed from a document.
type Parser interface {
	Parse(ctx context.Context, content string) []Embed
}

// SetCostFunc sizes an ephemeral write for cost-aware providers.
type SetCostFunc func(storageKey string, raw []byte) int64

// Options wire a Cache. Provider and Fetcher are required; the rest has
// defaults.
type Options struct {
	Namespace string         // key prefix segment; "" => "gist"
	Provider  pr.Provider    // ephemeral tiers
	Durable   durable.Store  // nil => durable.NewLocal (not persistent)
	Fetcher   Fetcher        // upstream
	Renderer  Renderer       // nil => markup is served as fetched
	Parser    Parser         // needed by OnContentChanged
	GenStore  gen.GenStore   // nil => in-process generations
	Logger    Logger         // nil => NopLogger
	Hooks     Hooks          // nil => NopHooks
	Now       func() time.Time

	// EntryCodec serializes durable entries; nil => JSON.
	EntryCodec codec.Codec[durable.Entry]

	TTL          time.Duration // rendered + raw after a fetch; 0 => 24h
	FallbackTTL  time.Duration // rendered from durable store; 0 => 1h
	UnknownTTL   time.Duration // UNKNOWN sentinel; 0 => 1h
	FilesTTL     time.Duration // file lists; 0 => 7d
	FilesMissTTL time.Duration // empty file lists; 0 => 15m

	CleanupInterval time.Duration // local gen sweep; 0 => 1h
	GenRetention    time.Duration // 0 => 30d
	ComputeSetCost  SetCostFunc   // nil => len(raw)
	MaxEntryBytes   int           // largest cached value; 0 => 8MB, < 0 => unlimited
	LinkBase        string        // public gist site; "" => https://gist.github.com

	// Disabled turns the ephemeral tiers off: every render fetches. The
	// durable store is still written and used as fallback.
	Disabled bool
}

func New(opts Options) (*Cache, error) {
	if opts.Provider == nil {
		return nil, errors.New("gistcache: provider is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("gistcache: fetcher is required")
	}

	c := &Cache{
		ns:       coalesce(opts.Namespace, DefaultNamespace),
		provider: opts.Provider,
		fetcher:  opts.Fetcher,
		parser:   opts.Parser,
	}
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.durable = coalesce[durable.Store](opts.Durable, durable.NewLocal())
	c.entries = coalesce[codec.Codec[durable.Entry]](opts.EntryCodec, codec.JSON[durable.Entry]{})
	c.renderer = coalesce[Renderer](opts.Renderer, RendererFunc(func(raw string, _ RenderOptions) string { return raw }))
	c.ttl = coalesce(opts.TTL, DefaultTTL)
	c.fallbackTTL = coalesce(opts.FallbackTTL, DefaultFallbackTTL)
	c.unknownTTL = coalesce(opts.UnknownTTL, DefaultUnknownTTL)
	c.filesTTL = coalesce(opts.FilesTTL, DefaultFilesTTL)
	c.filesMissTTL = coalesce(opts.FilesMissTTL, DefaultFilesMissTTL)
	c.linkBase = coalesce(opts.LinkBase, DefaultLinkBase)

	c.now = opts.Now
	if c.now == nil {
		c.now = time.Now
	}
	cost := opts.ComputeSetCost
	if cost == nil {
		cost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}
	if opts.GenStore != nil {
		c.gen = opts.GenStore
	} else {
		// default to in-process generations with periodic cleanup
		c.gen = gen.NewLocal(
			coalesce(opts.CleanupInterval, defaultSweep),
			coalesce(opts.GenRetention, defaultGenRetention),
		)
	}

	limit := coalesce(opts.MaxEntryBytes, defaultMaxEntryBytes)
	markup := codec.Limit[string]{Inner: codec.String{}, Max: limit}
	c.html = newTier[string](c, TierRendered, markup, cost, !opts.Disabled)
	c.raw = newTier[string](c, TierRaw, markup, cost, !opts.Disabled)
	c.files = newTier[[]string](c, TierFiles, codec.Limit[[]string]{Inner: codec.JSON[[]string]{}, Max: limit}, cost, !opts.Disabled)
	return c, nil
}

func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
