package gistcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/unkn0wn-root/gistcache/codec"
	"github.com/unkn0wn-root/gistcache/durable"
	gen "github.com/unkn0wn-root/gistcache/genstore"
	"github.com/unkn0wn-root/gistcache/internal/util"
	pr "github.com/unkn0wn-root/gistcache/provider"
)

const stylesheetKey = "meta:stylesheet"

// Cache renders snippets through the tiers described in the package doc.
// Safe for concurrent use.
type Cache struct {
	ns       string
	provider pr.Provider
	durable  durable.Store
	entries  codec.Codec[durable.Entry]
	fetcher  Fetcher
	renderer Renderer
	parser   Parser
	gen      gen.GenStore
	log      Logger
	hooks    Hooks
	now      func() time.Time

	html  *tier[string]
	raw   *tier[string]
	files *tier[[]string]

	ttl          time.Duration
	fallbackTTL  time.Duration
	unknownTTL   time.Duration
	filesTTL     time.Duration
	filesMissTTL time.Duration
	linkBase     string

	styleMu   sync.Mutex
	lastStyle string

	closeOnce sync.Once
	closeErr  error
}

// Render returns the HTML for key rendered with opts, on behalf of owner
// (the document that embeds it; scopes the durable fallback).
//
// The only error is *InputError. Upstream and backend failures degrade to
// the durable copy or to a KindUnknown result instead.
func (c *Cache) Render(ctx context.Context, owner string, key SnippetKey, opts RenderOptions) (Result, error) {
	if err := key.Validate(); err != nil {
		return Result{}, err
	}
	hash := RequestHash(key, opts)
	res := Result{Hash: hash, URL: c.GistURL(key.ID)}
	lf := Fields{"hash": hash, "id": key.ID, "file": key.File}

	if hit, ok := c.html.get(ctx, hash); ok {
		res.Source = SourceRenderedCache
		if hit.unknown {
			c.log.Debug("rendered cache: unknown sentinel", lf)
			res.Kind = KindUnknown
			return res, nil
		}
		c.log.Debug("rendered cache hit", lf)
		res.Kind, res.HTML = KindHTML, hit.value
		return res, nil
	}
	htmlObs := c.html.snapshot(ctx, hash)

	rawKey := key.String()
	if hit, ok := c.raw.get(ctx, rawKey); ok && !hit.unknown {
		c.log.Debug("raw cache hit; rendering", lf)
		res.Kind, res.Source = KindHTML, SourceRawCache
		res.HTML = c.render(hit.value, opts, hash)
		c.html.set(ctx, hash, res.HTML, htmlObs, c.ttl)
		return res, nil
	}
	rawObs := c.raw.snapshot(ctx, rawKey)

	g, err := c.fetch(ctx, key)
	if err == nil {
		c.log.Debug("fetched from upstream", lf)
		c.putDurable(ctx, owner, key, g)
		c.raw.set(ctx, rawKey, g.Div, rawObs, c.ttl)
		res.Kind, res.Source = KindHTML, SourceUpstream
		res.HTML = c.render(g.Div, opts, hash)
		c.html.set(ctx, hash, res.HTML, htmlObs, c.ttl)
		return res, nil
	}
	c.log.Warn("upstream fetch failed", Fields{"hash": hash, "id": key.ID, "file": key.File, "err": err})

	// A caller that went away is not evidence about upstream: serve what we
	// can but do not pin the outcome.
	if ctx.Err() != nil {
		htmlObs = observed{}
	}

	if e, ok := c.getDurable(ctx, owner, key); ok {
		c.log.Info("serving durable copy", Fields{"hash": hash, "id": key.ID, "fetched_at": e.FetchedAt})
		c.hooks.FallbackServed(key, SourceDurable)
		res.Kind, res.Source = KindHTML, SourceDurable
		res.HTML = c.render(e.Content, opts, hash)
		c.html.set(ctx, hash, res.HTML, htmlObs, c.fallbackTTL)
		return res, nil
	}

	c.log.Info("no content available; caching unknown", lf)
	c.hooks.FallbackServed(key, SourceNone)
	c.html.setUnknown(ctx, hash, htmlObs, c.unknownTTL)
	res.Kind, res.Source = KindUnknown, SourceNone
	return res, nil
}

// GistURL is the public page of a gist.
func (c *Cache) GistURL(id string) string { return c.linkBase + "/" + id }

func (c *Cache) fetch(ctx context.Context, key SnippetKey) (Gist, error) {
	start := time.Now()
	g, err := c.fetcher.Fetch(ctx, key)
	if err == nil && g.Div == "" {
		err = &FetchError{Key: key, Err: ErrEmptyContent}
	}
	c.hooks.FetchAttempted(key, time.Since(start), err)
	return g, err
}

// render never fails: a panicking renderer serves the markup as fetched.
func (c *Cache) render(raw string, opts RenderOptions, hash string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("renderer panicked; serving raw markup", Fields{"hash": hash, "panic": r})
			out = raw
		}
	}()
	return c.renderer.Render(raw, opts)
}

func durableKey(owner string, key SnippetKey) string {
	return "raw:" + util.Digest(owner, key.ID, key.File)
}

func (c *Cache) putDurable(ctx context.Context, owner string, key SnippetKey, g Gist) {
	k := durableKey(owner, key)
	b, err := c.entries.Encode(durable.Entry{Content: g.Div, Stylesheet: g.Stylesheet, FetchedAt: c.now()})
	if err == nil {
		err = c.durable.Put(ctx, k, b)
	}
	if err != nil {
		c.durableError("set", k, err)
	}
	if g.Stylesheet != "" {
		c.trackStylesheet(ctx, g.Stylesheet)
	}
}

func (c *Cache) getDurable(ctx context.Context, owner string, key SnippetKey) (durable.Entry, bool) {
	k := durableKey(owner, key)
	b, ok, err := c.durable.Get(ctx, k)
	if err != nil {
		c.durableError("get", k, err)
		return durable.Entry{}, false
	}
	if !ok {
		return durable.Entry{}, false
	}
	e, err := c.entries.Decode(b)
	if err != nil || e.Content == "" {
		c.log.Warn("unreadable durable entry ignored", Fields{"key": k, "err": err})
		return durable.Entry{}, false
	}
	return e, true
}

func (c *Cache) durableError(op, key string, err error) {
	c.hooks.StoreError(&StoreError{Tier: TierDurable, Op: op, Key: key, Err: err})
	c.log.Warn("durable store error", Fields{"op": op, "key": key, "err": err})
}

// Stylesheet is the most recent stylesheet URL reported by upstream.
func (c *Cache) Stylesheet(ctx context.Context) (string, bool) {
	c.styleMu.Lock()
	last := c.lastStyle
	c.styleMu.Unlock()
	if last != "" {
		return last, true
	}
	b, ok, err := c.durable.Get(ctx, stylesheetKey)
	if err != nil {
		c.durableError("get", stylesheetKey, err)
		return "", false
	}
	if !ok {
		return "", false
	}
	e, err := c.entries.Decode(b)
	if err != nil || e.Stylesheet == "" {
		return "", false
	}
	c.styleMu.Lock()
	c.lastStyle = e.Stylesheet
	c.styleMu.Unlock()
	return e.Stylesheet, true
}

func (c *Cache) trackStylesheet(ctx context.Context, url string) {
	if cur, ok := c.Stylesheet(ctx); ok && cur == url {
		return
	}
	b, err := c.entries.Encode(durable.Entry{Stylesheet: url, FetchedAt: c.now()})
	if err == nil {
		err = c.durable.Put(ctx, stylesheetKey, b)
	}
	if err != nil {
		c.durableError("set", stylesheetKey, err)
		return
	}
	c.styleMu.Lock()
	c.lastStyle = url
	c.styleMu.Unlock()
	c.log.Info("stylesheet changed", Fields{"url": url})
}

// Close releases the gen store, the provider and the durable store.
func (c *Cache) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closeErr = errors.Join(
			c.gen.Close(ctx),
			c.provider.Close(ctx),
			c.durable.Close(ctx),
		)
	})
	return c.closeErr
}
