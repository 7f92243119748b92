package gistcache

import (
	"context"
	"errors"
	"strings"
)

// OnContentChanged drops every rendered entry referenced by either version
// of a document, so a changed embed is re-rendered on next view and a
// removed one does not linger. Raw and durable entries stay: the snippet
// itself did not change.
func (c *Cache) OnContentChanged(ctx context.Context, before, after string) error {
	if c.parser == nil {
		return ErrNoParser
	}
	embeds := c.parser.Parse(ctx, before)
	embeds = append(embeds, c.parser.Parse(ctx, after)...)
	return c.InvalidateEmbeds(ctx, embeds)
}

// InvalidateEmbeds invalidates the rendered entry of each embed and the
// file list of each referenced gist. Duplicates are invalidated once.
func (c *Cache) InvalidateEmbeds(ctx context.Context, embeds []Embed) error {
	hashes := make(map[string]struct{}, len(embeds))
	ids := make(map[string]struct{})
	var errs []error
	for _, e := range embeds {
		if e.Key.Validate() != nil {
			continue
		}
		h := RequestHash(e.Key, e.Options)
		if _, dup := hashes[h]; !dup {
			hashes[h] = struct{}{}
			if err := c.html.invalidate(ctx, h); err != nil {
				errs = append(errs, err)
			}
		}
		if _, dup := ids[e.Key.ID]; !dup {
			ids[e.Key.ID] = struct{}{}
			if err := c.files.invalidate(ctx, e.Key.ID); err != nil {
				errs = append(errs, err)
			}
		}
	}
	c.log.Info("invalidated embeds", Fields{"rendered": len(hashes), "gists": len(ids), "failed": len(errs)})
	return errors.Join(errs...)
}

// Purge forgets everything known about one snippet for owner: the raw
// entry and the durable copy. Rendered entries expire on their own or are
// dropped by OnContentChanged.
func (c *Cache) Purge(ctx context.Context, owner string, key SnippetKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	var errs []error
	if err := c.raw.invalidate(ctx, key.String()); err != nil {
		errs = append(errs, err)
	}
	k := durableKey(owner, key)
	if err := c.durable.Delete(ctx, k); err != nil {
		c.durableError("del", k, err)
		errs = append(errs, &StoreError{Tier: TierDurable, Op: "del", Key: k, Err: err})
	}
	return errors.Join(errs...)
}

// FileSlug is the bookmark form of a file name: "hello.go" => "hello-go".
func FileSlug(name string) string { return strings.ReplaceAll(name, ".", "-") }

// Files lists the file names of gist id, cached per gist. An empty list is
// cached for a short time so a broken bookmark does not fetch on every view.
func (c *Cache) Files(ctx context.Context, id string) ([]string, error) {
	key := SnippetKey{ID: id}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if hit, ok := c.files.get(ctx, id); ok && !hit.unknown {
		return hit.value, nil
	}
	obs := c.files.snapshot(ctx, id)
	g, err := c.fetch(ctx, key)
	if err != nil || len(g.Files) == 0 {
		if ctx.Err() == nil {
			c.files.set(ctx, id, []string{}, obs, c.filesMissTTL)
		}
		c.log.Debug("file list unavailable", Fields{"id": id, "err": err})
		return nil, nil
	}
	c.files.set(ctx, id, g.Files, obs, c.filesTTL)
	return g.Files, nil
}

// ResolveFile maps a bookmark slug to the file name it stands for, or ""
// when no file of the gist matches.
func (c *Cache) ResolveFile(ctx context.Context, id, slug string) (string, error) {
	files, err := c.Files(ctx, id)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if FileSlug(f) == slug {
			return f, nil
		}
	}
	return "", nil
}
