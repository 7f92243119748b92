package embed

import (
	"context"
	"errors"
	"strings"

	"github.com/unkn0wn-root/gistcache"
)

// Renderer renders one embed; *gistcache.Cache implements it.
type Renderer interface {
	Render(ctx context.Context, owner string, key gistcache.SnippetKey, opts gistcache.RenderOptions) (gistcache.Result, error)
}

// Expanded is a document with every embed replaced by its output.
type Expanded struct {
	HTML string
	// Stylesheet is true when at least one rendered embed asked for the
	// upstream stylesheet.
	Stylesheet bool
	Embeds     int
	Unknown    int
}

// Expand replaces every embed of doc with its rendered output on behalf of
// owner. Embeds with an invalid id are removed. Only ctx errors abort.
func (p *Parser) Expand(ctx context.Context, doc, owner string, r Renderer) (Expanded, error) {
	var (
		out  Expanded
		b    strings.Builder
		last int
	)
	b.Grow(len(doc))
	for _, m := range p.Find(ctx, doc) {
		if m.Start < last {
			continue // overlapping match (URL inside a shortcode)
		}
		if err := ctx.Err(); err != nil {
			return Expanded{}, err
		}
		b.WriteString(doc[last:m.Start])
		last = m.End

		res, err := r.Render(ctx, owner, m.Embed.Key, m.Embed.Options)
		var ie *gistcache.InputError
		if errors.As(err, &ie) {
			if p.Log != nil {
				p.Log.Debug("embed dropped", gistcache.Fields{"raw": m.Raw, "err": err})
			}
			continue
		}
		if err != nil {
			return Expanded{}, err
		}
		out.Embeds++
		if res.Unknown() {
			out.Unknown++
		} else if m.EmbedStylesheet {
			out.Stylesheet = true
		}
		b.WriteString(res.Output())
	}
	b.WriteString(doc[last:])
	out.HTML = b.String()
	return out, nil
}
