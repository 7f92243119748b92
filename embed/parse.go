// Package embed finds gist references in documents: [gist ...] shortcodes
// and gist URLs standing on their own line. It turns each into a
// normalized gistcache.Embed, which is what the cache keys and the
// invalidator work with.
package embed

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/gistcache"
)

// maxHighlightSpan bounds how many lines one "a-b" highlight range expands to.
const maxHighlightSpan = 10000

var (
	shortcodeRe = regexp.MustCompile(`\[gist(\s[^\]]*)?\]`)
	attrRe      = regexp.MustCompile(`([\w-]+)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'\]]+))`)
	urlLineRe   = regexp.MustCompile(`(?im)^[ \t]*(https://gist\.github\.com/(?:[^\s#]*/)?([a-z0-9]+)(?:#file([_-])(\S*))?)[ \t]*\r?$`)
	idCleanRe   = regexp.MustCompile(`(?i)[^a-z0-9]+`)
)

// FileResolver maps a bookmark slug ("hello-go") to a file name.
// (*gistcache.Cache).ResolveFile implements it.
type FileResolver interface {
	ResolveFile(ctx context.Context, id, slug string) (string, error)
}

// Match is one embed occurrence in a document.
type Match struct {
	Start, End      int // byte span of Raw in the document
	Raw             string
	Embed           gistcache.Embed
	EmbedStylesheet bool
}

// Parser implements gistcache.Parser.
type Parser struct {
	// Files resolves "#file-..." bookmarks; nil embeds the whole gist.
	Files FileResolver
	// HighlightColor when the shortcode sets none; "" => #ffc.
	HighlightColor string
	Log            gistcache.Logger
}

var _ gistcache.Parser = (*Parser)(nil)

// Parse returns the embeds of content, in document order.
func (p *Parser) Parse(ctx context.Context, content string) []gistcache.Embed {
	ms := p.Find(ctx, content)
	out := make([]gistcache.Embed, len(ms))
	for i, m := range ms {
		out[i] = m.Embed
	}
	return out
}

// Find returns every embed occurrence of content, ordered by position.
// Shortcodes without a usable id are returned with an empty Key.ID so
// Expand can blank them.
func (p *Parser) Find(ctx context.Context, content string) []Match {
	var out []Match
	for _, loc := range shortcodeRe.FindAllStringSubmatchIndex(content, -1) {
		var attrs string
		if loc[2] >= 0 {
			attrs = content[loc[2]:loc[3]]
		}
		m := p.fromAttrs(parseAttrs(attrs))
		m.Start, m.End, m.Raw = loc[0], loc[1], content[loc[0]:loc[1]]
		out = append(out, m)
	}
	for _, loc := range urlLineRe.FindAllStringSubmatchIndex(content, -1) {
		attrs := map[string]string{"id": content[loc[4]:loc[5]]}
		if loc[6] >= 0 && loc[9] > loc[8] {
			delim, slug := content[loc[6]:loc[7]], content[loc[8]:loc[9]]
			if f := p.fileName(ctx, attrs["id"], delim, slug); f != "" {
				attrs["file"] = f
			}
		}
		m := p.fromAttrs(attrs)
		m.Start, m.End, m.Raw = loc[2], loc[3], content[loc[2]:loc[3]]
		out = insertSorted(out, m)
	}
	return out
}

func insertSorted(ms []Match, m Match) []Match {
	i := len(ms)
	for i > 0 && ms[i-1].Start > m.Start {
		i--
	}
	ms = append(ms, Match{})
	copy(ms[i+1:], ms[i:])
	ms[i] = m
	return ms
}

// fileName: "_" bookmarks carry the file name verbatim, "-" bookmarks
// replaced every "." and need the gist's file list.
func (p *Parser) fileName(ctx context.Context, id, delim, slug string) string {
	if delim == "_" {
		return slug
	}
	if p.Files == nil {
		return ""
	}
	f, err := p.Files.ResolveFile(ctx, idCleanRe.ReplaceAllString(id, ""), slug)
	if err != nil && p.Log != nil {
		p.Log.Debug("bookmark not resolved", gistcache.Fields{"id": id, "slug": slug, "err": err})
	}
	return f
}

func parseAttrs(s string) map[string]string {
	out := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(s, -1) {
		v := m[2]
		if v == "" {
			v = m[3]
		}
		if v == "" {
			v = m[4]
		}
		out[strings.ToLower(m[1])] = v
	}
	return out
}

func (p *Parser) fromAttrs(a map[string]string) Match {
	opts := gistcache.DefaultRenderOptions()
	if p.HighlightColor != "" {
		opts.HighlightColor = p.HighlightColor
	}
	if v, ok := a["highlight_color"]; ok {
		opts.HighlightColor = strings.TrimSpace(v)
	}
	opts.ShowLineNumbers = boolAttr(a, "show_line_numbers")
	opts.ShowMeta = boolAttr(a, "show_meta")
	opts.Highlight = ParseHighlight(a["highlight"])
	opts.Lines = ParseLines(a["lines"])
	opts.LineStart = absInt(a["lines_start"])

	return Match{
		Embed: gistcache.Embed{
			Key: gistcache.SnippetKey{
				ID:   idCleanRe.ReplaceAllString(a["id"], ""),
				File: strings.TrimSpace(a["file"]),
			},
			Options: opts,
		},
		EmbedStylesheet: boolAttr(a, "embed_stylesheet"),
	}
}

// boolAttr: absent => true; "", false, 0, no, n => false.
func boolAttr(a map[string]string, name string) bool {
	v, ok := a[name]
	if !ok {
		return true
	}
	return ParseBool(v)
}

// ParseBool is false for "", "false", "0", "no" and "n" (any case).
func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "false", "0", "no", "n":
		return false
	}
	return true
}

// ParseHighlight expands "2,4,6-10" into line numbers. Invalid parts are
// skipped.
func ParseHighlight(s string) []int {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	seen := make(map[int]struct{})
	var out []int
	add := func(n int) {
		if _, dup := seen[n]; n > 0 && !dup {
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			if n, err := strconv.Atoi(part); err == nil {
				add(n)
			}
			continue
		}
		a, errA := strconv.Atoi(strings.TrimSpace(lo))
		b, errB := strconv.Atoi(strings.TrimSpace(hi))
		if errA != nil || errB != nil {
			continue
		}
		if a > b {
			a, b = b, a
		}
		if b-a > maxHighlightSpan {
			b = a + maxHighlightSpan
		}
		for n := a; n <= b; n++ {
			add(n)
		}
	}
	return out
}

// ParseLines reads "N" (just line N) or "A-B".
func ParseLines(s string) gistcache.LineRange {
	s = strings.TrimSpace(s)
	if s == "" {
		return gistcache.LineRange{}
	}
	lo, hi, isRange := strings.Cut(s, "-")
	if !isRange {
		n := absInt(s)
		return gistcache.LineRange{Min: n, Max: n}
	}
	return gistcache.LineRange{Min: absInt(lo), Max: absInt(hi)}
}

// absInt parses the leading integer of s as a non-negative number; junk => 0.
func absInt(s string) int {
	s = strings.TrimLeft(strings.TrimSpace(s), "+-")
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
