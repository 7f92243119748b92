package gistcache

import "html"

// Kind tags a Result.
type Kind uint8

const (
	// KindHTML carries rendered markup (fresh, cached or durable fallback).
	KindHTML Kind = iota + 1
	// KindUnknown means neither upstream nor the durable store had content.
	KindUnknown
)

// Source tells where a Result came from.
type Source uint8

const (
	SourceNone Source = iota
	SourceRenderedCache
	SourceRawCache
	SourceUpstream
	SourceDurable
)

func (s Source) String() string {
	switch s {
	case SourceRenderedCache:
		return "rendered-cache"
	case SourceRawCache:
		return "raw-cache"
	case SourceUpstream:
		return "upstream"
	case SourceDurable:
		return "durable"
	default:
		return "none"
	}
}

// Result of a render. HTML is empty for KindUnknown; use Output for what
// should be shown to readers.
type Result struct {
	Kind   Kind
	HTML   string
	Source Source
	URL    string // public page of the gist
	Hash   string // request hash, also the debug-log group
}

// Unknown reports the degraded variant.
func (r Result) Unknown() bool { return r.Kind == KindUnknown }

// Output is the markup to embed: the HTML, or a plain link to the gist
// when content could not be determined.
func (r Result) Output() string {
	if r.Kind == KindUnknown {
		return FallbackLink(r.URL)
	}
	return r.HTML
}

// FallbackLink renders url as a clickable link.
func FallbackLink(url string) string {
	u := html.EscapeString(url)
	return `<a href="` + u + `" rel="nofollow">` + u + `</a>`
}
