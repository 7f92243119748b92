// Package render post-processes upstream gist markup: line range, line
// highlighting, line numbers and the meta footer. It is a pure function of
// its input; anything it cannot handle is returned unchanged.
package render

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/unkn0wn-root/gistcache"
)

// Renderer implements gistcache.Renderer.
type Renderer struct{}

var _ gistcache.Renderer = Renderer{}

func (Renderer) Render(raw string, opts gistcache.RenderOptions) string { return Render(raw, opts) }

// Render applies opts to raw.
func Render(raw string, opts gistcache.RenderOptions) (out string) {
	defer func() {
		if recover() != nil {
			out = raw
		}
	}()

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(raw), body)
	if err != nil {
		return raw
	}
	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	if !opts.ShowLineNumbers {
		removeAll(root, func(n *html.Node) bool { return n.DataAtom == atom.Td && hasClass(n, "js-line-number") })
	}
	if !opts.ShowMeta {
		removeAll(root, func(n *html.Node) bool { return n.DataAtom == atom.Div && hasClass(n, "gist-meta") })
	}

	highlight := opts.HighlightSet()
	var style string
	if opts.HighlightColor != "" {
		style = "background-color: " + opts.HighlightColor + " !important"
	}

	var kept, drop []*html.Node
	for i, tr := range findAll(root, atom.Tr) {
		line := i + 1
		if (opts.Lines.Min > 0 && line < opts.Lines.Min) || (opts.Lines.Max > 0 && line > opts.Lines.Max) {
			drop = append(drop, tr)
			continue
		}
		kept = append(kept, tr)
		addClass(tr, "line")
		if _, ok := highlight[line]; !ok {
			continue
		}
		addClass(tr, "line-highlight")
		if style == "" {
			continue
		}
		for _, td := range findAll(tr, atom.Td) {
			if cur := getAttr(td, "style"); cur != "" {
				setAttr(td, "style", cur+";"+style)
			} else {
				setAttr(td, "style", style)
			}
		}
	}
	for _, tr := range drop {
		tr.Parent.RemoveChild(tr)
	}

	if opts.ShowLineNumbers && ((opts.Lines.Min > 0 && opts.Lines.Max > 0) || opts.LineStart > 0) {
		start := opts.LineStart
		if start <= 0 {
			start = opts.Lines.Min
		}
		for i, tr := range kept {
			if tds := findAll(tr, atom.Td); len(tds) > 0 {
				setAttr(tds[0], "data-line-number", strconv.Itoa(start+i))
			}
		}
	}

	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return raw
		}
	}
	return b.String()
}

// findAll returns descendants of n with tag a, in document order.
func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(p *html.Node) {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == a {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func removeAll(n *html.Node, match func(*html.Node) bool) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && match(c) {
			n.RemoveChild(c)
		} else {
			removeAll(c, match)
		}
		c = next
	}
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, cls string) bool {
	for _, f := range strings.Fields(getAttr(n, "class")) {
		if f == cls {
			return true
		}
	}
	return false
}

func addClass(n *html.Node, cls string) {
	if cur := getAttr(n, "class"); cur != "" {
		setAttr(n, "class", cur+" "+cls)
		return
	}
	setAttr(n, "class", cls)
}
