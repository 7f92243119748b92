package embed

import (
	"context"
	"reflect"
	"testing"

	"github.com/unkn0wn-root/gistcache"
)

type staticFiles map[string]string

func (s staticFiles) ResolveFile(_ context.Context, id, slug string) (string, error) {
	return s[id+"#"+slug], nil
}

func TestShortcodeAttributes(t *testing.T) {
	p := &Parser{}
	doc := `intro [gist id="abc-123!" file='hello.go' highlight="1, 3-5,3" lines="2-8" lines_start=10 show_meta=no highlight_color="#f00" embed_stylesheet="0"] outro`

	ms := p.Find(context.Background(), doc)
	if len(ms) != 1 {
		t.Fatalf("matches=%d", len(ms))
	}
	m := ms[0]
	if doc[m.Start:m.End] != m.Raw || m.Raw[:5] != "[gist" {
		t.Fatalf("span %d..%d raw=%q", m.Start, m.End, m.Raw)
	}
	want := gistcache.Embed{
		Key: gistcache.SnippetKey{ID: "abc123", File: "hello.go"},
		Options: gistcache.RenderOptions{
			Highlight:       []int{1, 3, 4, 5},
			HighlightColor:  "#f00",
			Lines:           gistcache.LineRange{Min: 2, Max: 8},
			LineStart:       10,
			ShowLineNumbers: true,
			ShowMeta:        false,
		},
	}
	if !reflect.DeepEqual(m.Embed, want) {
		t.Fatalf("embed:\n got %+v\nwant %+v", m.Embed, want)
	}
	if m.EmbedStylesheet {
		t.Fatal("embed_stylesheet=0 should be false")
	}
}

func TestShortcodeDefaults(t *testing.T) {
	p := &Parser{HighlightColor: "#eee"}
	es := p.Parse(context.Background(), `[gist id=abc]`)
	if len(es) != 1 {
		t.Fatalf("embeds=%d", len(es))
	}
	o := es[0].Options
	if !o.ShowLineNumbers || !o.ShowMeta || o.HighlightColor != "#eee" || o.Highlight != nil {
		t.Fatalf("defaults: %+v", o)
	}
}

func TestURLLines(t *testing.T) {
	p := &Parser{Files: staticFiles{"abc123#hello-go": "hello.go"}}
	doc := "first\n" +
		"https://gist.github.com/someone/abc123#file-hello-go\n" +
		"inline https://gist.github.com/zzz is not an embed\n" +
		"  https://gist.github.com/def456#file_notes.txt  \n" +
		"https://gist.github.com/abc123#file-missing-md\n"

	es := p.Parse(context.Background(), doc)
	want := []gistcache.SnippetKey{
		{ID: "abc123", File: "hello.go"},
		{ID: "def456", File: "notes.txt"},
		{ID: "abc123"},
	}
	if len(es) != len(want) {
		t.Fatalf("embeds=%+v", es)
	}
	for i, e := range es {
		if e.Key != want[i] {
			t.Fatalf("embed %d: got %+v want %+v", i, e.Key, want[i])
		}
	}
}

func TestFindOrdersShortcodesAndURLs(t *testing.T) {
	p := &Parser{}
	doc := "https://gist.github.com/aaa\n[gist id=bbb]\nhttps://gist.github.com/ccc"
	var ids []string
	for _, m := range p.Find(context.Background(), doc) {
		ids = append(ids, m.Embed.Key.ID)
	}
	if !reflect.DeepEqual(ids, []string{"aaa", "bbb", "ccc"}) {
		t.Fatalf("order=%v", ids)
	}
}

func TestParseHelpers(t *testing.T) {
	if got := ParseHighlight("5-3, x, 7,7"); !reflect.DeepEqual(got, []int{3, 4, 5, 7}) {
		t.Fatalf("ParseHighlight=%v", got)
	}
	if got := ParseLines("4"); got != (gistcache.LineRange{Min: 4, Max: 4}) {
		t.Fatalf("ParseLines(4)=%+v", got)
	}
	if got := ParseLines(" 2 - 9 "); got != (gistcache.LineRange{Min: 2, Max: 9}) {
		t.Fatalf("ParseLines=%+v", got)
	}
	for in, want := range map[string]bool{"": false, "N": false, "No": false, "0": false, "FALSE": false, "1": true, "yes": true} {
		if ParseBool(in) != want {
			t.Fatalf("ParseBool(%q) != %v", in, want)
		}
	}
}

type fakeRenderer struct{}

func (fakeRenderer) Render(_ context.Context, _ string, k gistcache.SnippetKey, _ gistcache.RenderOptions) (gistcache.Result, error) {
	if err := k.Validate(); err != nil {
		return gistcache.Result{}, err
	}
	if k.ID == "gone" {
		return gistcache.Result{Kind: gistcache.KindUnknown, URL: "https://gist.github.com/gone"}, nil
	}
	return gistcache.Result{Kind: gistcache.KindHTML, HTML: "<gist " + k.ID + ">"}, nil
}

func TestExpand(t *testing.T) {
	p := &Parser{}
	doc := "a [gist id=one] b [gist file=x] c\nhttps://gist.github.com/gone\nend"
	got, err := p.Expand(context.Background(), doc, "post-1", fakeRenderer{})
	if err != nil {
		t.Fatal(err)
	}
	want := "a <gist one> b  c\n" + gistcache.FallbackLink("https://gist.github.com/gone") + "\nend"
	if got.HTML != want {
		t.Fatalf("html:\n got %q\nwant %q", got.HTML, want)
	}
	if got.Embeds != 2 || got.Unknown != 1 || !got.Stylesheet {
		t.Fatalf("stats: %+v", got)
	}
}
