package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/gistcache"
	"github.com/unkn0wn-root/gistcache/embed"
	"github.com/unkn0wn-root/gistcache/log/recorder"
)

type fakeService struct {
	lastOwner string
	lastKey   gistcache.SnippetKey
	lastOpts  gistcache.RenderOptions
	changed   []string
	purged    []gistcache.SnippetKey
	style     string
	changeErr error
}

func (f *fakeService) Render(_ context.Context, owner string, key gistcache.SnippetKey, opts gistcache.RenderOptions) (gistcache.Result, error) {
	if err := key.Validate(); err != nil {
		return gistcache.Result{}, err
	}
	f.lastOwner, f.lastKey, f.lastOpts = owner, key, opts
	if key.ID == "gone" {
		return gistcache.Result{Kind: gistcache.KindUnknown, URL: "https://gist.github.com/gone"}, nil
	}
	return gistcache.Result{Kind: gistcache.KindHTML, HTML: "<div>" + key.String() + "</div>", Source: gistcache.SourceUpstream}, nil
}

func (f *fakeService) OnContentChanged(_ context.Context, before, after string) error {
	f.changed = append(f.changed, before, after)
	return f.changeErr
}

func (f *fakeService) Purge(_ context.Context, _ string, key gistcache.SnippetKey) error {
	f.purged = append(f.purged, key)
	return nil
}

func (f *fakeService) Stylesheet(context.Context) (string, bool) { return f.style, f.style != "" }

func newServer(t *testing.T, svc *fakeService, rec *recorder.Recorder) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(Handler(Config{
		Service:  svc,
		Parser:   &embed.Parser{},
		Owner:    "site",
		Recorder: rec,
		Gatherer: prometheus.NewRegistry(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetGistParsesOptions(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(t, svc, nil)

	resp, err := http.Get(srv.URL + "/gists/abc123?file=x.go&highlight=1-3&lines=2-5&lines_start=7&show_meta=no&owner=post-9")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("X-Gist-Source") != "upstream" {
		t.Fatalf("status=%d source=%q", resp.StatusCode, resp.Header.Get("X-Gist-Source"))
	}
	if svc.lastOwner != "post-9" || svc.lastKey != (gistcache.SnippetKey{ID: "abc123", File: "x.go"}) {
		t.Fatalf("owner=%q key=%+v", svc.lastOwner, svc.lastKey)
	}
	o := svc.lastOpts
	if len(o.Highlight) != 3 || o.Lines != (gistcache.LineRange{Min: 2, Max: 5}) || o.LineStart != 7 || o.ShowMeta || !o.ShowLineNumbers {
		t.Fatalf("opts=%+v", o)
	}
}

func TestGetGistStatuses(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(t, svc, nil)

	resp, err := http.Get(srv.URL + "/gists/bad-id")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid id: status=%d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/gists/gone")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("X-Gist-Unknown") != "1" {
		t.Fatalf("unknown: status=%d headers=%v", resp.StatusCode, resp.Header)
	}
	if svc.lastOwner != "site" {
		t.Fatalf("default owner not applied: %q", svc.lastOwner)
	}
}

func TestRenderDocument(t *testing.T) {
	svc := &fakeService{style: "https://gist.github.com/embed.css"}
	srv := newServer(t, svc, nil)

	resp, err := http.Post(srv.URL+"/render?owner=post-1", "text/plain", strings.NewReader("a [gist id=one] b\nhttps://gist.github.com/gone\n"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.HTML, "<div>one</div>") || got.Embeds != 2 || got.Unknown != 1 {
		t.Fatalf("render: %+v", got)
	}
	if got.Stylesheet != svc.style {
		t.Fatalf("stylesheet=%q", got.Stylesheet)
	}
}

func TestContentChanged(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(t, svc, nil)

	resp, err := http.Post(srv.URL+"/content-changed", "application/json", strings.NewReader(`{"before":"[gist id=a]","after":""}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || len(svc.changed) != 2 || svc.changed[0] != "[gist id=a]" {
		t.Fatalf("status=%d changed=%v", resp.StatusCode, svc.changed)
	}

	resp, err = http.Post(srv.URL+"/content-changed", "application/json", strings.NewReader(`{`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body: status=%d", resp.StatusCode)
	}

	svc.changeErr = &gistcache.InvalidateError{Key: "k"}
	resp, err = http.Post(srv.URL+"/content-changed", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("outage: status=%d", resp.StatusCode)
	}
}

func TestPurgeAndStylesheet(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(t, svc, nil)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/gists/abc?file=a.go", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || len(svc.purged) != 1 || svc.purged[0].File != "a.go" {
		t.Fatalf("purge: status=%d purged=%v", resp.StatusCode, svc.purged)
	}

	resp, err = http.Get(srv.URL + "/stylesheet")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("stylesheet before any fetch: %d", resp.StatusCode)
	}
}

func TestDebugAndMetrics(t *testing.T) {
	rec := recorder.New(nil, 0, 0)
	rec.Info("served", gistcache.Fields{"hash": "h1"})
	srv := newServer(t, &fakeService{}, rec)

	resp, err := http.Get(srv.URL + "/debug/gists/h1")
	if err != nil {
		t.Fatal(err)
	}
	var g recorder.Group
	err = json.NewDecoder(resp.Body).Decode(&g)
	resp.Body.Close()
	if err != nil || g.Hash != "h1" || len(g.Entries) != 1 {
		t.Fatalf("group=%+v err=%v", g, err)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
}
