// Package fetcher calls the upstream gist JSON endpoint.
package fetcher

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unkn0wn-root/gistcache"
)

const (
	DefaultBaseURL = "https://gist.github.com"
	DefaultTimeout = 10 * time.Second

	maxBody = 8 << 20
)

type Config struct {
	BaseURL   string        // "" => https://gist.github.com
	Timeout   time.Duration // whole request; 0 => 10s
	VerifyTLS bool          // false tolerates upstream certificate quirks
	UserAgent string
	Client    *http.Client // overrides Timeout and VerifyTLS when set
}

// Fetcher performs one GET per call. It never retries: the cache decides
// when to try again.
type Fetcher struct {
	base   string
	ua     string
	client *http.Client
}

var _ gistcache.Fetcher = (*Fetcher)(nil)

func New(cfg Config) *Fetcher {
	f := &Fetcher{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		ua:   cfg.UserAgent,
	}
	if f.base == "" {
		f.base = DefaultBaseURL
	}
	if f.ua == "" {
		f.ua = "gistcache/1"
	}
	if cfg.Client != nil {
		f.client = cfg.Client
		return f
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifyTLS {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // upstream cert quirks
	}
	f.client = &http.Client{Timeout: timeout, Transport: tr}
	return f
}

// URL is the JSON endpoint for key.
func (f *Fetcher) URL(key gistcache.SnippetKey) string {
	u := f.base + "/" + url.PathEscape(key.ID) + ".json"
	if key.File != "" {
		u += "?file=" + url.QueryEscape(key.File)
	}
	return u
}

type payload struct {
	Div        string   `json:"div"`
	Stylesheet string   `json:"stylesheet"`
	Files      []string `json:"files"`
}

func (f *Fetcher) Fetch(ctx context.Context, key gistcache.SnippetKey) (gistcache.Gist, error) {
	u := f.URL(key)
	fail := func(status int, err error) (gistcache.Gist, error) {
		return gistcache.Gist{}, &gistcache.FetchError{Key: key, URL: u, Status: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.ua)

	resp, err := f.client.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return fail(resp.StatusCode, gistcache.ErrUnexpectedStatus)
	}

	var p payload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&p); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode body: %w", err))
	}
	if strings.TrimSpace(p.Div) == "" {
		return fail(resp.StatusCode, gistcache.ErrEmptyContent)
	}
	return gistcache.Gist{
		Div:        p.Div,
		Stylesheet: f.absolute(p.Stylesheet),
		Files:      p.Files,
	}, nil
}

func (f *Fetcher) absolute(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	if strings.HasPrefix(ref, "/") {
		return f.base + ref
	}
	return ref
}

// IsTimeout reports whether err is a fetch that gave up waiting.
func IsTimeout(err error) bool {
	var fe *gistcache.FetchError
	return errors.As(err, &fe) && fe.Timeout()
}
