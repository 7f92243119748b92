// Package server exposes the cache over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unkn0wn-root/gistcache"
	"github.com/unkn0wn-root/gistcache/embed"
	"github.com/unkn0wn-root/gistcache/log/recorder"
)

// Service is the part of *gistcache.Cache the handlers use.
type Service interface {
	Render(ctx context.Context, owner string, key gistcache.SnippetKey, opts gistcache.RenderOptions) (gistcache.Result, error)
	OnContentChanged(ctx context.Context, before, after string) error
	Purge(ctx context.Context, owner string, key gistcache.SnippetKey) error
	Stylesheet(ctx context.Context) (string, bool)
}

type Config struct {
	Service  Service
	Parser   *embed.Parser
	Log      gistcache.Logger
	Owner    string             // used when a request names no owner
	MaxBody  int64              // request body limit; 0 => 4MB
	Recorder *recorder.Recorder // nil => no /debug/gists
	Gatherer prometheus.Gatherer
}

type Server struct {
	svc     Service
	parser  *embed.Parser
	log     gistcache.Logger
	owner   string
	maxBody int64
	rec     *recorder.Recorder
}

// Handler builds the router.
func Handler(cfg Config) http.Handler {
	s := &Server{
		svc:     cfg.Service,
		parser:  cfg.Parser,
		log:     cfg.Log,
		owner:   cfg.Owner,
		maxBody: cfg.MaxBody,
		rec:     cfg.Recorder,
	}
	if s.log == nil {
		s.log = gistcache.NopLogger{}
	}
	if s.parser == nil {
		s.parser = &embed.Parser{}
	}
	if s.maxBody <= 0 {
		s.maxBody = 4 << 20
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	r.Get("/gists/{id}", s.handleGist)
	r.Delete("/gists/{id}", s.handlePurge)
	r.Post("/render", s.handleRender)
	r.Post("/content-changed", s.handleContentChanged)
	r.Get("/stylesheet", s.handleStylesheet)
	if s.rec != nil {
		r.Route("/debug/gists", func(r chi.Router) {
			r.Get("/", s.handleDebugList)
			r.Get("/{hash}", s.handleDebugGroup)
			r.Delete("/", s.handleDebugReset)
		})
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request", gistcache.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  ww.Status(),
			"bytes":   ww.BytesWritten(),
			"elapsed": time.Since(start),
			"reqID":   middleware.GetReqID(r.Context()),
		})
	})
}

// keyAndOptions reads the snippet and its options from the query string,
// using the same attribute names as the [gist] shortcode.
func (s *Server) keyAndOptions(r *http.Request) (gistcache.SnippetKey, gistcache.RenderOptions) {
	q := r.URL.Query()
	key := gistcache.SnippetKey{ID: chi.URLParam(r, "id"), File: q.Get("file")}
	opts := gistcache.DefaultRenderOptions()
	if s.parser.HighlightColor != "" {
		opts.HighlightColor = s.parser.HighlightColor
	}
	if v := q.Get("highlight_color"); v != "" {
		opts.HighlightColor = v
	}
	if q.Has("show_line_numbers") {
		opts.ShowLineNumbers = embed.ParseBool(q.Get("show_line_numbers"))
	}
	if q.Has("show_meta") {
		opts.ShowMeta = embed.ParseBool(q.Get("show_meta"))
	}
	opts.Highlight = embed.ParseHighlight(q.Get("highlight"))
	opts.Lines = embed.ParseLines(q.Get("lines"))
	if n, err := strconv.Atoi(q.Get("lines_start")); err == nil && n > 0 {
		opts.LineStart = n
	}
	return key, opts
}

func (s *Server) ownerOf(r *http.Request) string {
	if o := r.URL.Query().Get("owner"); o != "" {
		return o
	}
	return s.owner
}

func (s *Server) handleGist(w http.ResponseWriter, r *http.Request) {
	key, opts := s.keyAndOptions(r)
	res, err := s.svc.Render(r.Context(), s.ownerOf(r), key, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Gist-Source", res.Source.String())
	if res.Unknown() {
		w.Header().Set("X-Gist-Unknown", "1")
	}
	_, _ = io.WriteString(w, res.Output())
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	key, _ := s.keyAndOptions(r)
	if err := s.svc.Purge(r.Context(), s.ownerOf(r), key); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type renderResponse struct {
	HTML       string `json:"html"`
	Stylesheet string `json:"stylesheet,omitempty"`
	Embeds     int    `json:"embeds"`
	Unknown    int    `json:"unknown"`
}

// handleRender expands every embed of the request body.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error()})
		return
	}
	out, err := s.parser.Expand(r.Context(), string(body), s.ownerOf(r), s.svc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := renderResponse{HTML: out.HTML, Embeds: out.Embeds, Unknown: out.Unknown}
	if out.Stylesheet {
		resp.Stylesheet, _ = s.svc.Stylesheet(r.Context())
	}
	writeJSON(w, http.StatusOK, resp)
}

type contentChange struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

func (s *Server) handleContentChanged(w http.ResponseWriter, r *http.Request) {
	var req contentChange
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body: " + err.Error()})
		return
	}
	if err := s.svc.OnContentChanged(r.Context(), req.Before, req.After); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStylesheet(w http.ResponseWriter, r *http.Request) {
	url, ok := s.svc.Stylesheet(r.Context())
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no stylesheet seen yet"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleDebugList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.rec.Groups())
}

func (s *Server) handleDebugGroup(w http.ResponseWriter, r *http.Request) {
	g, ok := s.rec.Group(chi.URLParam(r, "hash"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown hash"})
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDebugReset(w http.ResponseWriter, _ *http.Request) {
	s.rec.Reset()
	w.WriteHeader(http.StatusNoContent)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps cache errors to statuses: bad input is the caller's
// fault, a failed invalidation is an outage.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		ie  *gistcache.InputError
		inv *gistcache.InvalidateError
	)
	switch {
	case errors.As(err, &ie):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, gistcache.ErrNoParser):
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	case errors.As(err, &inv):
		s.log.Error("invalidation failed", gistcache.Fields{"err": err})
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
	default:
		s.log.Error("request failed", gistcache.Fields{"err": err})
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
