// Package slog adapts a *slog.Logger to gistcache.Logger.
package slog

import (
	"context"
	"io"
	stdslog "log/slog"
	"sort"

	"github.com/unkn0wn-root/gistcache"
)

var _ gistcache.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

// New logs to w at level, as JSON or text.
func New(w io.Writer, level string, json bool) (Logger, error) {
	var lvl stdslog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return Logger{}, err
	}
	opts := &stdslog.HandlerOptions{Level: lvl}
	var h stdslog.Handler = stdslog.NewTextHandler(w, opts)
	if json {
		h = stdslog.NewJSONHandler(w, opts)
	}
	return Logger{L: stdslog.New(h)}, nil
}

func (s Logger) Debug(msg string, f gistcache.Fields) { s.log(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f gistcache.Fields)  { s.log(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f gistcache.Fields)  { s.log(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f gistcache.Fields) { s.log(stdslog.LevelError, msg, f) }

func (s Logger) log(lvl stdslog.Level, msg string, f gistcache.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, lvl) {
		return
	}
	s.L.LogAttrs(ctx, lvl, msg, attrs(f)...)
}

func attrs(f gistcache.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]stdslog.Attr, 0, len(f))
	for _, k := range keys {
		out = append(out, stdslog.Any(k, f[k]))
	}
	return out
}
