// Package zap adapts a *zap.Logger to gistcache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/gistcache"
)

var _ gistcache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New builds a production logger at level ("debug", "info", ...). With
// console set the output is human readable instead of JSON.
func New(level string, console bool) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return Logger{}, err
	}
	cfg := zap.NewProductionConfig()
	if console {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return Logger{}, err
	}
	return Logger{L: l.Named("gistcache")}, nil
}

func (z Logger) Debug(msg string, f gistcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f gistcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f gistcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f gistcache.Fields) { z.L.Error(msg, fields(f)...) }

// Sync flushes buffered entries.
func (z Logger) Sync() error { return z.L.Sync() }

func fields(f gistcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		switch v := f[k].(type) {
		case nil:
			// omitted
		case error:
			out = append(out, zap.NamedError(k, v))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}
