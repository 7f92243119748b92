// Package promhooks exports cache events as Prometheus metrics.
package promhooks

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/gistcache"
)

const namespace = "gistcache"

type Hooks struct {
	lookups   *prometheus.CounterVec
	fetches   *prometheus.CounterVec
	fetchTime prometheus.Histogram
	fallbacks *prometheus.CounterVec
	selfHeals *prometheus.CounterVec
	rejected  prometheus.Counter
	storeErrs *prometheus.CounterVec
	outages   prometheus.Counter
}

var _ gistcache.Hooks = (*Hooks)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Hooks, error) {
	h := &Hooks{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "lookups_total",
			Help: "Ephemeral tier lookups by tier and result.",
		}, []string{"tier", "result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetches_total",
			Help: "Upstream fetches by outcome.",
		}, []string{"outcome"}),
		fetchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "fetch_duration_seconds",
			Help:    "Upstream fetch latency.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fallbacks_total",
			Help: "Renders served without fresh content, by source.",
		}, []string{"source"}),
		selfHeals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "self_heals_total",
			Help: "Entries deleted on read, by reason.",
		}, []string{"reason"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "provider_set_rejected_total",
			Help: "Writes refused by the ephemeral provider.",
		}),
		storeErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "store_errors_total",
			Help: "Backend errors by tier and operation.",
		}, []string{"tier", "op"}),
		outages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "invalidate_outages_total",
			Help: "Invalidations where both gen bump and delete failed.",
		}),
	}
	for _, c := range []prometheus.Collector{
		h.lookups, h.fetches, h.fetchTime, h.fallbacks,
		h.selfHeals, h.rejected, h.storeErrs, h.outages,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) CacheHit(t gistcache.Tier, _ string) {
	h.lookups.WithLabelValues(string(t), "hit").Inc()
}

func (h *Hooks) CacheMiss(t gistcache.Tier, _ string) {
	h.lookups.WithLabelValues(string(t), "miss").Inc()
}

func (h *Hooks) FetchAttempted(_ gistcache.SnippetKey, elapsed time.Duration, err error) {
	h.fetchTime.Observe(elapsed.Seconds())
	h.fetches.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	var fe *gistcache.FetchError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &fe) && fe.Timeout():
		return "timeout"
	case errors.Is(err, gistcache.ErrEmptyContent):
		return "empty"
	case errors.Is(err, gistcache.ErrUnexpectedStatus):
		return "status"
	default:
		return "error"
	}
}

func (h *Hooks) FallbackServed(_ gistcache.SnippetKey, s gistcache.Source) {
	h.fallbacks.WithLabelValues(s.String()).Inc()
}

func (h *Hooks) SelfHeal(_ string, reason string) {
	h.selfHeals.WithLabelValues(reason).Inc()
}

func (h *Hooks) ProviderSetRejected(string) { h.rejected.Inc() }

func (h *Hooks) StoreError(err *gistcache.StoreError) {
	h.storeErrs.WithLabelValues(string(err.Tier), err.Op).Inc()
}

func (h *Hooks) InvalidateOutage(string, error, error) { h.outages.Inc() }
