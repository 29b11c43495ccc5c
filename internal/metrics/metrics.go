// Package metrics exposes the Prometheus collectors named in §4.10: cache
// hits/misses/errors, invalidations, active bucket count, sync attempts and
// failures, breaker state transitions, and upstream latency.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups every counter/gauge/histogram the core emits.
type Collectors struct {
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	CacheErrors       prometheus.Counter
	CacheBypasses     prometheus.Counter
	Invalidations     prometheus.Counter
	ActiveBuckets     prometheus.Gauge
	SyncAttempts      prometheus.Counter
	SyncFailures      prometheus.Counter
	BreakerTransition *prometheus.CounterVec
	UpstreamLatency   prometheus.Histogram
}

// New registers and returns the collector set against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry across package-level test runs.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog", Subsystem: "cache", Name: "hits_total",
			Help: "Bucket cache lookups fully satisfied from cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog", Subsystem: "cache", Name: "misses_total",
			Help: "Bucket cache lookups that required a durable-store read for at least one month.",
		}),
		CacheErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog", Subsystem: "cache", Name: "errors_total",
			Help: "Bucket cache transport/serialization failures.",
		}),
		CacheBypasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog", Subsystem: "cache", Name: "bypasses_total",
			Help: "Queries that bypassed the cache due to month decomposition size.",
		}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog", Subsystem: "cache", Name: "invalidations_total",
			Help: "Bucket months dropped by sync invalidation.",
		}),
		ActiveBuckets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "catalog", Subsystem: "cache", Name: "active_buckets",
			Help: "Approximate number of live bucket keys under the configured prefix.",
		}),
		SyncAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog", Subsystem: "sync", Name: "attempts_total",
			Help: "sync_once invocations started.",
		}),
		SyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalog", Subsystem: "sync", Name: "failures_total",
			Help: "sync_once invocations with a swallowed, logged failure.",
		}),
		BreakerTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalog", Subsystem: "provider", Name: "breaker_transitions_total",
			Help: "Circuit breaker state transitions, labeled by resulting state.",
		}, []string{"state"}),
		UpstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "catalog", Subsystem: "provider", Name: "upstream_latency_seconds",
			Help:    "Latency of upstream catalog fetch calls.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.CacheHits, c.CacheMisses, c.CacheErrors, c.CacheBypasses,
		c.Invalidations, c.ActiveBuckets, c.SyncAttempts, c.SyncFailures,
		c.BreakerTransition, c.UpstreamLatency,
	)
	return c
}

// NewForTest builds a Collectors backed by a private registry, safe to call
// repeatedly across table tests without "already registered" panics.
func NewForTest() *Collectors {
	return New(prometheus.NewRegistry())
}
