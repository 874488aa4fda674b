// Package metrics exports cache events to Prometheus.
//
// A Collector owns its registry; nothing here is process-global. Each cache
// gets its own Recorder, distinguished by the "cache" label.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tagcache/internal/cache"
)

// Collector holds the Prometheus metrics shared by every cache it records for.
type Collector struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	evictions   *prometheus.CounterVec
	expirations *prometheus.CounterVec
	entries     *prometheus.GaugeVec
}

// NewCollector creates a collector with a fresh registry under namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Total number of cache lookups by result",
		},
		[]string{"cache", "result"},
	)

	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_get_duration_seconds",
			Help:      "Time spent inside cache Get calls",
			Buckets:   []float64{1e-7, 5e-7, 1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 1e-3},
		},
		[]string{"cache"},
	)

	evictions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of LRU evictions",
		},
		[]string{"cache"},
	)

	expirations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_expirations_total",
			Help:      "Total number of entries removed because their TTL elapsed",
		},
		[]string{"cache"},
	)

	entries := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries currently stored, expired-but-unswept included",
		},
		[]string{"cache"},
	)

	registry.MustRegister(requests, duration, evictions, expirations, entries)

	return &Collector{
		registry:    registry,
		requests:    requests,
		duration:    duration,
		evictions:   evictions,
		expirations: expirations,
		entries:     entries,
	}
}

// Registry exposes the registry for HTTP exposition.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Recorder returns a cache.Recorder whose series carry cache=name.
func (c *Collector) Recorder(name string) cache.Recorder {
	labels := prometheus.Labels{"cache": name}
	return &recorder{
		hits:        c.requests.MustCurryWith(labels).WithLabelValues("hit"),
		misses:      c.requests.MustCurryWith(labels).WithLabelValues("miss"),
		duration:    c.duration.With(labels),
		evictions:   c.evictions.With(labels),
		expirations: c.expirations.With(labels),
		entries:     c.entries.With(labels),
	}
}

type recorder struct {
	hits        prometheus.Counter
	misses      prometheus.Counter
	duration    prometheus.Observer
	evictions   prometheus.Counter
	expirations prometheus.Counter
	entries     prometheus.Gauge
}

func (r *recorder) Hit(elapsed time.Duration) {
	r.hits.Inc()
	r.duration.Observe(elapsed.Seconds())
}

func (r *recorder) Miss(elapsed time.Duration) {
	r.misses.Inc()
	r.duration.Observe(elapsed.Seconds())
}

func (r *recorder) Eviction() { r.evictions.Inc() }

func (r *recorder) Expiration(n int) { r.expirations.Add(float64(n)) }

func (r *recorder) Entries(n int) { r.entries.Set(float64(n)) }
