// Package metrics exposes Prometheus counters for the route cache, the
// resolver and the invalidation engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nextpress"

// Cache request results.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheBypass = "bypass"
	CacheError  = "error"
)

// Revalidation results.
const (
	RevalidateOK     = "ok"
	RevalidateStatus = "bad_status"
	RevalidateFailed = "failed"
)

// Registry owns every collector of the service. A nil *Registry is valid and
// records nothing.
type Registry struct {
	registry *prometheus.Registry

	cacheRequests      *prometheus.CounterVec
	resolutions        *prometheus.CounterVec
	resolveDuration    prometheus.Histogram
	invalidationPasses *prometheus.CounterVec
	invalidatedPaths   prometheus.Counter
	evictedKeys        prometheus.Counter
	revalidations      *prometheus.CounterVec
	debounceSuppressed prometheus.Counter
}

// NewRegistry creates a registry with Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Route cache lookups by result.",
		}, []string{"result"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Path resolutions by the fallback step that produced the result.",
		}, []string{"step"}),
		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving and formatting uncached routes.",
			Buckets:   prometheus.DefBuckets,
		}),
		invalidationPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidation_passes_total",
			Help:      "Invalidation passes by change kind and outcome.",
		}, []string{"kind", "outcome"}),
		invalidatedPaths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidated_paths_total",
			Help:      "Route paths evicted by invalidation passes.",
		}),
		evictedKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evicted_keys_total",
			Help:      "Cache keys removed by invalidation passes.",
		}),
		revalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revalidations_total",
			Help:      "Outbound frontend revalidation calls by result.",
		}, []string{"result"}),
		debounceSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_suppressed_total",
			Help:      "Revalidation targets skipped because the debounce window was open.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.cacheRequests,
		r.resolutions,
		r.resolveDuration,
		r.invalidationPasses,
		r.invalidatedPaths,
		r.evictedKeys,
		r.revalidations,
		r.debounceSuppressed,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the underlying registry to tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Registry) CacheRequest(result string) {
	if r == nil {
		return
	}
	r.cacheRequests.WithLabelValues(result).Inc()
}

func (r *Registry) Resolution(step string) {
	if r == nil {
		return
	}
	r.resolutions.WithLabelValues(step).Inc()
}

func (r *Registry) ObserveResolve(d time.Duration) {
	if r == nil {
		return
	}
	r.resolveDuration.Observe(d.Seconds())
}

func (r *Registry) InvalidationPass(kind, outcome string, paths, keys int) {
	if r == nil {
		return
	}
	r.invalidationPasses.WithLabelValues(kind, outcome).Inc()
	r.invalidatedPaths.Add(float64(paths))
	r.evictedKeys.Add(float64(keys))
}

func (r *Registry) Revalidation(result string) {
	if r == nil {
		return
	}
	r.revalidations.WithLabelValues(result).Inc()
}

func (r *Registry) DebounceSuppressed(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.debounceSuppressed.Add(float64(n))
}
