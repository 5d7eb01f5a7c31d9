package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersRecord(t *testing.T) {
	r := NewRegistry()

	r.CacheRequest(CacheHit)
	r.CacheRequest(CacheHit)
	r.CacheRequest(CacheMiss)
	r.Resolution("canonical")
	r.InvalidationPass("updated", "evicted", 3, 7)
	r.Revalidation(RevalidateFailed)
	r.DebounceSuppressed(2)
	r.DebounceSuppressed(0)
	r.ObserveResolve(5 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheRequests.WithLabelValues(CacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheRequests.WithLabelValues(CacheMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resolutions.WithLabelValues("canonical")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.invalidatedPaths))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.evictedKeys))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.revalidations.WithLabelValues(RevalidateFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.debounceSuppressed))
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.CacheRequest(CacheHit)
		r.Resolution("title")
		r.InvalidationPass("deleted", "evicted", 1, 1)
		r.Revalidation(RevalidateOK)
		r.DebounceSuppressed(1)
		r.ObserveResolve(time.Second)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRegistry()
	r.CacheRequest(CacheBypass)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `nextpress_cache_requests_total{result="bypass"} 1`)
}
