package revalidation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFrontend struct {
	mu       sync.Mutex
	received []string
	failFor  map[string]int
}

func (f *fakeFrontend) handler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/revalidate" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	key := "path:" + r.URL.Query().Get("path")
	if tag := r.URL.Query().Get("tag"); tag != "" {
		key = "tag:" + tag
	}

	f.mu.Lock()
	f.received = append(f.received, key)
	status, failing := f.failFor[key]
	f.mu.Unlock()

	if failing {
		w.WriteHeader(status)
		return
	}
	w.Write([]byte(`{"revalidated":true}`))
}

func (f *fakeFrontend) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "path:/about-us", PathTarget("about-us/").String())
	assert.Equal(t, "path:/", PathTarget("").String())
	assert.Equal(t, "tag:post-type-page", TagTarget("post-type-page").String())

	parsed, err := ParseTarget("tag:settings")
	require.NoError(t, err)
	assert.Equal(t, TagTarget("settings"), parsed)

	_, err = ParseTarget("bogus")
	assert.Error(t, err)
}

func TestRevalidateSendsPathAndTag(t *testing.T) {
	frontend := &fakeFrontend{}
	server := httptest.NewServer(http.HandlerFunc(frontend.handler))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/", Timeout: time.Second}, logging.NewDiscardLogger(), nil)
	defer client.Close()

	require.NoError(t, client.Revalidate(context.Background(), PathTarget("about-us")))
	require.NoError(t, client.Revalidate(context.Background(), TagTarget("post-ids-1-2")))
	assert.Equal(t, []string{"path:/about-us", "tag:post-ids-1-2"}, frontend.calls())
}

func TestRevalidateNon200IsError(t *testing.T) {
	frontend := &fakeFrontend{failFor: map[string]int{"path:/broken": http.StatusInternalServerError}}
	server := httptest.NewServer(http.HandlerFunc(frontend.handler))
	defer server.Close()

	registry := metrics.NewRegistry()
	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second}, logging.NewDiscardLogger(), registry)

	err := client.Revalidate(context.Background(), PathTarget("broken"))
	assert.ErrorContains(t, err, "unexpected status 500")
}

func TestRevalidateAllSwallowsFailures(t *testing.T) {
	frontend := &fakeFrontend{failFor: map[string]int{"tag:settings": http.StatusUnauthorized}}
	server := httptest.NewServer(http.HandlerFunc(frontend.handler))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second, Concurrency: 2}, logging.NewDiscardLogger(), nil)
	summary := client.RevalidateAll(context.Background(), []Target{
		PathTarget("a"), PathTarget("b"), TagTarget("settings"), PathTarget(""),
	})

	assert.Equal(t, 4, summary.Attempted)
	assert.Equal(t, []string{"tag:settings"}, summary.Failed)
	assert.ElementsMatch(t, []string{"path:/a", "path:/b", "tag:settings", "path:/"}, frontend.calls())
}

func TestRevalidateTimesOutWithoutRetry(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond}, logging.NewDiscardLogger(), nil)
	summary := client.RevalidateAll(context.Background(), []Target{PathTarget("slow")})

	assert.Equal(t, []string{"path:/slow"}, summary.Failed)
	mu.Lock()
	assert.Equal(t, 1, hits)
	mu.Unlock()
}

func TestDisabledClientMakesNoCalls(t *testing.T) {
	client := NewClient(Config{}, logging.NewDiscardLogger(), nil)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Revalidate(context.Background(), PathTarget("x")))
	assert.Zero(t, client.RevalidateAll(context.Background(), []Target{PathTarget("x")}).Attempted)
}

func TestRevalidationMetrics(t *testing.T) {
	frontend := &fakeFrontend{failFor: map[string]int{"path:/bad": http.StatusBadGateway}}
	server := httptest.NewServer(http.HandlerFunc(frontend.handler))
	defer server.Close()

	registry := metrics.NewRegistry()
	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second}, logging.NewDiscardLogger(), registry)
	client.RevalidateAll(context.Background(), []Target{PathTarget("good"), PathTarget("bad")})

	count, err := testutil.GatherAndCount(registry.Gatherer(), "nextpress_revalidations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
