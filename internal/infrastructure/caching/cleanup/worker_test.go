package cleanup

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/manager"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/stores"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOncePurgesExpiredEntriesAndWindows(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	store := stores.NewMemoryStore().WithClock(clock)
	cache, err := manager.NewManager(store, caching.NewKeyBuilder("np"),
		manager.Config{ContentTTL: time.Hour, NotFoundTTL: time.Minute}, logging.NewDiscardLogger(), nil)
	require.NoError(t, err)
	gate := caching.NewMemoryGate(10 * time.Second).WithClock(clock)

	ctx := context.Background()
	require.NoError(t, cache.SetNotFound(ctx, cache.Keys().RouteKey("gone", caching.RouteFlags{})))
	require.NoError(t, store.Set(ctx, "np:route:kept", []byte("x"), time.Hour))
	_, err = gate.Admit(ctx, 42, []string{"path:/about"})
	require.NoError(t, err)

	out := &bytes.Buffer{}
	worker := NewWorker(cache, gate, logging.NewDiscardLogger(), &Config{CleanupInterval: time.Minute, VerboseReporting: true}, out)

	assert.Equal(t, 0, worker.RunOnce())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, worker.RunOnce())
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 0, gate.Len())
	assert.Contains(t, out.String(), "PERIODIC CACHE CLEANUP")
	assert.Contains(t, out.String(), "Route cache")
}

func TestStartStopsOnCancel(t *testing.T) {
	store := stores.NewMemoryStore()
	cache, err := manager.NewManager(store, caching.NewKeyBuilder("np"),
		manager.Config{ContentTTL: time.Hour, NotFoundTTL: time.Minute}, logging.NewDiscardLogger(), nil)
	require.NoError(t, err)

	worker := NewWorker(cache, nil, logging.NewDiscardLogger(), &Config{CleanupInterval: 5 * time.Millisecond}, &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("closed pipe")
}

func TestRunOnceLogsReportWriteFailure(t *testing.T) {
	logs := &bytes.Buffer{}
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToConsole: true,
		Output:          logs,
		JSONFormat:      true,
		DefaultLevel:    slog.LevelInfo,
	})
	require.NoError(t, err)

	store := stores.NewMemoryStore()
	cache, err := manager.NewManager(store, caching.NewKeyBuilder("np"),
		manager.Config{ContentTTL: time.Hour, NotFoundTTL: time.Minute}, logger, nil)
	require.NoError(t, err)

	worker := NewWorker(cache, nil, logger, &Config{CleanupInterval: time.Minute, VerboseReporting: true}, failingWriter{})

	assert.NotPanics(t, func() { worker.RunOnce() })
	assert.Contains(t, logs.String(), "Failed to write cache report")
	assert.Contains(t, logs.String(), "closed pipe")
}

func TestGenerateCacheReport(t *testing.T) {
	r := NewReporter(&bytes.Buffer{})
	report := r.GenerateCacheReport(manager.CacheStats{Backend: "redis", Hits: 3, Entries: -1}, 0)

	assert.Contains(t, report, "redis")
	assert.Contains(t, report, "hits:")
	assert.Contains(t, report, "--")
}
