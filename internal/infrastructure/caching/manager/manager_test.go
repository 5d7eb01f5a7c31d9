package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/interfaces"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/stores"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{ContentTTL: time.Hour, NotFoundTTL: 5 * time.Minute}

func newTestManager(t *testing.T) (*Manager, *stores.MemoryStore) {
	t.Helper()
	store := stores.NewMemoryStore()
	m, err := NewManager(store, caching.NewKeyBuilder("np"), testConfig, logging.NewDiscardLogger(), metrics.NewRegistry())
	require.NoError(t, err)
	return m, store
}

func TestNewManagerRejectsTTLOrdering(t *testing.T) {
	store := stores.NewMemoryStore()
	keys := caching.NewKeyBuilder("np")
	logger := logging.NewDiscardLogger()

	_, err := NewManager(store, keys, Config{ContentTTL: time.Minute, NotFoundTTL: time.Minute}, logger, nil)
	assert.Error(t, err)
	_, err = NewManager(store, keys, Config{ContentTTL: time.Minute, NotFoundTTL: time.Hour}, logger, nil)
	assert.Error(t, err)
	_, err = NewManager(store, keys, Config{ContentTTL: time.Minute, NotFoundTTL: 0}, logger, nil)
	assert.Error(t, err)
}

func TestTTLOrderingProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	store := stores.NewMemoryStore()
	keys := caching.NewKeyBuilder("np")
	logger := logging.NewDiscardLogger()

	properties.Property("accepted configs always expire negatives first", prop.ForAll(
		func(contentSeconds, notFoundSeconds int64) bool {
			cfg := Config{
				ContentTTL:  time.Duration(contentSeconds) * time.Second,
				NotFoundTTL: time.Duration(notFoundSeconds) * time.Second,
			}
			m, err := NewManager(store, keys, cfg, logger, nil)
			if err != nil {
				return cfg.NotFoundTTL >= cfg.ContentTTL || cfg.NotFoundTTL <= 0
			}
			return m.Config().NotFoundTTL < m.Config().ContentTTL
		},
		gen.Int64Range(0, 7200), gen.Int64Range(0, 7200),
	))

	properties.TestingRun(t)
}

func TestContentRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	key := m.Keys().RouteKey("about-us", caching.RouteFlags{IncludeContent: true})

	page := content.NewPage(content.BaseContent{ID: 42, Title: "About Us", Path: "/about-us/"})
	require.NoError(t, m.SetContent(ctx, key, page))

	entry, ok, err := m.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, entry.IsNotFound())
	assert.Equal(t, int64(3600), entry.TTLSeconds)

	payload, err := entry.Content()
	require.NoError(t, err)
	assert.Equal(t, int64(42), payload.Base().ID)
	assert.Equal(t, content.KindPage, payload.Kind())
}

func TestNotFoundEntry(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	key := m.Keys().RouteKey("missing", caching.RouteFlags{IncludeContent: true})

	require.NoError(t, m.SetNotFound(ctx, key))

	entry, ok, err := m.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, entry.IsNotFound())
	assert.Equal(t, int64(300), entry.TTLSeconds)
	_, err = entry.Content()
	assert.Error(t, err)
}

func TestOverwriteKeepsOneEntry(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	key := m.Keys().RouteKey("about", caching.RouteFlags{IncludeContent: true})

	require.NoError(t, m.SetNotFound(ctx, key))
	require.NoError(t, m.SetContent(ctx, key, content.NewPost(content.BaseContent{ID: 1})))

	assert.Equal(t, 2, store.Len(), "one route entry plus the id index")
	entry, ok, err := m.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, entry.IsNotFound(), "last writer wins")
}

func TestInvalidatePathRemovesEveryVariant(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	keys := m.Keys()

	for _, flags := range []caching.RouteFlags{{IncludeContent: true}, {IncludeContent: false}, {IncludeContent: true, ExplicitID: 9}} {
		require.NoError(t, m.SetNotFound(ctx, keys.RouteKey("about-us", flags)))
	}
	require.NoError(t, m.SetNotFound(ctx, keys.RouteKey("contact", caching.RouteFlags{IncludeContent: true})))

	removed, err := m.InvalidatePath(ctx, "about-us")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, 1, store.Len())
}

func TestInvalidateID(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	keys := m.Keys()

	require.NoError(t, m.SetNotFound(ctx, keys.RouteKey("", caching.RouteFlags{IncludeContent: true, ExplicitID: 42})))
	require.NoError(t, m.SetNotFound(ctx, keys.RouteKey("", caching.RouteFlags{IncludeContent: false, ExplicitID: 42})))
	require.NoError(t, m.SetNotFound(ctx, keys.RouteKey("", caching.RouteFlags{IncludeContent: true})))

	removed, err := m.InvalidateID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, store.Len())

	removed, err = m.InvalidateID(ctx, 42)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestInvalidateIDReachesIndexedKeys(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	keys := m.Keys()

	alias := keys.RouteKey("contact-us", caching.RouteFlags{IncludeContent: true})
	revision := keys.RouteKey("", caching.RouteFlags{IncludeContent: true, ExplicitID: 77})
	other := keys.RouteKey("elsewhere", caching.RouteFlags{IncludeContent: true})

	require.NoError(t, m.SetContent(ctx, alias, content.NewPage(content.BaseContent{ID: 42})))
	require.NoError(t, m.SetContent(ctx, alias, content.NewPage(content.BaseContent{ID: 42})))
	require.NoError(t, m.SetContent(ctx, revision, content.NewPage(content.BaseContent{ID: 42}), 77, 78))
	require.NoError(t, m.SetContent(ctx, other, content.NewPage(content.BaseContent{ID: 9})))

	removed, err := m.InvalidateID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = store.Get(ctx, alias)
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
	_, err = store.Get(ctx, revision)
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
	_, err = store.Get(ctx, other)
	assert.NoError(t, err)
	_, err = store.Get(ctx, keys.IDIndexKey(42))
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss, "the index is dropped with its entries")

	removed, err = m.InvalidateID(ctx, 78)
	require.NoError(t, err)
	assert.Zero(t, removed, "already evicted keys are not counted")
}

func TestFlushDropsIDIndexes(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SetContent(ctx, m.Keys().RouteKey("a", caching.RouteFlags{}), content.NewPost(content.BaseContent{ID: 5})))

	removed, err := m.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Zero(t, store.Len())
}

func TestFlushLeavesOtherKeys(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SetNotFound(ctx, m.Keys().RouteKey("a", caching.RouteFlags{})))
	require.NoError(t, m.SetNotFound(ctx, m.Keys().RouteKey("b", caching.RouteFlags{})))
	require.NoError(t, store.Set(ctx, m.Keys().SnapshotKey(1), []byte("{}"), time.Minute))

	removed, err := m.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, store.Len())
}

func TestUndecodableEntryIsAMiss(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	key := m.Keys().RouteKey("broken", caching.RouteFlags{})

	require.NoError(t, store.Set(ctx, key, []byte("garbage"), time.Minute))

	_, ok, err := m.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len(), "the bad entry is dropped")
}

type failingBackend struct{ *stores.MemoryStore }

func (failingBackend) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func TestBackendErrorsSurface(t *testing.T) {
	m, err := NewManager(failingBackend{stores.NewMemoryStore()}, caching.NewKeyBuilder("np"), testConfig, logging.NewDiscardLogger(), nil)
	require.NoError(t, err)

	_, ok, err := m.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, interfaces.ErrCacheMiss))
}

func TestStats(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	key := m.Keys().RouteKey("a", caching.RouteFlags{})

	_, _, _ = m.Get(ctx, key)
	require.NoError(t, m.SetNotFound(ctx, key))
	_, _, _ = m.Get(ctx, key)

	stats := m.Stats()
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Writes)
	assert.Equal(t, 1, stats.Entries)
}
