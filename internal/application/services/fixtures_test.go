package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/pomeg-dev/nextpress-go/internal/domain/repositories"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/interfaces"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/manager"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/stores"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/metrics"
	sqlcontent "github.com/pomeg-dev/nextpress-go/internal/infrastructure/persistence/content"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/persistence/database"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/revalidation"
	"github.com/stretchr/testify/require"
)

// countingStore counts the store lookups that reach the database.
type countingStore struct {
	repositories.ContentStore
	calls atomic.Int64
}

func (c *countingStore) FindByID(ctx context.Context, id int64) (*content.Entity, error) {
	c.calls.Add(1)
	return c.ContentStore.FindByID(ctx, id)
}

func (c *countingStore) FindIDByPath(ctx context.Context, path string) (int64, error) {
	c.calls.Add(1)
	return c.ContentStore.FindIDByPath(ctx, path)
}

func (c *countingStore) Settings(ctx context.Context) (content.SiteSettings, error) {
	c.calls.Add(1)
	return c.ContentStore.Settings(ctx)
}

// countingBackend counts the cache operations that reach the backend.
type countingBackend struct {
	interfaces.Backend
	reads  atomic.Int64
	writes atomic.Int64
}

func (c *countingBackend) Get(ctx context.Context, key string) ([]byte, error) {
	c.reads.Add(1)
	return c.Backend.Get(ctx, key)
}

func (c *countingBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.writes.Add(1)
	return c.Backend.Set(ctx, key, value, ttl)
}

func (c *countingBackend) Delete(ctx context.Context, key string) error {
	c.writes.Add(1)
	return c.Backend.Delete(ctx, key)
}

func (c *countingBackend) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	c.writes.Add(1)
	return c.Backend.DeleteByPrefix(ctx, prefix)
}

func (c *countingBackend) reset() {
	c.reads.Store(0)
	c.writes.Store(0)
}

type fakeRevalidator struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeRevalidator) RevalidateAll(_ context.Context, targets []revalidation.Target) revalidation.Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, target := range targets {
		f.calls = append(f.calls, target.String())
	}
	return revalidation.Summary{Attempted: len(targets)}
}

func (f *fakeRevalidator) count(target string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if call == target {
			n++
		}
	}
	return n
}

// reset drops the calls recorded so far, such as those made while a test
// creates its fixtures.
func (f *fakeRevalidator) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeRevalidator) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) ClientCount() int { return 0 }

type testEnv struct {
	store        *sqlcontent.SQLContentStore
	counting     *countingStore
	backend      *stores.MemoryStore
	cacheOps     *countingBackend
	cache        *manager.Manager
	gate         *caching.MemoryGate
	revalidator  *fakeRevalidator
	publisher    *recordingPublisher
	tags         *TagRegistry
	resolver     *ResolverService
	formatter    *FormatterService
	router       *RouterService
	listings     *ListingService
	invalidation *InvalidationService
	settings     *SettingsInvalidation
}

type envOptions struct {
	debounce    time.Duration
	cacheDrafts bool
	typeTags    bool
	noHooks     bool
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := logging.NewDiscardLogger()
	registry := metrics.NewRegistry()

	db, err := database.Open(ctx, database.Config{Driver: database.DriverSQLite, SQLitePath: database.MemoryPath}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.NewTableCreator().CreateSchema(ctx, db.DB))
	require.NoError(t, database.NewTableCreator().SeedInitialContent(ctx, db.DB))

	env := &testEnv{
		store:       sqlcontent.NewSQLContentStore(db.DB, logger, time.Second),
		backend:     stores.NewMemoryStore(),
		gate:        caching.NewMemoryGate(opts.debounce),
		revalidator: &fakeRevalidator{},
		publisher:   &recordingPublisher{},
	}
	env.counting = &countingStore{ContentStore: env.store}
	env.cacheOps = &countingBackend{Backend: env.backend}

	keys := caching.NewKeyBuilder("test")
	env.cache, err = manager.NewManager(env.cacheOps, keys, manager.Config{ContentTTL: time.Hour, NotFoundTTL: 5 * time.Minute}, logger, registry)
	require.NoError(t, err)

	env.tags = NewTagRegistry(env.cacheOps, keys, time.Hour)
	env.resolver = NewResolverService(env.counting, logger, registry)
	env.formatter = NewFormatterService(env.counting, logger, "https://cms.example", RedactProtectedContent, RewriteWordPressPaths("https://cms.example"))
	env.router = NewRouterService(env.resolver, env.formatter, env.cache, env.tags, logger, registry, opts.cacheDrafts)
	env.listings = NewListingService(env.store, env.formatter, env.tags, logger, "https://cms.example", 10)
	env.invalidation = NewInvalidationService(env.store, env.cache, env.gate, env.revalidator, env.tags, env.publisher, logger, registry,
		InvalidationOptions{SnapshotTTL: time.Minute, TypeTags: opts.typeTags})
	env.settings = NewSettingsInvalidation(env.cache, env.revalidator, env.publisher, logger, registry)

	if !opts.noHooks {
		env.store.SetHooks(env.invalidation.Hooks(env.settings))
	}
	return env
}

func (e *testEnv) save(t *testing.T, entity *content.Entity) *content.Entity {
	t.Helper()
	saved, err := e.store.Save(context.Background(), entity)
	require.NoError(t, err)
	return saved
}

func (e *testEnv) route(t *testing.T, req RouteRequest) *RouteResult {
	t.Helper()
	result, err := e.router.Route(context.Background(), req)
	require.NoError(t, err)
	return result
}

func int64Ptr(v int64) *int64 { return &v }

// ticking makes every store write one second later than the previous one.
func ticking(env *testEnv) {
	var mu sync.Mutex
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	env.store.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	})
}
