// Package manager provides the typed route cache on top of a byte backend.
package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/interfaces"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/metrics"
)

// EntryKind tells a resolved payload from a negative result.
type EntryKind string

const (
	EntryContent  EntryKind = "content"
	EntryNotFound EntryKind = "not_found"
)

// Entry is one cached route result.
type Entry struct {
	Kind       EntryKind       `json:"kind"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	TTLSeconds int64           `json:"ttlSeconds"`
}

func (e *Entry) IsNotFound() bool {
	return e.Kind == EntryNotFound
}

// Content decodes the cached payload.
func (e *Entry) Content() (content.Formatted, error) {
	if e.Kind != EntryContent {
		return nil, fmt.Errorf("entry holds %s, not content", e.Kind)
	}
	return content.DecodeFormatted(e.Payload)
}

// Config holds the TTLs of the two entry kinds.
type Config struct {
	ContentTTL  time.Duration
	NotFoundTTL time.Duration
}

// CacheStats is a point-in-time view of route cache activity.
type CacheStats struct {
	Backend   string `json:"backend"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Writes    int64  `json:"writes"`
	Evictions int64  `json:"evictions"`
	Entries   int    `json:"entries"`
}

// Manager is the route cache. At most one entry exists per (path, flags)
// key; writes overwrite.
type Manager struct {
	backend interfaces.Backend
	keys    caching.KeyBuilder
	config  Config
	logger  *logging.ChanneledLogger
	metrics *metrics.Registry
	now     func() time.Time

	// indexMu serializes read-modify-write of ID index entries.
	indexMu sync.Mutex

	hits      atomic.Int64
	misses    atomic.Int64
	writes    atomic.Int64
	evictions atomic.Int64
}

// NewManager validates that negative results expire before resolved ones.
func NewManager(backend interfaces.Backend, keys caching.KeyBuilder, config Config, logger *logging.ChanneledLogger, registry *metrics.Registry) (*Manager, error) {
	if config.NotFoundTTL <= 0 || config.ContentTTL <= 0 {
		return nil, fmt.Errorf("cache TTLs must be positive (content %v, not found %v)", config.ContentTTL, config.NotFoundTTL)
	}
	if config.NotFoundTTL >= config.ContentTTL {
		return nil, fmt.Errorf("not-found TTL %v must be shorter than content TTL %v", config.NotFoundTTL, config.ContentTTL)
	}

	logger.Cache().Info("Initializing route cache",
		"backend", backend.Name(),
		"namespace", keys.Namespace(),
		"contentTTL", config.ContentTTL,
		"notFoundTTL", config.NotFoundTTL)

	return &Manager{
		backend: backend,
		keys:    keys,
		config:  config,
		logger:  logger,
		metrics: registry,
		now:     time.Now,
	}, nil
}

func (m *Manager) Keys() caching.KeyBuilder    { return m.keys }
func (m *Manager) Backend() interfaces.Backend { return m.backend }
func (m *Manager) Config() Config              { return m.config }

// Get returns the entry under key. A missing or undecodable entry is a miss;
// backend failures are returned.
func (m *Manager) Get(ctx context.Context, key string) (*Entry, bool, error) {
	start := time.Now()
	raw, err := m.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, interfaces.ErrCacheMiss) {
			m.recordMiss(key, start)
			return nil, false, nil
		}
		m.metrics.CacheRequest(metrics.CacheError)
		return nil, false, fmt.Errorf("route cache read failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil || (entry.Kind != EntryContent && entry.Kind != EntryNotFound) {
		m.logger.Cache().Warn("Dropping undecodable cache entry", "key", key)
		_ = m.backend.Delete(ctx, key)
		m.recordMiss(key, start)
		return nil, false, nil
	}

	m.hits.Add(1)
	m.metrics.CacheRequest(metrics.CacheHit)
	m.logger.LogCacheOperation("get", key, true, time.Since(start))
	return &entry, true, nil
}

func (m *Manager) recordMiss(key string, start time.Time) {
	m.misses.Add(1)
	m.metrics.CacheRequest(metrics.CacheMiss)
	m.logger.LogCacheOperation("get", key, false, time.Since(start))
}

// SetContent stores a resolved payload under the content TTL and indexes the
// key under the payload ID and ids, so InvalidateID reaches entries cached
// under alias paths or revision IDs.
func (m *Manager) SetContent(ctx context.Context, key string, payload content.Formatted, ids ...int64) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if err := m.set(ctx, key, Entry{Kind: EntryContent, Payload: raw}, m.config.ContentTTL); err != nil {
		return err
	}

	seen := make(map[int64]bool, len(ids)+1)
	for _, id := range append([]int64{payload.Base().ID}, ids...) {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		if err := m.index(ctx, id, key); err != nil {
			return err
		}
	}
	return nil
}

// index adds key to the ID index of id. The index lives as long as the
// newest entry it names.
func (m *Manager) index(ctx context.Context, id int64, key string) error {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	indexKey := m.keys.IDIndexKey(id)
	keys, err := m.indexedKeys(ctx, indexKey)
	if err != nil {
		return err
	}
	for _, existing := range keys {
		if existing == key {
			return nil
		}
	}

	raw, err := json.Marshal(append(keys, key))
	if err != nil {
		return fmt.Errorf("failed to encode id index: %w", err)
	}
	if err := m.backend.Set(ctx, indexKey, raw, m.config.ContentTTL); err != nil {
		return fmt.Errorf("failed to write id index %d: %w", id, err)
	}
	return nil
}

func (m *Manager) indexedKeys(ctx context.Context, indexKey string) ([]string, error) {
	raw, err := m.backend.Get(ctx, indexKey)
	if errors.Is(err, interfaces.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read id index: %w", err)
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		m.logger.Cache().Warn("Dropping undecodable id index", "key", indexKey)
		return nil, nil
	}
	return keys, nil
}

// SetNotFound stores a negative result under the shorter not-found TTL.
func (m *Manager) SetNotFound(ctx context.Context, key string) error {
	return m.set(ctx, key, Entry{Kind: EntryNotFound}, m.config.NotFoundTTL)
}

func (m *Manager) set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	entry.CreatedAt = m.now().UTC()
	entry.TTLSeconds = int64(ttl / time.Second)

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := m.backend.Set(ctx, key, raw, ttl); err != nil {
		return fmt.Errorf("route cache write failed: %w", err)
	}
	m.writes.Add(1)
	m.logger.Cache().Debug("Cached route", "key", key, "kind", entry.Kind, "ttl", ttl)
	return nil
}

func (m *Manager) Delete(ctx context.Context, key string) error {
	if err := m.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("route cache delete failed: %w", err)
	}
	m.evictions.Add(1)
	return nil
}

// InvalidatePath removes every cached variant of a normalized path.
func (m *Manager) InvalidatePath(ctx context.Context, path string) (int, error) {
	prefix := m.keys.PathPrefix(path)
	var (
		removed int
		err     error
	)
	if indexed, ok := m.backend.(interfaces.IndexedDeleter); ok {
		removed, err = indexed.DeleteIndexed(ctx, prefix)
	} else {
		removed, err = m.backend.DeleteByPrefix(ctx, prefix)
	}
	if err != nil {
		return removed, fmt.Errorf("failed to invalidate path %q: %w", path, err)
	}
	m.evictions.Add(int64(removed))
	return removed, nil
}

// InvalidateID removes the root-path variants requested by explicit ID
// (?p= / ?page_id=) for id and every entry indexed under id. Only keys that
// still existed are counted.
func (m *Manager) InvalidateID(ctx context.Context, id int64) (int, error) {
	keys := []string{
		m.keys.RouteKey("", caching.RouteFlags{IncludeContent: true, ExplicitID: id}),
		m.keys.RouteKey("", caching.RouteFlags{IncludeContent: false, ExplicitID: id}),
	}

	m.indexMu.Lock()
	indexKey := m.keys.IDIndexKey(id)
	indexed, err := m.indexedKeys(ctx, indexKey)
	if err == nil {
		err = m.backend.Delete(ctx, indexKey)
	}
	m.indexMu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate id %d: %w", id, err)
	}

	seen := make(map[string]bool, len(keys)+len(indexed))
	removed := 0
	for _, key := range append(keys, indexed...) {
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, err := m.backend.Get(ctx, key); errors.Is(err, interfaces.ErrCacheMiss) {
			continue
		}
		if err := m.Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("failed to invalidate id %d: %w", id, err)
		}
		removed++
	}
	return removed, nil
}

// Flush removes every route entry and ID index in the namespace. Only route
// entries are counted.
func (m *Manager) Flush(ctx context.Context) (int, error) {
	removed, err := m.backend.DeleteByPrefix(ctx, m.keys.RoutePrefix())
	if err != nil {
		return removed, fmt.Errorf("failed to flush route cache: %w", err)
	}
	if _, err := m.backend.DeleteByPrefix(ctx, m.keys.IDIndexPrefix()); err != nil {
		return removed, fmt.Errorf("failed to flush id indexes: %w", err)
	}
	m.evictions.Add(int64(removed))
	m.logger.Cache().Info("Route cache flushed", "removed", removed)
	return removed, nil
}

// Stats reports counters since startup. Entries is -1 when the backend
// cannot count cheaply.
func (m *Manager) Stats() CacheStats {
	entries := -1
	if sizer, ok := m.backend.(interfaces.Sizer); ok {
		entries = sizer.Len()
	}
	return CacheStats{
		Backend:   m.backend.Name(),
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Writes:    m.writes.Load(),
		Evictions: m.evictions.Load(),
		Entries:   entries,
	}
}
