package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/pomeg-dev/nextpress-go/internal/domain/repositories"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/interfaces"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/manager"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/messaging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/metrics"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/revalidation"
)

// FeedEventInvalidation is the feed event type of invalidation reports.
const FeedEventInvalidation = "invalidation"

// Skip reasons reported for ignored events.
const (
	SkipAutosave = "autosave"
	SkipRevision = "revision"
	SkipInternal = "internal_type"
)

// Revalidator is the outbound frontend revalidation client.
type Revalidator interface {
	RevalidateAll(ctx context.Context, targets []revalidation.Target) revalidation.Summary
}

// InvalidationReport describes one invalidation pass.
type InvalidationReport struct {
	ContentID    int64                `json:"content_id"`
	Kind         content.ChangeKind   `json:"change_kind"`
	Skipped      bool                 `json:"skipped"`
	SkipReason   string               `json:"skip_reason,omitempty"`
	Paths        []string             `json:"paths"`
	EvictedKeys  int                  `json:"evicted_keys"`
	Targets      []string             `json:"targets"`
	Suppressed   []string             `json:"suppressed,omitempty"`
	Revalidation revalidation.Summary `json:"revalidation"`
	Errors       []string             `json:"errors,omitempty"`
	DurationMS   int64                `json:"duration_ms"`
}

// InvalidationOptions tune the engine.
type InvalidationOptions struct {
	SnapshotTTL time.Duration
	TypeTags    bool
}

// pathSnapshot records where an entity rendered before a pending write.
type pathSnapshot struct {
	Type     string   `json:"type"`
	Paths    []string `json:"paths"`
	Homepage bool     `json:"homepage"`
}

// InvalidationService evicts the route cache entries a content change
// affects and asks the frontend to revalidate them. It never fails the
// mutation that triggered it.
type InvalidationService struct {
	store       repositories.ContentStore
	cache       *manager.Manager
	gate        caching.DebounceGate
	revalidator Revalidator
	tags        *TagRegistry
	publisher   messaging.Publisher
	logger      *logging.ChanneledLogger
	metrics     *metrics.Registry
	options     InvalidationOptions
}

func NewInvalidationService(store repositories.ContentStore, cache *manager.Manager, gate caching.DebounceGate, revalidator Revalidator,
	tags *TagRegistry, publisher messaging.Publisher, logger *logging.ChanneledLogger, registry *metrics.Registry, options InvalidationOptions) *InvalidationService {
	if options.SnapshotTTL <= 0 {
		options.SnapshotTTL = 10 * time.Minute
	}
	return &InvalidationService{
		store:       store,
		cache:       cache,
		gate:        gate,
		revalidator: revalidator,
		tags:        tags,
		publisher:   publisher,
		logger:      logger,
		metrics:     registry,
		options:     options,
	}
}

// OnBeforeMutation snapshots the paths id renders at so a later event can
// evict them after the slug, parent or terms changed.
func (s *InvalidationService) OnBeforeMutation(ctx context.Context, id int64) {
	if content.IsAutosave(ctx) {
		return
	}
	entity, err := s.store.FindByID(ctx, id)
	if err != nil {
		s.logger.Invalidation().Warn("Snapshot lookup failed", "id", id, "error", err.Error())
		return
	}
	if entity == nil || isInternalType(entity.Type) {
		return
	}

	settings, err := s.store.Settings(ctx)
	if err != nil {
		s.logger.Invalidation().Warn("Snapshot settings lookup failed", "id", id, "error", err.Error())
		return
	}

	snapshot := pathSnapshot{
		Type:     entity.Type,
		Paths:    append([]string{entity.Path}, entity.ArchivePaths()...),
		Homepage: affectsHomepage(entity, settings),
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.cache.Backend().Set(ctx, s.cache.Keys().SnapshotKey(id), raw, s.options.SnapshotTTL); err != nil {
		s.logger.Invalidation().Warn("Failed to store path snapshot", "id", id, "error", err.Error())
	}
}

// OnContentMutated runs one invalidation pass for event.
func (s *InvalidationService) OnContentMutated(ctx context.Context, event content.InvalidationEvent) *InvalidationReport {
	start := time.Now()
	report := &InvalidationReport{ContentID: event.ContentID, Kind: event.Kind, Paths: []string{}, Targets: []string{}}
	defer func() {
		report.DurationMS = time.Since(start).Milliseconds()
	}()

	if event.Autosave {
		return s.skip(report, SkipAutosave)
	}

	entity, err := s.store.FindByID(ctx, event.ContentID)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		s.logger.Invalidation().Warn("Invalidation lookup failed", "id", event.ContentID, "error", err.Error())
	}
	if entity != nil {
		if entity.Ref().IsRevision() {
			return s.skip(report, SkipRevision)
		}
		if isInternalType(entity.Type) {
			return s.skip(report, SkipInternal)
		}
	}

	snapshot := s.takeSnapshot(ctx, event.ContentID)

	paths := newPathSet()
	postType := ""
	if entity != nil {
		postType = entity.Type
		settings, err := s.store.Settings(ctx)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
		paths.add(entity.Path)
		if archive, err := s.typeArchivePath(ctx, entity.Type, settings); err != nil {
			report.Errors = append(report.Errors, err.Error())
		} else if archive != "" {
			paths.add(archive)
		}
		for _, archive := range entity.ArchivePaths() {
			paths.add(archive)
		}
		if affectsHomepage(entity, settings) {
			paths.addRoot()
		}
	}
	if event.PreviousPath != nil {
		paths.add(*event.PreviousPath)
	}
	if snapshot != nil {
		if postType == "" {
			postType = snapshot.Type
		}
		for _, path := range snapshot.Paths {
			paths.add(path)
		}
		if snapshot.Homepage {
			paths.addRoot()
		}
	}
	report.Paths = paths.list()

	for _, path := range report.Paths {
		removed, err := s.cache.InvalidatePath(ctx, path)
		report.EvictedKeys += removed
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
	}
	removed, err := s.cache.InvalidateID(ctx, event.ContentID)
	report.EvictedKeys += removed
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
	}

	targets := s.targets(ctx, report, postType)
	admitted := s.admit(ctx, report, event.ContentID, targets)
	if len(admitted) > 0 {
		report.Revalidation = s.revalidator.RevalidateAll(ctx, admitted)
	}

	outcome := "ok"
	if len(report.Errors) > 0 || len(report.Revalidation.Failed) > 0 {
		outcome = "partial"
	}
	s.metrics.InvalidationPass(string(event.Kind), outcome, len(report.Paths), report.EvictedKeys)
	s.publish(report)

	s.logger.Invalidation().Info("Invalidation pass completed",
		"id", event.ContentID,
		"kind", event.Kind,
		"paths", report.Paths,
		"evicted", report.EvictedKeys,
		"revalidated", len(admitted),
		"suppressed", len(report.Suppressed),
		"duration", time.Since(start))
	return report
}

func (s *InvalidationService) skip(report *InvalidationReport, reason string) *InvalidationReport {
	report.Skipped = true
	report.SkipReason = reason
	s.metrics.InvalidationPass(string(report.Kind), "skipped", 0, 0)
	s.logger.Invalidation().Debug("Invalidation skipped", "id", report.ContentID, "reason", reason)
	return report
}

// takeSnapshot reads and removes the pre-write snapshot of id.
func (s *InvalidationService) takeSnapshot(ctx context.Context, id int64) *pathSnapshot {
	key := s.cache.Keys().SnapshotKey(id)
	raw, err := s.cache.Backend().Get(ctx, key)
	if err != nil {
		if !errors.Is(err, interfaces.ErrCacheMiss) {
			s.logger.Invalidation().Warn("Failed to read path snapshot", "id", id, "error", err.Error())
		}
		return nil
	}
	if err := s.cache.Backend().Delete(ctx, key); err != nil {
		s.logger.Invalidation().Warn("Failed to drop path snapshot", "id", id, "error", err.Error())
	}

	var snapshot pathSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil
	}
	return &snapshot
}

// typeArchivePath is the index view of a type: the posts page for posts,
// the rewrite slug for other types with an archive.
func (s *InvalidationService) typeArchivePath(ctx context.Context, postType string, settings content.SiteSettings) (string, error) {
	if postType == content.TypePost {
		if settings.PostsPageID == 0 {
			return "", nil
		}
		postsPage, err := s.store.FindByID(ctx, settings.PostsPageID)
		if err != nil || postsPage == nil {
			return "", err
		}
		return postsPage.Path, nil
	}

	pt, err := s.store.PostType(ctx, postType)
	if err != nil || pt == nil || !pt.HasArchive {
		return "", err
	}
	return pt.RewriteSlug, nil
}

// targets lists the revalidation targets: every path, the registered
// post-ids tags naming the entity and, when none matched, the type tag.
func (s *InvalidationService) targets(ctx context.Context, report *InvalidationReport, postType string) []revalidation.Target {
	targets := make([]revalidation.Target, 0, len(report.Paths)+1)
	for _, path := range report.Paths {
		targets = append(targets, revalidation.PathTarget(path))
	}

	var matched []string
	if s.tags != nil {
		var err error
		if matched, err = s.tags.TagsForContent(ctx, report.ContentID); err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
	}
	for _, tag := range matched {
		targets = append(targets, revalidation.TagTarget(tag))
	}
	if len(matched) == 0 && s.options.TypeTags && postType != "" {
		targets = append(targets, revalidation.TagTarget(PostTypeTag(postType)))
	}

	for _, target := range targets {
		report.Targets = append(report.Targets, target.String())
	}
	return targets
}

// admit filters targets through the debounce gate. A failing gate admits
// everything.
func (s *InvalidationService) admit(ctx context.Context, report *InvalidationReport, id int64, targets []revalidation.Target) []revalidation.Target {
	if s.gate == nil || len(targets) == 0 {
		return targets
	}

	admittedKeys, err := s.gate.Admit(ctx, id, report.Targets)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		s.logger.Invalidation().Warn("Debounce gate unavailable, revalidating everything", "id", id, "error", err.Error())
		return targets
	}

	admittedSet := make(map[string]bool, len(admittedKeys))
	for _, key := range admittedKeys {
		admittedSet[key] = true
	}
	admitted := make([]revalidation.Target, 0, len(admittedKeys))
	for _, target := range targets {
		if admittedSet[target.String()] {
			admitted = append(admitted, target)
			delete(admittedSet, target.String())
			continue
		}
		report.Suppressed = append(report.Suppressed, target.String())
	}
	s.metrics.DebounceSuppressed(len(report.Suppressed))
	return admitted
}

func (s *InvalidationService) publish(report *InvalidationReport) {
	if s.publisher != nil {
		s.publisher.Publish(FeedEventInvalidation, report)
	}
}

// Hooks returns the store mutation hooks bound to this engine and settings.
func (s *InvalidationService) Hooks(settings *SettingsInvalidation) repositories.MutationHooks {
	hooks := repositories.MutationHooks{
		Before: s.OnBeforeMutation,
		After: func(ctx context.Context, event content.InvalidationEvent) {
			s.OnContentMutated(ctx, event)
		},
	}
	if settings != nil {
		hooks.Settings = func(ctx context.Context, section string) {
			settings.OnSettingsSaved(ctx, section)
		}
	}
	return hooks
}

// affectsHomepage reports whether a change to entity can alter the root
// render: the front page itself, the posts page, sticky posts, and any post
// or the fallback home page when the front page lists posts.
func affectsHomepage(entity *content.Entity, settings content.SiteSettings) bool {
	switch {
	case settings.HomepageID == entity.ID, settings.PostsPageID == entity.ID:
		return true
	case !settings.StaticFrontPage() && entity.Path == fallbackHomeSlug:
		return true
	case entity.Sticky:
		return true
	case entity.Type == content.TypePost && !settings.StaticFrontPage():
		return true
	}
	return false
}

func isInternalType(postType string) bool {
	return postType == content.TypeRevision || postType == content.TypeNavMenuItem
}

// pathSet keeps affected paths unique in insertion order. The root path is
// the empty string and only enters through addRoot.
type pathSet struct {
	seen  map[string]bool
	order []string
}

func newPathSet() *pathSet {
	return &pathSet{seen: make(map[string]bool)}
}

func (p *pathSet) add(path string) {
	if path == "" {
		return
	}
	normalized, err := content.NormalizePath(path)
	if err != nil || normalized == "" {
		return
	}
	p.insert(normalized)
}

func (p *pathSet) addRoot() {
	p.insert("")
}

func (p *pathSet) insert(path string) {
	if p.seen[path] {
		return
	}
	p.seen[path] = true
	p.order = append(p.order, path)
}

func (p *pathSet) list() []string {
	return append([]string{}, p.order...)
}
