// Package services provides application-level services that orchestrate
// business logic and coordinate between repositories and domain entities.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/pomeg-dev/nextpress-go/internal/domain/repositories"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/metrics"
)

// ResolveStep names the fallback step that produced a resolution.
type ResolveStep string

const (
	StepShortCircuit ResolveStep = "short_circuit"
	StepExplicitID   ResolveStep = "explicit_id"
	StepHomepage     ResolveStep = "homepage"
	StepPostsIndex   ResolveStep = "posts_index"
	StepCanonical    ResolveStep = "canonical"
	StepSlug         ResolveStep = "slug"
	StepTitle        ResolveStep = "title"
	StepNotFound     ResolveStep = "not_found"
)

// fallbackHomeSlug is rendered at the root when no static front page is set.
const fallbackHomeSlug = "home"

// Resolution is a resolved entity and the step that found it.
type Resolution struct {
	Ref  content.ContentRef
	Step ResolveStep
}

// ResolverService maps a request path to the single entity that renders
// there.
type ResolverService struct {
	store   repositories.ContentStore
	logger  *logging.ChanneledLogger
	metrics *metrics.Registry
}

func NewResolverService(store repositories.ContentStore, logger *logging.ChanneledLogger, registry *metrics.Registry) *ResolverService {
	return &ResolverService{
		store:   store,
		logger:  logger,
		metrics: registry,
	}
}

// Resolve returns the entity for path, or content.ErrNotFound. Store
// failures are returned wrapped.
func (s *ResolverService) Resolve(ctx context.Context, path string, explicitID int64) (*content.ContentRef, error) {
	resolution, err := s.ResolveDetailed(ctx, path, explicitID)
	if err != nil {
		return nil, err
	}
	return &resolution.Ref, nil
}

// ResolveDetailed runs the ordered fallback: explicit ID, homepage, posts
// index, canonical path, non-published slug, title. A revision result is
// replaced by the most recent revision of its parent.
func (s *ResolverService) ResolveDetailed(ctx context.Context, rawPath string, explicitID int64) (*Resolution, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveResolve(time.Since(start)) }()

	if content.IsNotFoundPath(rawPath) {
		s.metrics.Resolution(string(StepShortCircuit))
		return nil, content.ErrNotFound
	}
	path, err := content.NormalizePath(rawPath)
	if err != nil {
		s.logger.Content().Debug("Rejected malformed path", "path", rawPath, "error", err.Error())
		s.metrics.Resolution(string(StepNotFound))
		return nil, fmt.Errorf("%w: %w", content.ErrNotFound, err)
	}

	entity, step, err := s.lookup(ctx, path, explicitID)
	if err != nil {
		s.logger.LogError(logging.ChannelContent, "resolve", err, map[string]any{"path": path})
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	if entity == nil {
		s.metrics.Resolution(string(StepNotFound))
		return nil, content.ErrNotFound
	}

	ref := entity.Ref()
	if ref.IsRevision() && ref.ParentID != nil {
		latest, err := s.store.LatestRevision(ctx, *ref.ParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest revision of %d: %w", *ref.ParentID, err)
		}
		if latest != nil {
			ref = latest.Ref()
		}
	}

	s.metrics.Resolution(string(step))
	s.logger.Content().Debug("Path resolved", "path", path, "id", ref.ID, "step", step, "duration", time.Since(start))
	return &Resolution{Ref: ref, Step: step}, nil
}

func (s *ResolverService) lookup(ctx context.Context, path string, explicitID int64) (*content.Entity, ResolveStep, error) {
	if path == "" {
		if explicitID > 0 {
			entity, err := s.store.FindByID(ctx, explicitID)
			return entity, StepExplicitID, err
		}
		entity, err := s.homepage(ctx)
		return entity, StepHomepage, err
	}

	settings, err := s.store.Settings(ctx)
	if err != nil {
		return nil, "", err
	}
	if settings.PostsPageID > 0 {
		postsPage, err := s.store.FindByID(ctx, settings.PostsPageID)
		if err != nil {
			return nil, "", err
		}
		if postsPage != nil && postsPage.Path == path {
			return postsPage, StepPostsIndex, nil
		}
	}

	id, err := s.store.FindIDByPath(ctx, path)
	if err != nil {
		return nil, "", err
	}
	if id > 0 {
		entity, err := s.store.FindByID(ctx, id)
		if err != nil || entity != nil {
			return entity, StepCanonical, err
		}
	}

	segment := content.LastSegment(path)

	entity, err := s.store.FindLatestBySlug(ctx, segment, content.NonPublishedStatuses)
	if err != nil || entity != nil {
		return entity, StepSlug, err
	}

	for _, title := range titleCandidates(segment) {
		entity, err := s.store.FindByTitle(ctx, title, content.TitleSearchStatuses)
		if err != nil || entity != nil {
			return entity, StepTitle, err
		}
	}
	return nil, StepNotFound, nil
}

// homepage returns the static front page, or the page at the fallback
// home path when the front page lists posts.
func (s *ResolverService) homepage(ctx context.Context) (*content.Entity, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if settings.StaticFrontPage() {
		return s.store.FindByID(ctx, settings.HomepageID)
	}

	id, err := s.store.FindIDByPath(ctx, fallbackHomeSlug)
	if err != nil || id == 0 {
		return nil, err
	}
	return s.store.FindByID(ctx, id)
}

// titleCandidates tries the segment as typed, then with dashes read as
// spaces.
func titleCandidates(segment string) []string {
	candidates := []string{segment}
	if spaced := strings.ReplaceAll(segment, "-", " "); spaced != segment {
		candidates = append(candidates, spaced)
	}
	return candidates
}

// IsNotFound reports whether err is a resolution miss.
func IsNotFound(err error) bool {
	return errors.Is(err, content.ErrNotFound)
}
