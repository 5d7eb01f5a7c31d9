package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/manager"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/metrics"
)

// RouteRequest is one GET /router call.
type RouteRequest struct {
	Path           string
	IncludeContent bool
	ExplicitID     int64
	Preview        bool
	CacheTag       string
}

// RouteResult is either a payload or a miss.
type RouteResult struct {
	Content   content.Formatted
	NotFound  bool
	FromCache bool
}

// Body returns the JSON body for the result.
func (r *RouteResult) Body() any {
	if r.NotFound || r.Content == nil {
		return content.NotFoundBody()
	}
	return r.Content
}

// RouterService runs the router flow: short-circuit, normalize, cache read,
// resolve, format, cache write.
type RouterService struct {
	resolver    *ResolverService
	formatter   *FormatterService
	cache       *manager.Manager
	tags        *TagRegistry
	logger      *logging.ChanneledLogger
	metrics     *metrics.Registry
	cacheDrafts bool
}

func NewRouterService(resolver *ResolverService, formatter *FormatterService, cache *manager.Manager, tags *TagRegistry,
	logger *logging.ChanneledLogger, registry *metrics.Registry, cacheDrafts bool) *RouterService {
	return &RouterService{
		resolver:    resolver,
		formatter:   formatter,
		cache:       cache,
		tags:        tags,
		logger:      logger,
		metrics:     registry,
		cacheDrafts: cacheDrafts,
	}
}

// Route answers a router request. Only store failures are returned as
// errors; they are never cached. Preview requests neither read nor write the
// cache.
func (s *RouterService) Route(ctx context.Context, req RouteRequest) (*RouteResult, error) {
	start := time.Now()

	if content.IsNotFoundPath(req.Path) {
		return &RouteResult{NotFound: true}, nil
	}
	path, err := content.NormalizePath(req.Path)
	if err != nil {
		s.logger.Content().Debug("Malformed router path", "path", req.Path, "error", err.Error())
		return &RouteResult{NotFound: true}, nil
	}

	key := s.cache.Keys().RouteKey(path, caching.RouteFlags{
		IncludeContent: req.IncludeContent,
		Preview:        req.Preview,
		ExplicitID:     req.ExplicitID,
	})

	if req.Preview {
		s.metrics.CacheRequest(metrics.CacheBypass)
	} else {
		s.registerTag(ctx, req.CacheTag)
		if result, ok := s.fromCache(ctx, key); ok {
			return result, nil
		}
	}

	ref, err := s.resolver.Resolve(ctx, path, req.ExplicitID)
	if errors.Is(err, content.ErrNotFound) {
		s.storeNotFound(ctx, key, req.Preview)
		return &RouteResult{NotFound: true}, nil
	}
	if err != nil {
		return nil, err
	}

	formatted, err := s.formatter.Format(ctx, *ref, FormatOptions{IncludeContent: req.IncludeContent, Preview: req.Preview})
	if errors.Is(err, content.ErrNotFound) {
		s.storeNotFound(ctx, key, req.Preview)
		return &RouteResult{NotFound: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to format content %d: %w", ref.ID, err)
	}

	if !req.Preview && (ref.Status.IsPublic() || s.cacheDrafts) {
		if err := s.cache.SetContent(ctx, key, formatted, ref.ID, req.ExplicitID); err != nil {
			s.logger.Cache().Warn("Failed to cache route", "path", path, "error", err.Error())
		}
	}

	s.logger.Content().Info("Route resolved", "path", path, "id", ref.ID, "preview", req.Preview, "duration", time.Since(start))
	return &RouteResult{Content: formatted}, nil
}

// registerTag remembers a frontend cache tag so later invalidations can
// revalidate it. Preview requests never register.
func (s *RouterService) registerTag(ctx context.Context, tag string) {
	if tag == "" || s.tags == nil {
		return
	}
	if err := s.tags.Register(ctx, tag); err != nil {
		s.logger.Cache().Warn("Failed to register cache tag", "tag", tag, "error", err.Error())
	}
}

// fromCache serves a cached entry. A failing backend degrades to a miss.
func (s *RouterService) fromCache(ctx context.Context, key string) (*RouteResult, bool) {
	entry, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Cache().Warn("Route cache read failed, resolving from store", "error", err.Error())
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if entry.IsNotFound() {
		return &RouteResult{NotFound: true, FromCache: true}, true
	}

	formatted, err := entry.Content()
	if err != nil {
		s.logger.Cache().Warn("Cached route undecodable, resolving from store", "error", err.Error())
		return nil, false
	}
	return &RouteResult{Content: formatted, FromCache: true}, true
}

func (s *RouterService) storeNotFound(ctx context.Context, key string, preview bool) {
	if preview {
		return
	}
	if err := s.cache.SetNotFound(ctx, key); err != nil {
		s.logger.Cache().Warn("Failed to cache not-found route", "error", err.Error())
	}
}
