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
)

// ErrNonPublicListing rejects listings that ask for unpublished statuses.
var ErrNonPublicListing = errors.New("only published content can be listed")

// ListingRequest is one GET /posts call.
type ListingRequest struct {
	Query          content.PostQuery
	IncludeContent bool
	SlugOnly       bool
	CacheTag       string
}

// ListingPage is one page of a listing. Exactly one of Posts and Slugs is
// filled, depending on the request's SlugOnly.
type ListingPage struct {
	Posts      []content.Formatted
	Slugs      []content.SlugInfo
	SlugOnly   bool
	Total      int
	TotalPages int
}

// Body returns the JSON array for the page.
func (p *ListingPage) Body() any {
	if p.SlugOnly {
		return p.Slugs
	}
	return p.Posts
}

// TermView is a taxonomy term with the URL of its archive.
type TermView struct {
	TermID      int64  `json:"term_id"`
	Taxonomy    string `json:"taxonomy"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// ListingService serves the post and taxonomy listings. Listings are read
// straight from the store; cache_tag only registers the tag for later
// revalidation.
type ListingService struct {
	store          repositories.ContentLister
	formatter      *FormatterService
	tags           *TagRegistry
	logger         *logging.ChanneledLogger
	wordpressURL   string
	defaultPerPage int
}

func NewListingService(store repositories.ContentLister, formatter *FormatterService, tags *TagRegistry,
	logger *logging.ChanneledLogger, wordpressURL string, defaultPerPage int) *ListingService {
	return &ListingService{
		store:          store,
		formatter:      formatter,
		tags:           tags,
		logger:         logger,
		wordpressURL:   strings.TrimRight(wordpressURL, "/"),
		defaultPerPage: defaultPerPage,
	}
}

// List returns one page of posts. PerPage 0 uses the configured default.
func (s *ListingService) List(ctx context.Context, req ListingRequest) (*ListingPage, error) {
	start := time.Now()

	for _, status := range req.Query.Statuses {
		if !status.IsPublic() {
			return nil, fmt.Errorf("status %q: %w", status.WordPress(), ErrNonPublicListing)
		}
	}
	if req.Query.PerPage == 0 {
		req.Query.PerPage = s.defaultPerPage
	}
	if s.tags != nil && req.CacheTag != "" {
		if err := s.tags.Register(ctx, req.CacheTag); err != nil {
			s.logger.Cache().Warn("Failed to register cache tag", "tag", req.CacheTag, "error", err.Error())
		}
	}

	entities, total, err := s.store.ListContent(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}

	page := &ListingPage{
		SlugOnly:   req.SlugOnly,
		Total:      total,
		TotalPages: req.Query.TotalPages(total),
		Posts:      make([]content.Formatted, 0, len(entities)),
		Slugs:      make([]content.SlugInfo, 0, len(entities)),
	}
	for _, entity := range entities {
		if req.SlugOnly {
			slug, err := s.formatter.SlugOf(ctx, entity)
			if err != nil {
				return nil, err
			}
			page.Slugs = append(page.Slugs, slug)
			continue
		}
		formatted, err := s.formatter.FormatEntity(ctx, entity, FormatOptions{IncludeContent: req.IncludeContent})
		if err != nil {
			return nil, fmt.Errorf("failed to format content %d: %w", entity.ID, err)
		}
		page.Posts = append(page.Posts, formatted)
	}

	s.logger.Content().Debug("Listing served", "total", total, "returned", len(entities), "page", req.Query.Page, "duration", time.Since(start))
	return page, nil
}

// Terms lists the terms of taxonomy.
func (s *ListingService) Terms(ctx context.Context, taxonomy string, hideEmpty bool) ([]TermView, error) {
	terms, err := s.store.TermsByTaxonomy(ctx, taxonomy, hideEmpty)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s terms: %w", taxonomy, err)
	}
	views := make([]TermView, 0, len(terms))
	for _, term := range terms {
		views = append(views, s.termView(term))
	}
	return views, nil
}

// Term returns the term of taxonomy with slug, or nil.
func (s *ListingService) Term(ctx context.Context, taxonomy, slug string) (*TermView, error) {
	term, err := s.store.FindTerm(ctx, taxonomy, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s term %q: %w", taxonomy, slug, err)
	}
	if term == nil {
		return nil, nil
	}
	view := s.termView(*term)
	return &view, nil
}

func (s *ListingService) termView(term content.Term) TermView {
	return TermView{
		TermID:      term.ID,
		Taxonomy:    term.Taxonomy,
		Slug:        term.Slug,
		Name:        term.Name,
		Description: term.Description,
		URL:         s.wordpressURL + content.URLPath(term.ArchivePath()),
	}
}
