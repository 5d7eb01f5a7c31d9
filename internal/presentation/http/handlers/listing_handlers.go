package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pomeg-dev/nextpress-go/internal/application/services"
	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/presentation/http/middleware"
)

var taxonomyParam = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const termFilterPrefix = "filter_"

// ListingHandlers serve GET /posts, /tax_list and /tax_term.
type ListingHandlers struct {
	listings *services.ListingService
	logger   *logging.ChanneledLogger
}

func NewListingHandlers(listings *services.ListingService, logger *logging.ChanneledLogger) *ListingHandlers {
	return &ListingHandlers{
		listings: listings,
		logger:   logger,
	}
}

// GetPosts returns one page of posts with X-WP-Total and X-WP-TotalPages.
func (h *ListingHandlers) GetPosts(c *gin.Context) {
	req, err := listingRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := h.listings.List(c.Request.Context(), req)
	if errors.Is(err, services.ErrNonPublicListing) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Content().Error("Listing request failed", "error", err.Error(), "requestId", middleware.GetRequestID(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("X-WP-Total", strconv.Itoa(page.Total))
	c.Header("X-WP-TotalPages", strconv.Itoa(page.TotalPages))
	c.JSON(http.StatusOK, page.Body())
}

// GetTerms lists the terms of :taxonomy, optionally only the used ones.
func (h *ListingHandlers) GetTerms(c *gin.Context) {
	taxonomy := c.Param("taxonomy")
	if !taxonomyParam.MatchString(taxonomy) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown taxonomy"})
		return
	}

	terms, err := h.listings.Terms(c.Request.Context(), taxonomy, queryBool(c, "hide_empty", false))
	if err != nil {
		h.logger.Content().Error("Term listing failed", "taxonomy", taxonomy, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, terms)
}

// GetTerm returns one term by slug, or an empty array when it is unknown.
func (h *ListingHandlers) GetTerm(c *gin.Context) {
	taxonomy, slug := c.Param("taxonomy"), c.Param("term")
	if !taxonomyParam.MatchString(taxonomy) || !taxonomyParam.MatchString(slug) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown term"})
		return
	}

	term, err := h.listings.Term(c.Request.Context(), taxonomy, slug)
	if err != nil {
		h.logger.Content().Error("Term lookup failed", "taxonomy", taxonomy, "term", slug, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if term == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	c.JSON(http.StatusOK, term)
}

// listingRequest maps the WordPress-style query string onto a listing
// request. Comma-separated values are lists.
func listingRequest(c *gin.Context) (services.ListingRequest, error) {
	req := services.ListingRequest{
		IncludeContent: queryBool(c, "include_content", false),
		SlugOnly:       queryBool(c, "slug_only", false),
		CacheTag:       strings.TrimSpace(c.Query("cache_tag")),
	}
	q := &req.Query
	q.Search = strings.TrimSpace(c.Query("search"))

	var err error
	if q.PerPage, err = queryInt(c, "per_page"); err != nil {
		return req, err
	}
	if q.PerPage < -1 {
		return req, errors.New("per_page must be -1 or positive")
	}
	if q.Page, err = queryInt(c, "page"); err != nil {
		return req, err
	}
	if q.IncludeIDs, err = queryIDs(c, "post__in"); err != nil {
		return req, err
	}
	if q.ExcludeIDs, err = queryIDs(c, "post__not_in"); err != nil {
		return req, err
	}

	for _, name := range queryList(c, "post_type") {
		if name != "any" {
			q.Types = append(q.Types, name)
		}
	}
	q.ExcludeTypes = queryList(c, "post_type__not_in")

	for _, raw := range queryList(c, "status") {
		status, err := content.ParseStatus(raw)
		if err != nil {
			return req, err
		}
		q.Statuses = append(q.Statuses, status)
	}

	q.Terms = termFilters(c)
	return req, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func queryList(c *gin.Context, name string) []string {
	var out []string
	for _, raw := range c.QueryArray(name) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func queryIDs(c *gin.Context, name string) ([]int64, error) {
	var ids []int64
	for _, raw := range queryList(c, name) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%s must list positive integers", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// termFilters reads filter_<taxonomy>=a,b. A list of numbers matches term
// IDs; anything else matches slugs.
func termFilters(c *gin.Context) []content.TermFilter {
	var names []string
	for name := range c.Request.URL.Query() {
		if strings.HasPrefix(name, termFilterPrefix) && len(name) > len(termFilterPrefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	filters := make([]content.TermFilter, 0, len(names))
	for _, name := range names {
		values := queryList(c, name)
		if len(values) == 0 {
			continue
		}
		filter := content.TermFilter{Taxonomy: strings.TrimPrefix(name, termFilterPrefix)}
		ids := make([]int64, 0, len(values))
		for _, v := range values {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				ids = nil
				break
			}
			ids = append(ids, id)
		}
		if ids != nil {
			filter.IDs = ids
		} else {
			filter.Slugs = values
		}
		filters = append(filters, filter)
	}
	return filters
}
