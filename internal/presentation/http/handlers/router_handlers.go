// Package handlers provides the HTTP handlers of the router, hook and cache
// endpoints.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pomeg-dev/nextpress-go/internal/application/services"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/presentation/http/middleware"
)

// RouterHandlers serves GET /router.
type RouterHandlers struct {
	router *services.RouterService
	logger *logging.ChanneledLogger
}

func NewRouterHandlers(router *services.RouterService, logger *logging.ChanneledLogger) *RouterHandlers {
	return &RouterHandlers{
		router: router,
		logger: logger,
	}
}

// GetRoute resolves the wildcard path to its formatted content. Misses are
// answered with 200 and {"404": true}; only store failures return 500.
func (h *RouterHandlers) GetRoute(c *gin.Context) {
	start := time.Now()
	req := services.RouteRequest{
		Path:           c.Param("path"),
		IncludeContent: queryBool(c, "include_content", true),
		ExplicitID:     explicitID(c),
		Preview:        queryBool(c, "preview", false),
		CacheTag:       c.Query("cache_tag"),
	}
	h.logger.HTTP().Debug("Received router request", "path", req.Path, "includeContent", req.IncludeContent, "explicitId", req.ExplicitID, "preview", req.Preview)

	result, err := h.router.Route(c.Request.Context(), req)
	if err != nil {
		h.logger.Content().Error("Router request failed", "path", req.Path, "error", err.Error(), "requestId", middleware.GetRequestID(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	switch {
	case req.Preview:
		c.Header("Cache-Control", "no-store")
		c.Header("X-Cache", "BYPASS")
	case result.FromCache:
		c.Header("X-Cache", "HIT")
	default:
		c.Header("X-Cache", "MISS")
	}

	h.logger.Content().Debug("Router request completed", "path", req.Path, "notFound", result.NotFound, "fromCache", result.FromCache, "duration", time.Since(start))
	c.JSON(http.StatusOK, result.Body())
}

// queryBool reads a WordPress-style flag: "false", "0", "no" and "off" are
// false, any other present value is true.
func queryBool(c *gin.Context, name string, fallback bool) bool {
	raw, ok := c.GetQuery(name)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "false", "0", "no", "off":
		return false
	}
	return true
}

// explicitID reads ?p= or ?page_id=. Anything that is not a positive integer
// is ignored.
func explicitID(c *gin.Context) int64 {
	for _, name := range []string{"p", "page_id"} {
		if id, err := strconv.ParseInt(c.Query(name), 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return 0
}
