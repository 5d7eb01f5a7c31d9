package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/manager"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
)

// WindowCounter reports the open debounce windows.
type WindowCounter interface {
	Len() int
}

// CacheHandlers expose route cache administration.
type CacheHandlers struct {
	cache  *manager.Manager
	gate   WindowCounter
	logger *logging.ChanneledLogger
}

func NewCacheHandlers(cache *manager.Manager, gate WindowCounter, logger *logging.ChanneledLogger) *CacheHandlers {
	return &CacheHandlers{
		cache:  cache,
		gate:   gate,
		logger: logger,
	}
}

// DeleteAll flushes every route entry.
func (h *CacheHandlers) DeleteAll(c *gin.Context) {
	removed, err := h.cache.Flush(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logger.Cache().Info("Route cache flushed by request", "removed", removed)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// DeletePath evicts every variant of ?path=.
func (h *CacheHandlers) DeletePath(c *gin.Context) {
	raw, ok := c.GetQuery("path")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path query parameter is required"})
		return
	}
	path, err := content.NormalizePath(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	removed, err := h.cache.InvalidatePath(c.Request.Context(), path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logger.Cache().Info("Route path evicted by request", "path", path, "removed", removed)
	c.JSON(http.StatusOK, gin.H{"path": content.URLPath(path), "removed": removed})
}

func (h *CacheHandlers) GetStats(c *gin.Context) {
	windows := -1
	if h.gate != nil {
		windows = h.gate.Len()
	}
	c.JSON(http.StatusOK, gin.H{
		"cache":           h.cache.Stats(),
		"debounceWindows": windows,
	})
}
