package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/messaging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
)

// Pinger checks a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandlers serve the health check and the invalidation feed.
type SystemHandlers struct {
	store       Pinger
	broadcaster *messaging.Broadcaster
	backend     string
	logger      *logging.ChanneledLogger
}

func NewSystemHandlers(store Pinger, broadcaster *messaging.Broadcaster, backend string, logger *logging.ChanneledLogger) *SystemHandlers {
	return &SystemHandlers{
		store:       store,
		broadcaster: broadcaster,
		backend:     backend,
		logger:      logger,
	}
}

// GetHealth reports 503 when the content store is unreachable.
func (h *SystemHandlers) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{
		"status":       "ok",
		"database":     "ok",
		"cacheBackend": h.backend,
		"feedClients":  h.broadcaster.ClientCount(),
	}
	if err := h.store.Ping(ctx); err != nil {
		h.logger.System().Warn("Health check failed", "error", err.Error())
		body["status"] = "degraded"
		body["database"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// GetInvalidationFeed upgrades to a websocket that receives every
// invalidation and settings report.
func (h *SystemHandlers) GetInvalidationFeed(c *gin.Context) {
	h.broadcaster.ServeWS(c.Writer, c.Request)
}
