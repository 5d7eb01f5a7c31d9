// Package middleware provides the gin middleware shared by every route.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/security"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "requestId"
)

// RequestID tags each request with the caller's X-Request-ID or a new ULID
// and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = security.GenerateULID()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the ID assigned by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger writes one line per request to the http channel. Server
// errors log at error level, client errors at warn.
func RequestLogger(logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"requestId", GetRequestID(c),
			"clientIp", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			args = append(args, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			logger.HTTP().Error("Request failed", args...)
		case status >= 400:
			logger.HTTP().Warn("Request rejected", args...)
		default:
			logger.HTTP().Info("Request completed", args...)
		}
	}
}
