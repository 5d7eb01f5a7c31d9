package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows the configured frontend origins. A "*" entry opens
// the API to every origin without credentials.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{
			"GET", "POST", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"X-Requested-With", "X-Request-ID",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"Content-Type", "Cache-Control", "X-Cache", "X-Request-ID",
		},
	}

	for _, origin := range origins {
		if origin == "*" {
			config.AllowAllOrigins = true
			return cors.New(config)
		}
	}
	config.AllowOrigins = origins
	config.AllowCredentials = true
	return cors.New(config)
}
