// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/pomeg-dev/nextpress-go/internal/application/container"
	"github.com/pomeg-dev/nextpress-go/internal/presentation/http/handlers"
	"github.com/pomeg-dev/nextpress-go/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	cfg := container.Config
	gin.SetMode(cfg.GinMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(container.Logger))
	r.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	// Initialize handlers
	routerHandlers := handlers.NewRouterHandlers(container.RouterService, container.Logger)
	hookHandlers := handlers.NewHookHandlers(container.InvalidationService, container.SettingsInvalidation, container.Logger)
	cacheHandlers := handlers.NewCacheHandlers(container.RouteCache, container.GateSweeper, container.Logger)
	listingHandlers := handlers.NewListingHandlers(container.ListingService, container.Logger)
	systemHandlers := handlers.NewSystemHandlers(container.Store, container.Broadcaster, container.CacheBackend.Name(), container.Logger)

	// Unversioned router paths are the ones the frontend calls.
	r.GET("/router", routerHandlers.GetRoute)
	r.GET("/router/*path", routerHandlers.GetRoute)
	r.GET("/posts", listingHandlers.GetPosts)
	r.GET("/tax_list/:taxonomy", listingHandlers.GetTerms)
	r.GET("/tax_term/:taxonomy/:term", listingHandlers.GetTerm)

	r.GET("/health", systemHandlers.GetHealth)
	r.GET("/metrics", gin.WrapH(container.Metrics.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/router", routerHandlers.GetRoute)
		api.GET("/router/*path", routerHandlers.GetRoute)
		api.GET("/posts", listingHandlers.GetPosts)
		api.GET("/tax_list/:taxonomy", listingHandlers.GetTerms)
		api.GET("/tax_term/:taxonomy/:term", listingHandlers.GetTerm)
		api.GET("/invalidations/ws", systemHandlers.GetInvalidationFeed)

		hookAuth := middleware.HookAuth(cfg.HookSecret, container.Logger)

		hooks := api.Group("/hooks")
		hooks.Use(hookAuth)
		{
			hooks.POST("/content", hookHandlers.PostContentHook)
			hooks.POST("/content/before", hookHandlers.PostBeforeHook)
			hooks.POST("/settings", hookHandlers.PostSettingsHook)
		}

		cache := api.Group("/cache")
		cache.Use(hookAuth)
		{
			cache.DELETE("", cacheHandlers.DeleteAll)
			cache.DELETE("/path", cacheHandlers.DeletePath)
			cache.GET("/stats", cacheHandlers.GetStats)
		}
	}

	return r
}
