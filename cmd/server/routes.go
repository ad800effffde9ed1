package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/marquee/internal/config"
	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	adminapi "github.com/Nixie-Tech-LLC/marquee/internal/http/api/admin/control/endpoints"
	clientapi "github.com/Nixie-Tech-LLC/marquee/internal/http/api/tv/endpoints"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/marquee/internal/metrics"
	"github.com/Nixie-Tech-LLC/marquee/internal/notify"
	cache "github.com/Nixie-Tech-LLC/marquee/internal/redis"
	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

type services struct {
	store     db.Store
	timeline  *timeline.Coordinator
	cache     *cache.TimelineCache
	publisher *notify.Publisher
	metrics   *metrics.Metrics
	ping      func(context.Context) error
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, cfg *config.Config, svc services) {
	r.Use(middleware.RequestLogger())
	r.Use(svc.metrics.Middleware())

	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
			middleware.RequestIDHeader,
		},
		ExposeHeaders: []string{
			"Content-Length",
			middleware.RequestIDHeader,
			"X-Cache",
		},
		AllowCredentials: false,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := svc.ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(svc.metrics.Handler()))

	api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api/admin",
		Auth:      true,
		SecretKey: cfg.JWTSecret,
	},
		adminapi.ScheduleModule(adminapi.NewScheduleController(svc.store, svc.timeline, svc.cache, svc.publisher)),
	)

	limiter := middleware.NewRateLimiter(cfg.DeviceRateLimit, cfg.DeviceRateBurst)
	api.MountGroup(r, api.GroupConfig{
		Prefix:     "/api/tv",
		Middleware: []gin.HandlerFunc{limiter.Middleware()},
	},
		clientapi.TimelineModule(clientapi.NewTimelineController(svc.store, svc.cache)),
	)
}
