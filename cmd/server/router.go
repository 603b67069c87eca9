package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/astro-comp/registrar/config"
	"github.com/astro-comp/registrar/internal/analytics"
	"github.com/astro-comp/registrar/internal/middleware"
	"github.com/astro-comp/registrar/internal/ratelimit"
	"github.com/astro-comp/registrar/internal/registrations"
	"github.com/astro-comp/registrar/pkg/metrics"
	"github.com/astro-comp/registrar/pkg/response"
)

const maxBodyBytes = 10 << 20

var endpoints = gin.H{
	"health":   "GET /api/health",
	"register": "POST /api/register",
	"stats":    "GET /api/stats",
}

type routerDeps struct {
	cfg        *config.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	limiter    ratelimit.Limiter
	register   *registrations.Handler
	stats      *analytics.Handler
	emailReady bool
	started    time.Time
}

func newRouter(d routerDeps) (*gin.Engine, error) {
	if d.cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	// Rate limits key on ClientIP, so forwarding headers count only from known proxies.
	if err := router.SetTrustedProxies(d.cfg.Server.Proxies()); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(middleware.Recovery(d.logger))
	router.Use(middleware.SecureHeaders())
	router.Use(middleware.CORS(d.cfg.Server.Origins()))
	router.Use(middleware.BodyLimit(maxBodyBytes))
	router.Use(middleware.Logger(d.logger))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":   d.cfg.Competition.Name + " Registration API",
			"status":    "running",
			"version":   "1.0.0",
			"endpoints": endpoints,
		})
	})

	if d.registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	if !d.cfg.RateLimit.Disabled {
		window := d.cfg.RateLimit.Window()
		api.Use(middleware.RateLimit(d.limiter, middleware.RateLimitRule{
			Scope:   "general",
			Policy:  ratelimit.Policy{Limit: d.cfg.RateLimit.General, Window: window},
			Message: "Too many requests from this IP, please try again later.",
		}, d.metrics, d.logger))
		api.POST("/register", middleware.RateLimit(d.limiter, middleware.RateLimitRule{
			Scope:   "register",
			Policy:  ratelimit.Policy{Limit: d.cfg.RateLimit.Register, Window: window},
			Message: "Too many registration attempts from this IP, please try again later.",
		}, d.metrics, d.logger), d.register.Register)
	} else {
		api.POST("/register", d.register.Register)
	}

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "OK",
			"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
			"uptime":          time.Since(d.started).Seconds(),
			"environment":     d.cfg.Server.Environment,
			"emailConfigured": d.emailReady,
		})
	})
	api.GET("/stats", d.stats.Stats)

	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "Endpoint not found",
			"The requested endpoint "+c.Request.Method+" "+c.Request.URL.Path+" does not exist.",
			gin.H{"availableEndpoints": []string{"GET /", "GET /api/health", "GET /api/stats", "POST /api/register"}},
		)
	})

	return router, nil
}
