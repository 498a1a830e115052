// Package api provides the HTTP surface of the bot.
package api

import (
	"context"
	"time"

	"github.com/MacJediWizard/statsbot/internal/api/handlers"
	"github.com/MacJediWizard/statsbot/internal/api/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
)

// Config holds configuration for the API router.
type Config struct {
	// RateLimitRequests is the number of /api requests allowed per period
	// for each client. Zero disables rate limiting.
	RateLimitRequests int64
	RateLimitPeriod   time.Duration
	// LimiterStore backs the rate limiter. Nil uses process memory.
	LimiterStore limiter.Store
	// Version information for the version endpoint.
	Version handlers.VersionInfo
}

// Dependencies are the services the routes call into. Gatherer and Webhook
// are optional.
type Dependencies struct {
	Reports  handlers.ReportService
	History  handlers.RunLister
	Database handlers.DatabaseHealthChecker
	Gatherer prometheus.Gatherer

	// Webhook receives Telegram updates when the bot runs in webhook mode.
	Webhook      handlers.UpdateProcessor
	WebhookToken string
	// WebhookContext bounds background update processing.
	WebhookContext context.Context
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(cfg Config, deps Dependencies, logger zerolog.Logger) (*Router, error) {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.SecurityHeaders())

	handlers.NewStatusHandler(cfg.Version).RegisterPublicRoutes(r.Engine)
	handlers.NewHealthHandler(deps.Database, logger).RegisterPublicRoutes(r.Engine)

	if deps.Gatherer != nil {
		handlers.NewMetricsHandler(deps.Gatherer).RegisterPublicRoutes(r.Engine)
	}

	// Every report request opens a database connection.
	apiGroup := r.Engine.Group("/api")
	if cfg.RateLimitRequests > 0 {
		rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod, cfg.LimiterStore)
		if err != nil {
			return nil, err
		}
		apiGroup.Use(rateLimiter)
	}
	handlers.NewReportsHandler(deps.Reports, deps.History, logger).RegisterRoutes(apiGroup)

	if deps.Webhook != nil {
		ctx := deps.WebhookContext
		if ctx == nil {
			ctx = context.Background()
		}
		webhookGroup := r.Engine.Group("", middleware.BodyLimit(middleware.MaxWebhookBodyBytes))
		handlers.NewTelegramWebhookHandler(ctx, deps.Webhook, deps.WebhookToken, logger).RegisterPublicRoutes(webhookGroup)
		r.logger.Info().Msg("telegram webhook route registered")
	}

	return r, nil
}
