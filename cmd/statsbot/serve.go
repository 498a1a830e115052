package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MacJediWizard/statsbot/internal/api"
	"github.com/MacJediWizard/statsbot/internal/api/handlers"
	"github.com/MacJediWizard/statsbot/internal/api/middleware"
	"github.com/MacJediWizard/statsbot/internal/config"
	"github.com/MacJediWizard/statsbot/internal/notifications"
	"github.com/MacJediWizard/statsbot/internal/reports"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// historyRetention bounds how long report runs are kept by serve.
const historyRetention = 90 * 24 * time.Hour

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot: daily schedule, chat commands and HTTP API",
		Long: `Run the bot as a long-lived process.

The server will:
  - Send the statistics report to CHAT_ID on the configured cron schedule
  - Answer /stats, /start, /newusers and /getchatid in any chat
  - Serve /api/stats, /api/newusers, /api/history, /health and /metrics

Updates are received by long polling, or through a registered webhook
when telegram.mode is webhook (the default in production).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, appOptions{withHistory: true, withMetrics: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cfg.ValidateTelegram(); err != nil {
				return err
			}

			return runServer(a)
		},
	}
}

func runServer(a *app) error {
	ctx, cancel := commandContext()
	defer cancel()

	logger := a.logger
	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("environment", string(a.cfg.Environment)).
		Str("telegram_mode", a.cfg.Telegram.Mode).
		Msg("Starting statsbot")

	// The connection test only logs; the server starts either way.
	if _, err := a.service.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("MongoDB connection test failed")
	}

	if a.history != nil {
		if _, err := a.history.PruneOlderThan(ctx, historyRetention); err != nil {
			logger.Warn().Err(err).Msg("Failed to prune report history")
		}
	}

	bot, err := notifications.NewTelegramBot(telegramConfig(a.cfg), a.service, logger)
	if err != nil {
		return err
	}
	if a.metrics != nil {
		bot.SetObserver(a.metrics)
	}

	scheduler := reports.NewScheduler(a.service, bot, reports.SchedulerConfig{
		Spec:     a.cfg.Schedule.Cron,
		Location: a.service.Location(),
		ChatID:   a.cfg.Telegram.ChatID,
	}, logger)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer func() {
		<-scheduler.Stop().Done()
	}()

	limiterStore, closeLimiterStore, err := middleware.NewLimiterStore(a.cfg.Server.RedisURL)
	if err != nil {
		return err
	}
	defer closeLimiterStore()

	deps := api.Dependencies{
		Reports:  a.service,
		Database: a.service,
	}
	if a.history != nil {
		deps.History = a.history
	}
	if a.metrics != nil {
		deps.Gatherer = a.metrics.Gatherer()
	}

	webhook := a.cfg.Telegram.Mode == config.ModeWebhook
	if webhook {
		deps.Webhook = bot
		deps.WebhookToken = a.cfg.Telegram.Token
		deps.WebhookContext = ctx
	}

	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := api.NewRouter(api.Config{
		RateLimitRequests: a.cfg.Server.RateLimitRequests,
		RateLimitPeriod:   a.cfg.Server.RateLimitPeriod,
		LimiterStore:      limiterStore,
		Version: handlers.VersionInfo{
			Version:   Version,
			Commit:    Commit,
			BuildDate: BuildDate,
		},
	}, deps, logger)
	if err != nil {
		return fmt.Errorf("initialize router: %w", err)
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if webhook {
		if err := bot.RegisterWebhook(a.cfg.Telegram.WebhookURL); err != nil {
			logger.Error().Err(err).Msg("Failed to register Telegram webhook")
		}
	} else {
		go func() {
			if err := bot.Poll(ctx); err != nil {
				errCh <- fmt.Errorf("telegram polling: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("Fatal error, shutting down")
		cancel()
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
		if runErr == nil {
			runErr = err
		}
	}

	logger.Info().Msg("Server stopped")
	return runErr
}
