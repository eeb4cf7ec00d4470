package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bidforge/readiness/internal/analysis"
	"github.com/bidforge/readiness/internal/api"
	"github.com/bidforge/readiness/internal/cache"
	"github.com/bidforge/readiness/internal/calibration"
	"github.com/bidforge/readiness/internal/database"
	"github.com/bidforge/readiness/internal/events"
	"github.com/bidforge/readiness/internal/monitoring"
	"github.com/bidforge/readiness/internal/ratelimit"
)

func newServeCommand() *cobra.Command {
	var allowedOrigins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the readiness API server",
		Example: `  readinessd serve
  readinessd serve --config=/etc/readiness/readiness.yaml
  READINESS_PORT=9090 readinessd serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(allowedOrigins)
		},
	}

	cmd.Flags().StringSliceVar(&allowedOrigins, "allow-origin", nil, "extra allowed CORS origins")
	return cmd
}

func runServe(origins []string) error {
	// Structured logging setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := loadServiceConfig()
	if err != nil {
		return err
	}

	// Calibration store with hot reload on operator file edits
	store, err := calibration.NewStore(calibrationDir(cfg), logger)
	if err != nil {
		return err
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()

	watcher, err := calibration.NewWatcher(store)
	if err != nil {
		slog.Warn("Config watcher unavailable, file edits need a restart", "error", err)
	} else if err := watcher.Start(watchCtx); err != nil {
		slog.Warn("Config watcher failed to start, file edits need a restart", "error", err)
		watcher = nil
	}

	db, err := database.Open(cfg.Storage.Driver, cfg.Storage.DataDir, cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger()

	records := database.NewRecordService(database.NewRepository(db), appLogger)

	redisClient := ratelimit.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		PerMinute:       cfg.RateLimit.PerMinute,
		BurstMultiplier: cfg.RateLimit.BurstMultiplier,
	}, appMetrics)
	defer limiter.Close()

	respCache := cache.NewCache(cfg.CacheTTL())

	publisher := events.NewPublisher(events.Config{
		URL:    cfg.Events.URL,
		Prefix: cfg.Events.Prefix,
	}, appMetrics)
	defer publisher.Close()

	// Config changes from any write path (API apply, watched file edit)
	// invalidate cached responses and refresh the exported version.
	store.Subscribe(func(c analysis.BidReadinessConfig) {
		respCache.Clear()
		appMetrics.SetConfigVersion(c.Version)
	})
	appMetrics.SetConfigVersion(store.Active().Version)

	server := api.NewServer(api.Deps{
		Calibration:          store,
		Records:              records,
		DB:                   db,
		Limiter:              limiter,
		Cache:                respCache,
		Publisher:            publisher,
		Metrics:              appMetrics,
		Logger:               appLogger,
		Auth:                 api.NewReviewerAuth(cfg.Auth.ReviewerSecret, cfg.TokenTTL()),
		AllowedOrigins:       origins,
		ConfigApplyPerMinute: cfg.RateLimit.ConfigApplyPerMinute,
	})

	// Retention sweep runs daily
	if retention := cfg.RetentionPeriod(); retention > 0 {
		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()

			for range ticker.C {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if _, err := records.PruneOlderThan(ctx, retention); err != nil {
					slog.Error("Failed to prune expired records", "error", err)
				}
				cancel()
			}
		}()
	}

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Router(),
	}

	go func() {
		slog.Info("Starting server",
			"port", cfg.Server.Port,
			"driver", cfg.Storage.Driver,
			"events", publisher.Enabled())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	watchCancel()
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			slog.Warn("Failed to stop config watcher", "error", err)
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server exited")
	return nil
}
