package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/dental-scheduler/internal/api/router"
	"github.com/wolfman30/dental-scheduler/internal/app/bootstrap"
	appconfig "github.com/wolfman30/dental-scheduler/internal/config"
	"github.com/wolfman30/dental-scheduler/internal/conversation"
	"github.com/wolfman30/dental-scheduler/internal/health"
	"github.com/wolfman30/dental-scheduler/internal/intent"
	"github.com/wolfman30/dental-scheduler/internal/messaging"
	"github.com/wolfman30/dental-scheduler/internal/observability/metrics"
	"github.com/wolfman30/dental-scheduler/internal/reminders"
	"github.com/wolfman30/dental-scheduler/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dental-scheduler API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	metricsHandler, schedulerMetrics := setupMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		return errors.New("redis is required for conversation state")
	}
	defer func() { _ = redisClient.Close() }()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	llmClient, err := bootstrap.BuildLLMClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	cal, err := bootstrap.BuildCalendar(ctx, cfg, logger)
	if err != nil {
		return err
	}
	notifier := messaging.NewNotifier(bootstrap.BuildSMSSender(cfg, logger), cfg.ClinicPhone, logger)
	locker := bootstrap.BuildLocker(cfg, redisClient, logger)
	store := conversation.NewRedisStore(redisClient, cfg.ContextTTL)

	extractor := intent.NewExtractor(llmClient, logger).
		WithCache(intent.NewRedisCache(redisClient), cfg.IntentCacheTTL).
		WithTimeout(bootstrap.LLMCallTimeout(cfg)).
		WithRetryPolicy(bootstrap.LLMRetryPolicy(cfg)).
		WithLocation(bootstrap.BusinessDay(cfg).Location).
		WithMetrics(schedulerMetrics)

	handler := conversation.NewHandler(cal, notifier, store, logger).
		WithSlotLocker(locker).
		WithClinicInfo(bootstrap.ClinicInfo(cfg)).
		WithMetrics(schedulerMetrics)
	if staff := bootstrap.BuildStaffNotifier(ctx, cfg, logger); staff != nil {
		handler.WithNotifier(staff)
	}

	convRouter := conversation.NewRouter(store, extractor, handler, logger).
		WithConversationLocker(locker).
		WithMetrics(schedulerMetrics)

	authToken := cfg.TwilioAuthToken
	if cfg.TwilioSkipSignature {
		logger.Warn("twilio signature validation disabled")
		authToken = ""
	}
	webhook := messaging.NewWebhookHandler(convRouter, authToken, logger).
		WithPublicBaseURL(cfg.PublicBaseURL).
		WithMetrics(schedulerMetrics)
	if deduper := bootstrap.BuildDeduper(pool, redisClient); deduper != nil {
		webhook.WithDeduper(deduper)
	}

	healthHandler := health.NewHandler(logger).
		WithCheck("redis", store).
		WithCheck("google_calendar", cal)
	if pool != nil {
		healthHandler.WithCheck("postgres", health.PingFunc(pool.Ping))
	}

	if cfg.ReminderEnabled {
		ledger, err := bootstrap.BuildLedger(pool, redisClient)
		if err != nil {
			return err
		}
		sweeper := reminders.NewSweeper(cal, notifier, ledger, logger).
			WithInterval(cfg.ReminderInterval).
			WithCooldown(cfg.ReminderCooldown).
			WithMetrics(schedulerMetrics)
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	// Setup router
	r := router.New(&router.Config{
		Logger:           logger,
		Webhook:          webhook,
		Health:           healthHandler,
		MetricsHandler:   metricsHandler,
		WebhookRateLimit: cfg.WebhookRateLimit,
		WebhookRateBurst: cfg.WebhookRateBurst,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupMetrics() (http.Handler, *metrics.SchedulerMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewSchedulerMetrics(reg)
}
