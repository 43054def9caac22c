package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/missedcall-flow/cmd/mainconfig"
	"github.com/wolfman30/missedcall-flow/internal/api/router"
	appbootstrap "github.com/wolfman30/missedcall-flow/internal/app/bootstrap"
	"github.com/wolfman30/missedcall-flow/internal/business"
	"github.com/wolfman30/missedcall-flow/internal/catalog"
	appconfig "github.com/wolfman30/missedcall-flow/internal/config"
	"github.com/wolfman30/missedcall-flow/internal/conversation"
	"github.com/wolfman30/missedcall-flow/internal/events"
	"github.com/wolfman30/missedcall-flow/internal/http/handlers"
	"github.com/wolfman30/missedcall-flow/internal/notify"
	"github.com/wolfman30/missedcall-flow/internal/observability/metrics"
	"github.com/wolfman30/missedcall-flow/internal/requests"
	"github.com/wolfman30/missedcall-flow/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting missedcall-flow API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	handler, cleanup, err := buildApp(ctx, cfg, prometheus.DefaultRegisterer, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildApp wires storage, the gateway dispatcher and the orchestrator behind
// the HTTP router. cleanup releases every connection it opened.
func buildApp(ctx context.Context, cfg *appconfig.Config, reg prometheus.Registerer, logger *logging.Logger) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	metricsHandler, convMetrics := setupMetrics(reg)

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	var sqlDB *sql.DB
	if pool != nil {
		sqlDB = stdlib.OpenDBFromPool(pool)
		closers = append(closers, pool.Close, func() { _ = sqlDB.Close() })
	}

	var redisClient *redis.Client
	if cfg.SessionBackend == "redis" || cfg.SessionBackend == "auto" || cfg.SessionBackend == "" {
		redisClient = appbootstrap.BuildRedisClient(ctx, cfg, logger, true)
		if redisClient != nil {
			closers = append(closers, func() { _ = redisClient.Close() })
		}
	}

	sessionStore, backend, err := appbootstrap.BuildSessionStore(cfg, pool, redisClient, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	logger.Info("session store configured", "backend", backend)

	var (
		repo       requests.Repository
		deduper    events.Deduper
		businesses business.Lookup
	)
	if pool != nil {
		repo = requests.NewPostgresRepository(pool)
		deduper = events.NewProcessedStore(pool)
		businesses = business.NewDirectory(sqlDB)
	} else {
		logger.Warn("DATABASE_URL not set; request records and dedupe keys are kept in memory")
		repo = requests.NewInMemoryRepository()
		deduper = events.NewMemoryProcessedStore()
		businesses = business.NewStaticDirectory()
	}

	catalogRegistry := catalog.Default()
	resolver, err := appbootstrap.BuildResolver(cfg, catalogRegistry)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	convCfg, err := appbootstrap.ConversationConfig(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	dispatcher, err := appbootstrap.BuildDispatcher(cfg, convMetrics, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	emailSender, provider := appbootstrap.BuildEmailSender(ctx, cfg, func(ctx context.Context) (aws.Config, error) {
		return mainconfig.LoadAWSConfig(ctx, cfg)
	}, logger)
	logger.Info("email notifications configured", "provider", provider)

	notifyService := notify.NewService(emailSender, businesses, logger)
	var notifier conversation.RequestNotifier = notifyService
	if pool != nil {
		// Queue notifications so a provider outage is retried instead of lost.
		outbox := events.NewOutboxStore(pool)
		notifier = notify.NewOutboxNotifier(outbox, businesses, logger)
		delivererCtx, stopDeliverer := context.WithCancel(ctx)
		go events.NewDeliverer(outbox, notifyService, logger).Start(delivererCtx)
		closers = append(closers, stopDeliverer)
	}

	orchestrator, err := conversation.New(conversation.Deps{
		Resolver:   resolver,
		Templates:  catalogRegistry,
		Sessions:   sessionStore,
		Sender:     dispatcher,
		Records:    repo,
		Businesses: businesses,
		Notifier:   notifier,
		Deduper:    deduper,
		Metrics:    convMetrics,
		Logger:     logger,
	}, convCfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes reject every request")
	}
	if cfg.InboundWebhookToken == "" {
		logger.Warn("INBOUND_WEBHOOK_TOKEN not set; inbound webhook is unauthenticated")
	}

	handler := router.New(&router.Config{
		Logger:           logger,
		Conversation:     handlers.NewConversationHandler(orchestrator, cfg.InboundWebhookToken, logger),
		RequestsHandler:  requests.NewHandler(repo, logger),
		AdminAuthSecret:  cfg.AdminJWTSecret,
		AdminCORSOrigins: cfg.AdminCORSOrigins,
		MetricsHandler:   metricsHandler,
		MissedCallRate:   cfg.MissedCallRate,
		MissedCallBurst:  cfg.MissedCallBurst,
	})
	return handler, cleanup, nil
}

// setupMetrics registers conversation metrics on reg and returns the matching scrape handler.
func setupMetrics(reg prometheus.Registerer) (http.Handler, *metrics.ConversationMetrics) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := metrics.NewConversationMetrics(reg)
	if gatherer, ok := reg.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}), m
	}
	return promhttp.Handler(), m
}

func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres ping failed", "error", err)
		pool.Close()
		return nil
	}
	return pool
}
