package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/stockledger/stockledger-backend/internal/stock/engine"
	"github.com/stockledger/stockledger-backend/internal/stock/events"
	"github.com/stockledger/stockledger-backend/internal/stock/handler"
	"github.com/stockledger/stockledger-backend/internal/stock/query"
	"github.com/stockledger/stockledger-backend/internal/stock/repository/postgres"
	"github.com/stockledger/stockledger-backend/internal/stock/sequence"
	"github.com/stockledger/stockledger-backend/migrations"
	"github.com/stockledger/stockledger-backend/pkg/config"
	"github.com/stockledger/stockledger-backend/pkg/database"
	"github.com/stockledger/stockledger-backend/pkg/httputil"
	"github.com/stockledger/stockledger-backend/pkg/logger"
	"github.com/stockledger/stockledger-backend/pkg/messaging"
	"github.com/stockledger/stockledger-backend/pkg/metrics"
)

const serviceName = "stock-service"

// sequenceTTL outlives the monthly numbering period.
const sequenceTTL = 62 * 24 * time.Hour

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Stock Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database and apply the schema
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := migrations.Up(ctx, db.DB.DB); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := messaging.NewPublisher(rmq, cfg.RabbitMQ.Exchange, serviceName, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Document number counter
	var counter sequence.Counter
	switch cfg.Ledger.SequenceBackend {
	case config.SequenceRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		counter = sequence.NewRedisCounter(rdb, sequenceTTL)
	default:
		counter = sequence.NewPostgresCounter(db)
	}
	log.Info().Str("backend", cfg.Ledger.SequenceBackend).Msg("document sequence configured")

	// Core services
	m := metrics.New()
	store := postgres.New(db)
	movementEngine := engine.New(store, counter, log,
		engine.WithRetryPolicy(engine.RetryPolicyFromConfig(cfg.Ledger)),
		engine.WithMetrics(m),
	)
	queries := query.New(store, log)

	// Background workers
	relay := events.NewOutboxRelay(store, publisher, cfg.Ledger.OutboxBatchSize, m, log)
	scanner := events.NewExpiryScanner(queries, publisher, cfg.Ledger.ExpiryWindowDays, m, log)
	relayScheduler := events.NewScheduler("outbox-relay", cfg.Ledger.OutboxInterval, events.RelayJob(relay), log)
	expiryScheduler := events.NewScheduler("expiry-scanner", cfg.Ledger.ExpiryScanInterval, events.ScanJob(scanner), log)
	relayScheduler.Start(ctx)
	expiryScheduler.Start(ctx)

	// Initialize handlers
	stockHandler := handler.NewStockHandler(movementEngine, queries, cfg.Ledger.ExpiryWindowDays, log)
	documentHandler := handler.NewDocumentHandler(movementEngine, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Email"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.Metrics(m))
	r.Use(httputil.Actor)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})
	r.Handle("/metrics", m.Handler())

	// API routes
	r.Route("/api/v1/stock", func(r chi.Router) {
		handler.Mount(r, stockHandler, documentHandler)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Stop workers once in-flight requests have drained
	relayScheduler.Stop()
	expiryScheduler.Stop()
	cancel()

	log.Info().Msg("server stopped")
}
