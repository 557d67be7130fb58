package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/meetscribe/minutes/internal/cache"
	"github.com/meetscribe/minutes/internal/config"
	"github.com/meetscribe/minutes/internal/db"
	"github.com/meetscribe/minutes/internal/logger"
	"github.com/meetscribe/minutes/internal/metrics"
	"github.com/meetscribe/minutes/internal/minutes"
	"github.com/meetscribe/minutes/internal/sentry"
	"github.com/meetscribe/minutes/internal/services/storage"
	"github.com/meetscribe/minutes/internal/telemetry"
	"github.com/meetscribe/minutes/internal/worker"
)

func main() {
	defer sentry.Recover()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.JobsEnabled() || cfg.StorageBucket == "" {
		log.Fatalf("The worker needs DATABASE_URL, REDIS_URL and GCS_BUCKET_NAME")
	}
	serviceName := cfg.ServiceName + "-worker"

	// Initialize telemetry
	shutdownTelemetry, err := telemetry.InitTelemetry(ctx, serviceName, cfg.ServiceVersion, cfg.Env,
		cfg.OtelExporterOTLPEndpoint, telemetry.ParseHeaders(cfg.OtelExporterOTLPHeaders))
	if err != nil {
		slog.Warn("Failed to init telemetry", "error", err)
	} else {
		defer shutdownTelemetry(context.Background())
	}

	metricsHandler, shutdownMetrics, err := telemetry.InitMetrics(ctx, serviceName, cfg.ServiceVersion, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to init metrics exporter: %v", err)
	}
	defer shutdownMetrics(context.Background())

	// Initialize Sentry
	if err := sentry.Init(cfg.SentryDSN, cfg.Env, serviceName, cfg.ServiceVersion); err != nil {
		slog.Warn("Failed to init Sentry", "error", err)
	} else if cfg.SentryDSN != "" {
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize business metrics
	if err := metrics.Init(); err != nil {
		slog.Warn("Failed to init business metrics", "error", err)
	}

	// Initialize logger with OTel support
	slog.SetDefault(logger.New(cfg.Env))

	// Database connection
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	store, err := storage.NewClient(ctx, storage.ConfigFrom(cfg))
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}

	var transcripts minutes.TranscriptCache
	rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("Transcript cache disabled", "error", err)
	} else {
		defer rdb.Close()
		transcripts = cache.NewTranscriptCache(rdb, cfg.Cache.TranscriptTTL)
	}

	pipeline, err := minutes.New(ctx, cfg, store, transcripts)
	if err != nil {
		log.Fatalf("Failed to create minutes pipeline: %v", err)
	}

	processor := worker.NewMinutesProcessor(db.New(pool), store, pipeline, cfg.Jobs.Retention)

	workerMetrics, err := worker.NewWorkerMetrics()
	if err != nil {
		log.Fatalf("Failed to create worker metrics: %v", err)
	}

	srv, err := worker.NewServer(cfg.RedisURL, cfg.Jobs.Concurrency)
	if err != nil {
		log.Fatalf("Failed to create worker server: %v", err)
	}
	if err := worker.Start(srv, processor.Handlers(),
		worker.OTelMiddleware,
		worker.SentryMiddleware,
		workerMetrics.Middleware,
	); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	scheduler, err := worker.NewScheduler(cfg.RedisURL, cfg.Jobs.CleanupCron)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Metrics and health endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	metricsServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	slog.Info("Worker started",
		"concurrency", cfg.Jobs.Concurrency,
		"cleanup_cron", cfg.Jobs.CleanupCron,
		"transcription_provider", cfg.Transcription.Provider,
	)

	<-ctx.Done()
	slog.Info("Shutting down worker")

	scheduler.Shutdown()
	srv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Metrics server shutdown failed", "error", err)
	}
}
