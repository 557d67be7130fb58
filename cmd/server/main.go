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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/riandyrn/otelchi"
	otelchimetric "github.com/riandyrn/otelchi/metric"
	"go.opentelemetry.io/otel"

	"github.com/meetscribe/minutes/internal/api"
	"github.com/meetscribe/minutes/internal/cache"
	"github.com/meetscribe/minutes/internal/config"
	"github.com/meetscribe/minutes/internal/db"
	"github.com/meetscribe/minutes/internal/logger"
	"github.com/meetscribe/minutes/internal/metrics"
	"github.com/meetscribe/minutes/internal/minutes"
	"github.com/meetscribe/minutes/internal/sentry"
	"github.com/meetscribe/minutes/internal/services/docs"
	"github.com/meetscribe/minutes/internal/services/storage"
	"github.com/meetscribe/minutes/internal/services/transcription"
	"github.com/meetscribe/minutes/internal/telemetry"
	"github.com/meetscribe/minutes/internal/web"
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

	// Initialize telemetry
	shutdownTelemetry, err := telemetry.InitTelemetry(ctx, cfg.ServiceName, cfg.ServiceVersion, cfg.Env,
		cfg.OtelExporterOTLPEndpoint, telemetry.ParseHeaders(cfg.OtelExporterOTLPHeaders))
	if err != nil {
		slog.Warn("Failed to init telemetry", "error", err)
	} else {
		defer shutdownTelemetry(context.Background())
	}

	metricsHandler, shutdownMetrics, err := telemetry.InitMetrics(ctx, cfg.ServiceName, cfg.ServiceVersion, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to init metrics exporter: %v", err)
	}
	defer shutdownMetrics(context.Background())

	// Initialize Sentry
	if err := sentry.Init(cfg.SentryDSN, cfg.Env, cfg.ServiceName, cfg.ServiceVersion); err != nil {
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

	// Object storage for signed uploads and batch transcription
	var store *storage.Client
	var objectStore transcription.ObjectStore
	if cfg.StorageBucket != "" {
		store, err = storage.NewClient(ctx, storage.ConfigFrom(cfg))
		if err != nil {
			log.Fatalf("Failed to create storage client: %v", err)
		}
		objectStore = store
	}

	// Transcript cache
	var transcripts minutes.TranscriptCache
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Warn("Transcript cache disabled", "error", err)
		} else {
			defer rdb.Close()
			transcripts = cache.NewTranscriptCache(rdb, cfg.Cache.TranscriptTTL)
		}
	}

	pipeline, err := minutes.New(ctx, cfg, objectStore, transcripts)
	if err != nil {
		log.Fatalf("Failed to create minutes pipeline: %v", err)
	}

	deps := api.Deps{
		Pipeline: pipeline,
		Exporter: docs.NewClient(),
	}
	if store != nil {
		deps.Storage = store
	}

	// Asynchronous jobs need the database, the queue and the upload bucket
	if cfg.JobsEnabled() && store != nil {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}

		asynqClient, err := worker.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to create queue client: %v", err)
		}
		defer asynqClient.Close()

		deps.Jobs = db.New(pool)
		deps.Queue = asynqClient
	}

	apiServer := api.NewServer(cfg, deps)
	pages := web.NewHandler(pipeline, true)

	// Router
	r := chi.NewRouter()

	// Middleware
	r.Use(otelchi.Middleware(cfg.ServiceName,
		otelchi.WithChiRoutes(r),
		otelchi.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	))

	// HTTP metrics
	metricCfg := otelchimetric.NewBaseConfig(cfg.ServiceName, otelchimetric.WithMeterProvider(otel.GetMeterProvider()))
	r.Use(otelchimetric.NewRequestDurationMillis(metricCfg))
	r.Use(otelchimetric.NewRequestInFlight(metricCfg))
	r.Use(otelchimetric.NewResponseSizeBytes(metricCfg))

	r.Use(cors.Handler(corsOptions(cfg.CORSAllowedOrigins)))
	r.Use(sentry.HTTPMiddleware)

	r.Handle("/metrics", metricsHandler)
	apiServer.Routes(r)
	pages.Routes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server",
			"port", cfg.Port,
			"transcription_provider", cfg.Transcription.Provider,
			"generation_provider", cfg.Generation.Provider,
			"jobs_enabled", deps.Jobs != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}

func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}
	if len(origins) > 0 {
		opts.AllowedOrigins = origins
		opts.AllowCredentials = true
	}
	return opts
}
