// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/access"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/api"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/audit"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/auth"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/community"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/config"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/content"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/db"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/health"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/image"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/media"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/middleware"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/pagecache"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/profile"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/storage"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/tracing"
)

const serviceName = "afisha-api"

// shutdownTimeout bounds how long in-flight requests may run after a signal.
const shutdownTimeout = 10 * time.Second

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Afisha API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tp, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: !cfg.IsProduction(),
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	dbClient, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	if err != nil {
		return err
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, sqlDB, "up"); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	checkers := map[string]api.HealthChecker{"database": health.NewDBChecker(sqlDB)}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		checkers["redis"] = health.NewRedisChecker(redisClient)
	} else {
		logger.Warn("REDIS_URL not set, page cache and rate limits are per instance")
	}

	var store storage.Store
	if cfg.StorageConfigured() {
		s3Store, err := storage.NewS3Store(storage.S3Config{
			Bucket:          cfg.StorageBucket,
			AccessKeyID:     cfg.StorageAccessKeyID,
			SecretAccessKey: cfg.StorageSecretAccessKey,
			Endpoint:        cfg.StorageEndpoint,
			PublicBaseURL:   cfg.StoragePublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		store = s3Store
		checkers["storage"] = s3Store
	} else {
		logger.Warn("object storage not configured, uploads are kept in memory")
		store = storage.NewMemoryStore("http://localhost:" + strconv.Itoa(cfg.Port) + "/media")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	httpMetrics := middleware.NewMetrics()
	mediaMetrics := media.NewMetrics()
	contentMetrics := content.NewMetrics()
	for _, m := range []interface{ Register(prometheus.Registerer) error }{httpMetrics, mediaMetrics, contentMetrics} {
		if err := m.Register(reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	var (
		cacheStore     pagecache.Store = pagecache.NewMemoryStore()
		rateLimitStore middleware.RateLimitStore
	)
	if redisClient != nil {
		cacheStore = pagecache.NewRedisStore(redisClient)
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient, httpMetrics)
	} else {
		rateLimitStore = middleware.NewInMemoryRateLimitStore()
	}
	pageCache := pagecache.New(cacheStore, time.Duration(cfg.PageCacheTTLSeconds)*time.Second, logger)
	reg.MustRegister(pageCache.Collectors()...)

	conn := dbClient.DB()
	communities := community.NewGormCommunityRepository(conn)
	events := community.NewGormEventRepository(conn)
	checker := access.NewChecker(profile.NewGormRepository(conn), communities, events)
	policies := media.DefaultPolicies(cfg.EventUploadMaxMB, cfg.CommunityUploadMaxMB)

	handler := api.NewRouter(api.Deps{
		Logger:      logger,
		Tokens:      auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret),
		Access:      checker,
		Communities: communities,
		Events:      events,
		Categories:  community.NewGormCategoryRepository(conn),
		Blocks:      content.NewGormRepository(conn),
		Uploader: media.NewUploader(media.UploaderConfig{
			Repository: media.NewGormRepository(conn),
			Store:      store,
			Authorizer: checker,
			Policies:   policies,
			Sanitizer:  image.NewSanitizer(image.DefaultConfig()),
			Metrics:    mediaMetrics,
			Logger:     logger,
		}),
		Policies:       policies,
		PageCache:      pageCache,
		Audit:          audit.NewRecorder(audit.NewGormRepository(conn), logger),
		ContentMetrics: contentMetrics,
		HTTPMetrics:    httpMetrics,
		RateLimitStore: rateLimitStore,
		HealthCheckers: checkers,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		CORSOrigins:    cfg.CORSAllowedOrigins,
		ServiceName:    serviceName,
	})

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info("starting server", "port", cfg.Port)
	return serve(ctx, newServer(handler), ln, logger)
}

// newServer sets read and write timeouts long enough for the largest upload.
func newServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ErrorLog:          slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}
}

// serve runs server on ln until ctx is done, then drains in-flight requests
// for up to shutdownTimeout.
func serve(ctx context.Context, server *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return <-errCh
}
