// Package main is the entry point for the ARIA API server.
package main

import (
	"context"
	"database/sql"
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/aria/internal/analysis"
	"github.com/onnwee/aria/internal/api"
	"github.com/onnwee/aria/internal/archive"
	"github.com/onnwee/aria/internal/audit"
	"github.com/onnwee/aria/internal/auth"
	"github.com/onnwee/aria/internal/config"
	"github.com/onnwee/aria/internal/db"
	"github.com/onnwee/aria/internal/health"
	"github.com/onnwee/aria/internal/idempotency"
	"github.com/onnwee/aria/internal/jobs"
	"github.com/onnwee/aria/internal/llmconfig"
	"github.com/onnwee/aria/internal/middleware"
	"github.com/onnwee/aria/internal/prioritization"
	"github.com/onnwee/aria/internal/ranking"
	"github.com/onnwee/aria/internal/session"
	"github.com/onnwee/aria/internal/tracing"
	"github.com/onnwee/aria/internal/user"
)

const (
	shutdownTimeout    = 10 * time.Second
	cleanupInterval    = time.Hour
	llmRequestTimeout  = 60 * time.Second
	serverWriteTimeout = llmRequestTimeout + 30*time.Second
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("ARIA API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			slog.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	summary := cfg.LogSummary()
	attrs := make([]any, 0, len(summary)*2)
	for k, v := range summary {
		attrs = append(attrs, k, v)
	}
	logger.Info("configuration loaded", attrs...)

	if cfg.TracingEnabled {
		provider, err := tracing.NewProvider(ctx, tracing.Config{
			ServiceName:    api.ServiceName,
			ServiceVersion: api.Version,
			Enabled:        true,
			Environment:    cfg.Env,
			ExporterType:   cfg.TracingExporter,
			OTLPEndpoint:   cfg.TracingEndpoint,
			SamplingRate:   cfg.TracingSampleRate,
			InsecureMode:   cfg.TracingInsecureMode,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown tracing", "error", err)
			}
		}()
	}

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	applied, err := db.Migrate(ctx, database)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		logger.Info("applied database migrations", "migrations", applied)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	handler, err := newHandler(ctx, cfg, logger, database, redisClient)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return serve(ctx, server, ln, logger)
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// newHandler wires stores, services and handlers. Background cleanup
// goroutines stop when ctx is cancelled.
func newHandler(ctx context.Context, cfg *config.Config, logger *slog.Logger, database *sql.DB, redisClient *redis.Client) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	httpMetrics := middleware.NewMetrics()
	prioMetrics := prioritization.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	if err := errors.Join(httpMetrics.Register(reg), prioMetrics.Register(reg), jobMetrics.Register(reg)); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	users := user.NewPostgresRepository(database)
	sessions := session.NewPostgresStore(database)
	llmConfigs := llmconfig.NewPostgresRepository(database)
	auditLog := audit.NewPostgresRepository(database)

	var (
		cache     auth.CredentialCache
		rateStore middleware.RateLimitStore
		idemRepo  idempotency.Repository
		checkers  = []api.HealthChecker{health.NewDBChecker(database)}
	)
	if redisClient != nil {
		cache = auth.NewRedisCredentialCache(redisClient, auth.DefaultCredentialTTL, logger)
		rateStore = middleware.NewRedisRateLimitStore(redisClient).WithMetrics(httpMetrics)
		idemRepo = idempotency.NewRedisRepository(redisClient, idempotency.DefaultExpiry)
		checkers = append(checkers, health.NewRedisChecker(redisClient))
	} else {
		memLimits := middleware.NewInMemoryRateLimitStore()
		go memLimits.RunCleanup(ctx, time.Minute)
		memIdem := idempotency.NewInMemoryRepository()
		go idempotency.RunPeriodicCleanup(ctx, memIdem, cleanupInterval, idempotency.DefaultExpiry, jobMetrics)
		rateStore, idemRepo = memLimits, memIdem
	}

	authSvc := auth.NewService(users, auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTSecretPrevious), cache, logger)

	weights, err := ranking.LoadCalibration(cfg.CalibrationPath)
	if err != nil {
		logger.Warn("using default weights", "error", err)
	}
	prio := prioritization.NewService(sessions, ranking.NewEngine(nil),
		prioritization.WithDefaultWeights(weights),
		prioritization.WithMetrics(prioMetrics),
		prioritization.WithLogger(logger))

	completer := analysis.NewOpenAICompleter(
		analysis.WithRateLimit(cfg.LLMRequestsPerMinute, 1),
		analysis.WithTimeout(llmRequestTimeout),
	)
	resolver := llmconfig.NewResolver(llmConfigs, llmconfig.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
	analyzer := analysis.NewAnalyzer(resolver, completer, logger)

	archiver, err := archive.New(archive.Config{
		Bucket:          cfg.S3Bucket,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive: %w", err)
	}
	if archiver.Enabled() {
		logger.Info("archiving uploads and reports", "bucket", cfg.S3Bucket)
	}

	perMinute := func(n int) middleware.RateLimitConfig {
		return middleware.RateLimitConfig{RequestsPerWindow: n, WindowDuration: time.Minute}
	}

	return api.NewRouter(api.RouterConfig{
		Auth:           api.NewAuthHandlers(authSvc, auditLog),
		Requirements:   api.NewRequirementHandlers(sessions, archiver, jobMetrics, int64(cfg.MaxUploadSizeMB)<<20),
		Prioritization: api.NewPrioritizationHandlers(prio, sessions, analyzer, jobMetrics),
		Export:         api.NewExportHandlers(sessions, archiver, jobMetrics),
		Sessions:       api.NewSessionHandlers(sessions),
		Admin:          api.NewAdminHandlers(llmConfigs, auditLog, !cfg.IsProduction()),
		Health:         api.NewHealthHandlers(checkers...),
		Authenticator:  authSvc,
		Logger:         logger,
		Metrics:        httpMetrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		RateLimitStore: rateStore,
		GlobalLimit:    perMinute(cfg.RateLimitGlobal),
		AuthLimit:      perMinute(cfg.RateLimitAuth),
		AnalysisLimit:  perMinute(cfg.RateLimitAnalysis),
		Idempotency:    idemRepo,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		TracingEnabled: cfg.TracingEnabled,
	}), nil
}

// serve runs server on ln until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func serve(ctx context.Context, server *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
