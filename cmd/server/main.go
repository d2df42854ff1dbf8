package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appbarter "github.com/barterloop/backend/internal/application/barter"
	"github.com/barterloop/backend/internal/domain/barter"
	"github.com/barterloop/backend/internal/infrastructure/cache"
	"github.com/barterloop/backend/internal/infrastructure/config"
	"github.com/barterloop/backend/internal/infrastructure/event"
	"github.com/barterloop/backend/internal/infrastructure/logger"
	"github.com/barterloop/backend/internal/infrastructure/persistence"
	"github.com/barterloop/backend/internal/infrastructure/scheduler"
	"github.com/barterloop/backend/internal/infrastructure/telemetry"
	"github.com/barterloop/backend/internal/interfaces/http/handler"
	"github.com/barterloop/backend/internal/interfaces/http/middleware"
	"github.com/barterloop/backend/internal/interfaces/http/router"
)

// version is stamped at build time via -ldflags
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting BarterLoop backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	// Continuous profiling. Must start before the tracer provider so
	// span profiles attach to a running profiler.
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilingEnabled,
		ServerAddress:     cfg.Telemetry.PyroscopeAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		ProfileCPU:        true,
		ProfileAllocSpace: true,
		ProfileInuseSpace: true,
		ProfileGoroutines: true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	// OpenTelemetry: traces, metrics and the zap log bridge. All three
	// collapse to no-ops when telemetry is disabled.
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		if err := loggerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()
	if loggerProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: loggerProvider,
			Level:          zapcore.InfoLevel,
		})
		log = telemetry.NewBridgedLogger(log.Core(), otelCore)
	}

	// Database connection with zap-backed GORM logging
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := db.AutoMigrate(); err != nil {
		log.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	// Database query tracing (otelgorm) and connection pool metrics
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracingCfg := telemetry.DefaultDBTracingConfig()
		dbTracingCfg.Enabled = true
		if err := telemetry.NewDBTracingPlugin(dbTracingCfg, log).RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	var dbMetrics *telemetry.DBMetrics
	if cfg.Telemetry.Enabled {
		dbMetrics, err = telemetry.NewDBMetrics(meter, telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			log.Fatal("Failed to initialize database metrics", zap.Error(err))
		}
		if err := db.DB.Use(telemetry.NewDBMetricsPlugin(dbMetrics, log)); err != nil {
			log.Warn("Failed to register database metrics plugin", zap.Error(err))
		}
		if sqlDB, err := db.DB.DB(); err == nil {
			dbMetrics.SetSQLDB(sqlDB)
			dbMetrics.StartPoolStatsCollection(ctx)
		}
		defer dbMetrics.Stop()
	}

	// Repositories and external collaborators
	itemRepo := persistence.NewGormItemRepository(db.DB)
	proposalRepo := persistence.NewGormProposalRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)

	// In-process lock table: item locks are advisory and rebuilt from
	// proposal state on restart, so they don't need to survive the process
	locks := barter.NewMemoryLockTable(nil)

	// Graph snapshot cache: Redis when reachable, in-memory otherwise
	var graphCache appbarter.GraphCache
	redisCache, err := cache.NewRedisGraphCache(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Engine.GraphCacheTTL, log)
	if err != nil {
		log.Warn("Redis unavailable, falling back to in-memory graph cache", zap.Error(err))
		graphCache = cache.NewMemoryGraphCache(cfg.Engine.GraphCacheTTL, nil)
	} else {
		graphCache = redisCache
		log.Info("Redis graph cache connected", zap.String("addr", cfg.Redis.RedisAddr()))
	}

	// Matching engine
	scorer := barter.NewMatchScorer()
	balancer := barter.NewValueBalancer(barter.WithMaxImbalanceRatio(cfg.Engine.ImbalanceRatio))
	builder := barter.NewGraphBuilder(scorer, barter.WithRelevanceFloor(cfg.Engine.RelevanceFloor))
	discoverer := barter.NewCycleDiscoverer(scorer, balancer)

	// Event bus and notification fan-out
	eventBus := event.NewInMemoryEventBus(log)
	notificationHandler := appbarter.NewProposalNotificationHandler(
		appbarter.NewLoggingNotifier(log), log,
		appbarter.WithUserDirectory(appbarter.NewPlaceholderUserDirectory()),
	)
	eventBus.Subscribe(notificationHandler)
	log.Info("Event handlers registered",
		zap.Strings("proposal_notification_events", notificationHandler.EventTypes()),
	)

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Application services
	executionService := appbarter.NewExecutionService(itemRepo, proposalRepo, locks, ledgerRepo, log)
	executionService.SetEventPublisher(eventBus)

	proposalService := appbarter.NewProposalService(
		itemRepo, proposalRepo, locks, scorer, balancer, executionService, log,
		appbarter.WithProposalTTL(cfg.Proposal.TTL),
		appbarter.WithLockTTL(cfg.Proposal.LockTTL),
	)
	proposalService.SetEventPublisher(eventBus)

	discoveryService := appbarter.NewDiscoveryService(
		itemRepo, locks, builder, discoverer, log,
		appbarter.WithGraphCache(graphCache),
		appbarter.WithDiscoveryTimeout(cfg.Engine.DiscoveryBudget),
		appbarter.WithDiscoverDefaults(barter.DiscoverOptions{
			MaxLength:   cfg.Engine.MaxCycleLength,
			TopKPerNode: cfg.Engine.TopKPerNode,
			MinScore:    cfg.Engine.MinCycleScore,
			MaxResults:  cfg.Engine.MaxResults,
		}),
	)

	// Expiry sweep: returns items of overdue proposals to the open pool
	expiryScheduler := scheduler.NewExpiryScheduler(scheduler.ExpirySchedulerConfig{
		Enabled:       true,
		SweepInterval: cfg.Proposal.SweepInterval,
		SweepBatch:    cfg.Proposal.SweepBatch,
		SweepTimeout:  30 * time.Second,
	}, proposalService, nil, log)
	if err := expiryScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start expiry scheduler", zap.Error(err))
	}
	defer func() {
		if err := expiryScheduler.Stop(context.Background()); err != nil {
			log.Error("Error stopping expiry scheduler", zap.Error(err))
		}
	}()
	log.Info("Expiry scheduler started",
		zap.Duration("sweep_interval", cfg.Proposal.SweepInterval),
		zap.Int("sweep_batch", cfg.Proposal.SweepBatch),
	)

	// Business metrics with periodic pool health collection
	var barterMetrics *telemetry.BarterMetrics
	if cfg.Telemetry.Enabled {
		barterMetrics, err = telemetry.NewBarterMetrics(telemetry.BarterMetricsConfig{
			Meter:         meter,
			Logger:        log,
			StatsProvider: persistence.NewMarketplaceStats(db.DB),
		})
		if err != nil {
			log.Fatal("Failed to initialize barter metrics", zap.Error(err))
		}
		barterMetrics.StartPeriodicCollection(ctx, time.Minute)
		defer barterMetrics.Stop()
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, outermost first:
	// request ID, panic recovery, request logging, security headers,
	// CORS, body size limit, rate limiting, tracing, HTTP metrics,
	// profiling labels, caller identity.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	if cfg.Telemetry.Enabled {
		engine.Use(middleware.Tracing())
		engine.Use(middleware.HTTPMetricsWithMeter(meter, true))
		engine.Use(middleware.Profiling())
	}

	// The gateway terminates authentication and forwards the verified
	// caller in X-User-ID; Identity only parses and propagates it.
	engine.Use(middleware.Identity())

	if cfg.Telemetry.Enabled {
		// Runs inside the server span with the identity resolved, so
		// spans carry request_id and user_id.
		engine.Use(middleware.SpanIdentity())
	}

	// HTTP handlers
	barterHandlerOpts := []handler.BarterHandlerOption{}
	if barterMetrics != nil {
		barterHandlerOpts = append(barterHandlerOpts, handler.WithBarterMetrics(barterMetrics))
	}
	barterHandler := handler.NewBarterHandler(discoveryService, proposalService, barterHandlerOpts...)
	systemHandler := handler.NewSystemHandler(db, version)

	// Unversioned probes stay outside /api/v1
	systemHandler.RegisterRootRoutes(engine)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(barterHandler).
		Register(systemHandler)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
