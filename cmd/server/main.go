package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	inventoryapp "github.com/finbooks/backend/internal/application/inventory"
	ledgerapp "github.com/finbooks/backend/internal/application/ledger"
	reportapp "github.com/finbooks/backend/internal/application/report"
	systemapp "github.com/finbooks/backend/internal/application/system"
	"github.com/finbooks/backend/internal/domain/shared/strategy"
	"github.com/finbooks/backend/internal/infrastructure/auth"
	"github.com/finbooks/backend/internal/infrastructure/cache"
	"github.com/finbooks/backend/internal/infrastructure/config"
	"github.com/finbooks/backend/internal/infrastructure/logger"
	"github.com/finbooks/backend/internal/infrastructure/monitor"
	"github.com/finbooks/backend/internal/infrastructure/persistence"
	"github.com/finbooks/backend/internal/infrastructure/telemetry"
	"github.com/finbooks/backend/internal/interfaces/http/handler"
	"github.com/finbooks/backend/internal/interfaces/http/middleware"
	"github.com/finbooks/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting FinBooks backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection with zap-backed GORM logging
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log, cfg.Log.Level)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database connected and migrated")

	// Telemetry pipelines (no-op when disabled)
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Shared tagged cache and operation monitor
	taggedCache := cache.New(
		cache.WithConfig(cache.Config{
			MaxSize:        cfg.Cache.MaxSize,
			OverflowMargin: cfg.Cache.OverflowMargin,
		}),
		cache.WithLogger(log.Named("cache")),
	)

	monitorOpts := []monitor.Option{
		monitor.WithMaxSamples(cfg.Monitor.MaxSamples),
		monitor.WithLogger(log.Named("monitor")),
	}
	if meterProvider.IsEnabled() {
		monitorOpts = append(monitorOpts, monitor.WithMeter(meterProvider.Meter("finbooks/operations")))
	}
	mon := monitor.New(monitorOpts...)

	// Cross-instance cache invalidation over Redis Pub/Sub. The server
	// still runs with a purely local cache when Redis is off or down.
	subscribeCtx, stopSubscribe := context.WithCancel(context.Background())
	defer stopSubscribe()

	var invalidator *cache.RedisInvalidator
	if cfg.Redis.Enabled {
		invalidator, err = cache.NewRedisInvalidator(
			cache.RedisConfig{
				Host:     cfg.Redis.Host,
				Port:     cfg.Redis.Port,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			},
			cache.WithInvalidatorChannel(cfg.Redis.Channel),
			cache.WithInvalidatorOrigin(uuid.NewString()),
			cache.WithInvalidatorLogger(log.Named("invalidator")),
		)
		if err != nil {
			log.Warn("Redis unavailable, cross-instance invalidation disabled", zap.Error(err))
			invalidator = nil
		} else {
			go func() {
				if err := invalidator.Subscribe(subscribeCtx, taggedCache); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("Invalidation subscription ended", zap.Error(err))
				}
			}()
			defer func() {
				if err := invalidator.Close(); err != nil {
					log.Error("Error closing invalidator", zap.Error(err))
				}
			}()
		}
	}

	// Repositories
	entryRepo := persistence.NewGormEntryRepository(db.DB)
	movementRepo := persistence.NewGormTransactionRepository(db.DB)

	// Application services
	ledgerOpts := []ledgerapp.BalanceServiceOption{
		ledgerapp.WithMonitor(mon),
		ledgerapp.WithLogger(log.Named("ledger")),
		ledgerapp.WithTTLs(cfg.Cache.BalanceTTL, cfg.Cache.HistoryTTL),
	}
	inventoryOpts := []inventoryapp.Option{
		inventoryapp.WithMonitor(mon),
		inventoryapp.WithLogger(log.Named("inventory")),
		inventoryapp.WithBalanceTTL(cfg.Cache.BalanceTTL),
		inventoryapp.WithDefaultCostMethod(strategy.CostMethod(cfg.Inventory.CostMethod)),
		inventoryapp.WithNegativeInventoryRejection(cfg.Inventory.RejectNegative),
	}
	if invalidator != nil {
		ledgerOpts = append(ledgerOpts, ledgerapp.WithPublisher(invalidator))
		inventoryOpts = append(inventoryOpts, inventoryapp.WithPublisher(invalidator))
	}

	balanceService := ledgerapp.NewBalanceService(entryRepo, taggedCache, ledgerOpts...)
	inventoryService := inventoryapp.NewService(movementRepo, taggedCache, inventoryOpts...)
	reportService := reportapp.NewService(balanceService, inventoryService, entryRepo, movementRepo, taggedCache,
		reportapp.WithMonitor(mon),
		reportapp.WithLogger(log.Named("report")),
		reportapp.WithReportTTL(cfg.Cache.ReportTTL),
		reportapp.WithFetchConcurrency(cfg.Report.FetchConcurrency),
	)
	systemService := systemapp.NewService(taggedCache, mon,
		systemapp.WithPinger(db),
		systemapp.WithLogger(log.Named("system")),
	)

	jwtService := auth.NewJWTService(cfg.JWT)

	// HTTP surface
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if tracerProvider.IsEnabled() {
		engine.Use(telemetry.GinTracing())
	}
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.JWTAuthMiddleware(jwtService))

	router.NewRouter(engine).
		Register(handler.NewLedgerHandler(balanceService)).
		Register(handler.NewInventoryHandler(inventoryService)).
		Register(handler.NewReportHandler(reportService)).
		Register(handler.NewSystemHandler(systemService)).
		Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", zap.Error(err))
	}
}
