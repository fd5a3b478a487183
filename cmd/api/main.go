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
	"github.com/redis/go-redis/v9"
	"github.com/sprayline/foamops-api/internal/auth"
	"github.com/sprayline/foamops-api/internal/config"
	"github.com/sprayline/foamops-api/internal/database"
	"github.com/sprayline/foamops-api/internal/documents"
	"github.com/sprayline/foamops-api/internal/http/handler"
	"github.com/sprayline/foamops-api/internal/http/middleware"
	"github.com/sprayline/foamops-api/internal/http/router"
	"github.com/sprayline/foamops-api/internal/jobs"
	"github.com/sprayline/foamops-api/internal/lock"
	"github.com/sprayline/foamops-api/internal/logger"
	"github.com/sprayline/foamops-api/internal/metrics"
	"github.com/sprayline/foamops-api/internal/repository"
	"github.com/sprayline/foamops-api/internal/service"
	"go.uber.org/zap"
)

// @title FoamOps API
// @version 1.0
// @description Estimates, stock reservations, job reconciliation and device sync for spray-foam contractors

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// In staging/production secrets may come from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connected", zap.String("driver", db.Dialector.Name()))

	locker, closeLocker, err := newLocker(ctx, &cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeLocker()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var renderer documents.Renderer = documents.Disabled{}
	if cfg.Documents.BaseURL != "" {
		renderer = documents.NewClient(&cfg.Documents)
	} else {
		log.Info("Document renderer not configured, documents will be skipped")
	}

	// Repositories
	estimateRepo := repository.NewEstimateRepository(db)
	warehouseRepo := repository.NewWarehouseRepository(db)
	usageRepo := repository.NewUsageLogRepository(db)
	profitRepo := repository.NewProfitLossRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	poRepo := repository.NewPurchaseOrderRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	numberSequenceRepo := repository.NewNumberSequenceRepository(db)

	// Services
	numberSequenceService := service.NewNumberSequenceService(numberSequenceRepo, log)
	outboxService := service.NewOutboxService(outboxRepo, estimateRepo, settingsRepo, renderer, cfg.Outbox, m, log)
	estimateService := service.NewEstimateService(db, locker, estimateRepo, warehouseRepo, usageRepo, profitRepo, settingsRepo, numberSequenceService, outboxService, m, log)
	warehouseService := service.NewWarehouseService(db, locker, warehouseRepo, poRepo, usageRepo, profitRepo, m, log)
	settingsService := service.NewSettingsService(settingsRepo, log)
	syncService := service.NewSyncService(db, locker, estimateRepo, warehouseRepo, poRepo, settingsRepo, m, log)

	// Middleware and handlers
	authMiddleware := auth.NewMiddleware(&cfg.Auth, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		m,
		reg,
		authMiddleware,
		rateLimiter,
		handler.NewEstimateHandler(estimateService, log),
		handler.NewWarehouseHandler(warehouseService, log),
		handler.NewSyncHandler(syncService, settingsService, log),
	)

	var scheduler *jobs.Scheduler
	if cfg.Outbox.Enabled {
		scheduler = jobs.NewScheduler(log)
		job := jobs.NewOutboxJob(outboxService, m, log, time.Duration(cfg.Outbox.Timeout)*time.Second)
		if err := jobs.RegisterOutboxJob(scheduler, job, cfg.Outbox.Schedule); err != nil {
			log.Error("Failed to register outbox job", zap.Error(err))
			scheduler = nil
		} else {
			scheduler.Start()
		}
	} else {
		log.Info("Outbox dispatch disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      http.TimeoutHandler(rt.Setup(), cfg.Server.RequestTimeoutDuration(), `{"type":"timeout","title":"Request Timeout","status":503}`),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		log.Info("Server stopped gracefully")
	}

	return nil
}

// newLocker returns the Redis lock when several replicas share the database,
// otherwise an in-process one
func newLocker(ctx context.Context, cfg *config.RedisConfig, log *zap.Logger) (lock.Locker, func(), error) {
	if !cfg.Enabled {
		log.Info("Redis disabled, using in-process warehouse lock")
		return lock.NewLocalLocker(), func() {}, nil
	}

	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	locker, err := lock.NewRedisLocker(client, lock.RedisOptions{
		TTL:  time.Duration(cfg.LockTTL) * time.Millisecond,
		Wait: time.Duration(cfg.LockWait) * time.Millisecond,
		OnReleaseError: func(key string, err error) {
			log.Warn("Failed to release warehouse lock", zap.String("key", key), zap.Error(err))
		},
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	log.Info("Using Redis warehouse lock", zap.String("addr", opts.Addr))
	return locker, func() { _ = client.Close() }, nil
}
