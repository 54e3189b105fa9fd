// Package main is the entry point for the ledger API.
// It loads configuration, opens the account store and the idempotency store,
// wires the services and serves HTTP until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"balanceledger/internal/config"
	"balanceledger/internal/handlers"
	"balanceledger/internal/idempotency"
	"balanceledger/internal/logger"
	"balanceledger/internal/metrics"
	"balanceledger/internal/repositories"
	"balanceledger/internal/repositories/cache"
	"balanceledger/internal/routes"
	"balanceledger/internal/services/ledger"
	"balanceledger/internal/services/statement"
	"balanceledger/internal/services/transfer"
	"balanceledger/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const version = "1.0.0"

func main() {
	config.LoadEnv()
	cfg := config.Load()

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.Pinger{}

	repo, db, err := openStore(cfg, zl)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if err := repositories.Close(db); err != nil {
				zl.Warn("failed to close database connection", zap.Error(err))
			}
		}()
		go logPoolStats(ctx, db, zl)
	}
	checks["database"] = repo.Ping

	store, rdb, err := openKeyStore(ctx, cfg, zl)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				zl.Warn("failed to close redis connection", zap.Error(err))
			}
		}()
		checks["redis"] = cache.HealthCheck(rdb)
	}

	collector := metrics.NewPrometheusCollector()
	engine := ledger.NewService(repo, ledger.Config{
		MaxRetries:   cfg.Ledger.MaxRetries,
		RetryBackoff: cfg.Ledger.RetryBackoff,
		TxTimeout:    cfg.Ledger.TxTimeout,
	}, collector, zl)
	guard := idempotency.NewGuard(store, cfg.Ledger.IdempotencyTTL, cfg.Ledger.IdempotencyLease, zl)

	app := fiber.New(fiber.Config{
		AppName: "balanceledger " + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return response.Error(c, fe.Code, "HTTP_ERROR", fe.Message)
			}
			zl.Error("unhandled request error", zap.String("path", c.Path()), zap.Error(err))
			return response.Error(c, fiber.StatusInternalServerError, "INTERNAL", "internal server error")
		},
	})

	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, " + handlers.HeaderIdempotencyKey,
		AllowMethods: "GET,POST,HEAD",
	}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid}\n",
	}))

	routes.SetupRoutes(app, routes.Deps{
		Transfers:  transfer.NewService(engine, guard, zl),
		Statements: statement.NewService(repo, zl),
		Health:     handlers.NewHealthHandler(version, checks),
		Metrics:    collector,
		RateLimit:  cfg.RateLimitMax,
	})

	errCh := make(chan error, 1)
	go func() {
		zl.Info("listening",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.StoreDriver),
			zap.String("idempotency_store", cfg.IdempotencyDriver),
		)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

// openStore returns the ledger repository for the configured driver. db is nil
// for the in-memory store.
func openStore(cfg *config.Config, zl *zap.Logger) (repositories.LedgerRepository, *gorm.DB, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := repositories.OpenPostgres(cfg.DB, zl)
		if err != nil {
			return nil, nil, err
		}
		return repositories.NewLedgerRepository(db, cfg.DB.LockTimeout), db, nil
	case config.DriverMemory:
		zl.Warn("using in-memory ledger store; data is lost on restart")
		return repositories.NewMemoryLedgerRepository(cfg.DB.LockTimeout), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// openKeyStore returns the idempotency store for the configured driver. The
// in-memory store gets a sweeper bound to ctx.
func openKeyStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (idempotency.KeyStore, *redis.Client, error) {
	switch cfg.IdempotencyDriver {
	case config.DriverRedis:
		rdb, err := cache.Connect(ctx, cfg.Redis, zl)
		if err != nil {
			return nil, nil, err
		}
		return idempotency.NewRedisKeyStore(rdb), rdb, nil
	case config.DriverMemory:
		store := idempotency.NewMemoryKeyStore()
		go sweep(ctx, store, zl)
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown IDEMPOTENCY_STORE %q", cfg.IdempotencyDriver)
	}
}

func sweep(ctx context.Context, store *idempotency.MemoryKeyStore, zl *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Cleanup(); n > 0 {
				zl.Debug("expired idempotency keys removed", zap.Int("count", n))
			}
		}
	}
}

func logPoolStats(ctx context.Context, db *gorm.DB, zl *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := sqlDB.Stats()
			zl.Debug("db pool stats",
				zap.Int("open", stats.OpenConnections),
				zap.Int("idle", stats.Idle),
				zap.Int("in_use", stats.InUse),
				zap.Int64("wait_count", stats.WaitCount),
				zap.Duration("wait_duration", stats.WaitDuration),
			)
		}
	}
}
