// Package main seeds a ledger database with wallet accounts and warehouse
// stock. It is safe to run repeatedly: accounts are opened by owner and each
// funding movement carries a stable reference.
package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"balanceledger/internal/config"
	"balanceledger/internal/logger"
	"balanceledger/internal/models"
	"balanceledger/internal/quantity"
	"balanceledger/internal/repositories"
	"balanceledger/internal/services/ledger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func main() {
	config.LoadEnv()
	cfg := config.Load()

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	users := envInt("SEED_USERS", 10)
	products := envInt("SEED_PRODUCTS", 5)
	warehouses := envInt("SEED_WAREHOUSES", 2)
	unit := os.Getenv("SEED_CURRENCY")
	if unit == "" {
		unit = "KZT"
	}
	balance, err := decimal.NewFromString(os.Getenv("SEED_BALANCE"))
	if err != nil {
		balance = decimal.NewFromInt(1000)
	}
	stock := decimal.NewFromInt(int64(envInt("SEED_STOCK", 100)))

	db, err := repositories.OpenPostgres(cfg.DB, zl)
	if err != nil {
		zl.Fatal("failed to open database", zap.Error(err))
	}
	defer func() {
		if err := repositories.Close(db); err != nil {
			zl.Warn("failed to close database connection", zap.Error(err))
		}
	}()

	engine := ledger.NewService(repositories.NewLedgerRepository(db, cfg.DB.LockTimeout), ledger.Config{}, nil, zl)
	ctx := context.Background()

	for u := 1; u <= users; u++ {
		fund(ctx, engine, zl, models.WalletOwner(uint(u)), unit, balance)
	}
	for p := 1; p <= products; p++ {
		for w := 1; w <= warehouses; w++ {
			fund(ctx, engine, zl, models.StockOwner(uint(p), uint(w)), quantity.UnitStock, stock)
		}
	}
	zl.Info("seed complete", zap.Int("wallets", users), zap.Int("stock_rows", products*warehouses))
}

// fund opens the account and tops it up to target when it is still empty.
func fund(ctx context.Context, engine ledger.Service, zl *zap.Logger, owner, unit string, target decimal.Decimal) {
	acct, err := engine.OpenAccount(ctx, owner, unit)
	if err != nil {
		zl.Fatal("failed to open account", zap.String("owner", owner), zap.Error(err))
	}
	if !acct.Balance.IsZero() || !target.IsPositive() {
		return
	}
	if _, err := engine.Deposit(ctx, acct.ID, target, "seed:"+owner); err != nil {
		zl.Fatal("failed to fund account", zap.String("owner", owner), zap.Error(err))
	}
}
