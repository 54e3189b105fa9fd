// Package routes defines the API routing configuration.
// It mounts the ledger endpoints under /api/v1 together with health and
// metrics endpoints.
package routes

import (
	"time"

	"balanceledger/internal/handlers"
	"balanceledger/internal/metrics"
	"balanceledger/internal/middleware"
	"balanceledger/internal/services/statement"
	"balanceledger/internal/services/transfer"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// Deps carries everything SetupRoutes wires into handlers.
type Deps struct {
	Transfers  transfer.Service
	Statements statement.Service
	Health     *handlers.HealthHandler
	// Metrics is optional; without it /metrics is not mounted.
	Metrics *metrics.PrometheusCollector
	// RateLimit is the number of mutating requests allowed per client per minute.
	RateLimit int
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, deps Deps) {
	if deps.Metrics != nil {
		app.Use(middleware.RequestMetrics(deps.Metrics))
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}
	if deps.Health != nil {
		app.Get("/health", deps.Health.HealthCheck)
	}

	ledgerHandler := handlers.NewLedgerHandler(deps.Transfers, deps.Statements)
	api := app.Group("/api/v1")
	limit := middleware.RateLimit(deps.RateLimit, time.Minute)

	// Accounts
	accounts := api.Group("/accounts")
	accounts.Post("/", limit, ledgerHandler.OpenAccount)
	accounts.Get("/", ledgerHandler.ListAccounts)
	// by-owner is registered ahead of /:id so it is not read as an id.
	accounts.Get("/by-owner", ledgerHandler.GetAccountByOwner)
	accounts.Get("/:id", ledgerHandler.GetAccount)
	accounts.Post("/:id/deposit", limit, ledgerHandler.Deposit)
	accounts.Post("/:id/withdraw", limit, ledgerHandler.Withdraw)
	accounts.Post("/:id/adjust", limit, ledgerHandler.Adjust)
	accounts.Get("/:id/balance", ledgerHandler.GetBalance)
	accounts.Get("/:id/entries", ledgerHandler.GetStatement)
	accounts.Get("/:id/reconcile", ledgerHandler.Reconcile)

	// Transfers
	api.Post("/transfers", limit, ledgerHandler.Transfer)
	api.Post("/stock/transfers", limit, ledgerHandler.TransferStock)

	// Entries
	api.Get("/entries/:id", ledgerHandler.GetEntry)

	api.Get("/stats", ledgerHandler.Stats)
}
