// Package routes defines the API routing configuration.
// It sets up all HTTP routes and their corresponding handlers,
// including middleware and authentication requirements.
package routes

import (
	"walletledger/internal/handlers"
	"walletledger/internal/middleware"
	"walletledger/internal/models"
	"walletledger/internal/services/wallet"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the routes are bound to.
type Dependencies struct {
	WalletService wallet.Service
	Health        *handlers.HealthHandler
	JWTSecret     string
	// Gatherer serves /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, deps Dependencies) {
	if deps.Health != nil {
		app.Get("/health", deps.Health.HealthCheck)
	}
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Wallet ledger API",
			"version": "1.0.0",
			"docs":    "/api",
		})
	})

	authMiddleware := middleware.NewAuthMiddleware(deps.JWTSecret, deps.Logger)
	api := app.Group("/api", authMiddleware.Handler)

	setupWalletRoutes(api, handlers.NewWalletHandler(deps.WalletService, deps.Logger))
	if deps.Health != nil {
		api.Get("/admin/cache-stats", middleware.HasPermission(models.PermissionReadAdmin), deps.Health.CacheStats)
	}
}

func setupWalletRoutes(router fiber.Router, h *handlers.WalletHandler) {
	read := middleware.HasPermission(models.PermissionWalletRead)
	write := middleware.HasPermission(models.PermissionWalletWrite)

	w := router.Group("/wallet")
	w.Post("/", write, h.CreateWallet)
	w.Get("/", read, h.GetWallet)
	w.Get("/balance", read, h.GetBalance)
	w.Post("/deposit", write, h.Deposit)
	w.Post("/withdraw", write, h.Withdraw)
	w.Post("/transfer", middleware.HasPermission(models.PermissionTransactionWrite), h.Transfer)
	w.Get("/transactions", middleware.HasPermission(models.PermissionTransactionRead), h.GetTransactionHistory)
}
