// Package main is the entry point for the wallet API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"walletledger/internal/bootstrap"
	"walletledger/internal/config"
	"walletledger/internal/handlers"
	applog "walletledger/internal/logger"
	"walletledger/internal/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()

	cfg, err := config.Load()
	log, sync := applog.New(config.GetEnv("ENV", "development"))
	defer func() { _ = sync() }()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	components, err := bootstrap.New(cfg, log)
	if err != nil {
		log.Fatal("failed to initialise dependencies", zap.Error(err))
	}
	defer components.Close(log)

	app := fiber.New(fiber.Config{
		AppName:      "walletledger",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.PaymentGatewayTimeout + 10*time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,HEAD",
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Money movement is rate limited per client.
	app.Use("/api/wallet", limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	routes.SetupRoutes(app, routes.Dependencies{
		WalletService: components.Wallet,
		Health:        handlers.NewHealthHandler(components.DB, components.Cache),
		JWTSecret:     cfg.JWTSecret,
		Gatherer:      components.Registry,
		Logger:        log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ReconcileInterval > 0 {
		go runReconciler(ctx, components, cfg, log)
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	log.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error("server stopped", zap.Error(err))
	}
}

// runReconciler settles stale pending transactions in the background.
func runReconciler(ctx context.Context, components *bootstrap.Components, cfg config.Config, log *zap.Logger) {
	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := components.Wallet.ReconcilePending(ctx, cfg.ReconcileMinAge, cfg.ReconcileBatch); err != nil {
				log.Error("reconciliation pass failed", zap.Error(err))
			}
		}
	}
}
