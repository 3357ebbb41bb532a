// Package bootstrap wires the wallet engine and its collaborators from
// configuration. It is shared by the API server and the reconciler.
package bootstrap

import (
	"context"
	"time"

	"walletledger/internal/config"
	"walletledger/internal/events"
	"walletledger/internal/repositories"
	"walletledger/internal/repositories/cache"
	"walletledger/internal/services/payment"
	"walletledger/internal/services/wallet"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Components are the long-lived dependencies of a process.
type Components struct {
	DB       *gorm.DB
	Cache    *cache.CacheService
	Registry *prometheus.Registry
	Wallet   wallet.Service

	closers []func() error
}

// New connects the store, the optional cache and event publisher, and builds
// the wallet service.
func New(cfg config.Config, log *zap.Logger) (*Components, error) {
	db, err := repositories.NewPostgres(repositories.DBConfig{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		Name:            cfg.DBName,
		SSLMode:         cfg.DBSSLMode,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	}, log)
	if err != nil {
		return nil, err
	}

	c := &Components{DB: db, Registry: prometheus.NewRegistry()}
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if sqlDB, err := db.DB(); err == nil {
		c.Registry.MustRegister(collectors.NewDBStatsCollector(sqlDB, cfg.DBName))
		c.closers = append(c.closers, sqlDB.Close)
	}

	opts := []wallet.Option{
		wallet.WithLogger(log),
		wallet.WithMetrics(wallet.NewPrometheusMetrics(c.Registry)),
	}

	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(&cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		c.Cache = cache.NewCacheService(client, cfg.BalanceTTL)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := c.Cache.HealthCheck(ctx)
		cancel()
		if err != nil {
			log.Warn("redis unreachable, balance reads will fall back to the database", zap.Error(err))
		}
		opts = append(opts, wallet.WithCache(c.Cache))
		c.closers = append(c.closers, c.Cache.Close)
	} else {
		log.Info("REDIS_ADDR not set, balance cache disabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		opts = append(opts, wallet.WithPublisher(publisher))
		c.closers = append(c.closers, publisher.Close)
	} else {
		log.Info("KAFKA_BROKERS not set, transaction events disabled")
	}

	gateway := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:         cfg.StripeSecretKey,
		Timeout:           cfg.PaymentGatewayTimeout,
		MaxNetworkRetries: int64(cfg.StripeMaxNetworkRetries),
	}, log)

	c.Wallet = wallet.NewService(
		repositories.NewWalletRepository(db, log),
		repositories.NewUserRepository(db),
		gateway,
		wallet.WalletConfig{
			DefaultCurrency:      cfg.DefaultCurrency,
			GatewayTimeout:       cfg.PaymentGatewayTimeout,
			StorageRetryAttempts: cfg.StorageRetryAttempts,
			CompensationAttempts: cfg.CompensationAttempts,
		},
		opts...,
	)
	return c, nil
}

// Close releases resources in reverse order of acquisition.
func (c *Components) Close(log *zap.Logger) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Warn("failed to close resource", zap.Error(err))
		}
	}
}
