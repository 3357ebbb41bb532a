// Command reconcile drives pending deposits and withdrawals to a terminal
// state. It runs one pass and exits, or loops when -interval is set.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"walletledger/internal/bootstrap"
	"walletledger/internal/config"
	applog "walletledger/internal/logger"

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

	minAge := flag.Duration("min-age", cfg.ReconcileMinAge, "only reconcile transactions pending for longer than this")
	batch := flag.Int("batch", cfg.ReconcileBatch, "maximum transactions per pass")
	interval := flag.Duration("interval", 0, "repeat every interval instead of running once")
	flag.Parse()

	components, err := bootstrap.New(cfg, log)
	if err != nil {
		log.Fatal("failed to initialise dependencies", zap.Error(err))
	}
	defer components.Close(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		report, err := components.Wallet.ReconcilePending(ctx, *minAge, *batch)
		if err != nil {
			log.Error("reconciliation pass failed", zap.Error(err))
		} else if *interval == 0 && report.Errors > 0 {
			log.Warn("reconciliation finished with errors", zap.Int("errors", report.Errors))
		}

		if *interval == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(*interval):
		}
	}
}
