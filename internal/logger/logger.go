// Package logger builds the process-wide zap logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger in production and a colored console logger
// everywhere else. The returned func flushes buffered entries.
func New(env string) (*zap.Logger, func() error) {
	var log *zap.Logger

	if env == "production" {
		log = zap.Must(zap.NewProduction())
	} else {
		config := zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		log = zap.Must(config.Build())
	}

	return log.With(zap.String("service", "walletledger")), log.Sync
}
