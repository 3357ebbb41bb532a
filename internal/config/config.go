package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetDurationEnv returns a duration environment variable such as "15s" or a
// default value.
func GetDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// GetListEnv splits a comma separated environment variable.
func GetListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(GetEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction checks if the app runs in production mode.
func IsProduction() bool {
	return GetEnv("ENV", "development") == "production"
}

type Config struct {
	Env         string
	Port        string
	CORSOrigins string

	DBHost            string
	DBPort            int
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DBMaxIdleConns    int
	DBMaxOpenConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	BalanceTTL    time.Duration

	StripeSecretKey         string
	StripeMaxNetworkRetries int
	PaymentGatewayTimeout   time.Duration

	JWTSecret string

	DefaultCurrency      string
	StorageRetryAttempts int
	CompensationAttempts int

	KafkaBrokers []string
	KafkaTopic   string

	ReconcileInterval time.Duration
	ReconcileMinAge   time.Duration
	ReconcileBatch    int
}

var (
	ErrMissingStripeKey = errors.New("STRIPE_SECRET_KEY is required in production")
	ErrMissingJWTSecret = errors.New("JWT_SECRET is required in production")
)

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Env:         GetEnv("ENV", "development"),
		Port:        GetEnv("PORT", "3000"),
		CORSOrigins: GetEnv("CORS_ORIGINS", "http://localhost:5173"),

		DBHost:            GetEnv("DB_HOST", "localhost"),
		DBPort:            GetIntEnv("DB_PORT", 5432),
		DBUser:            GetEnv("DB_USER", "postgres"),
		DBPassword:        GetEnv("DB_PASSWORD", "postgres"),
		DBName:            GetEnv("DB_NAME", "walletledger"),
		DBSSLMode:         GetEnv("DB_SSLMODE", "disable"),
		DBMaxIdleConns:    GetIntEnv("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns:    GetIntEnv("DB_MAX_OPEN_CONNS", 100),
		DBConnMaxLifetime: GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
		DBConnMaxIdleTime: GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),

		RedisAddr:     GetEnv("REDIS_ADDR", ""),
		RedisPassword: GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       GetIntEnv("REDIS_DB", 0),
		BalanceTTL:    GetDurationEnv("BALANCE_CACHE_TTL", 30*time.Second),

		StripeSecretKey:         GetEnv("STRIPE_SECRET_KEY", ""),
		StripeMaxNetworkRetries: GetIntEnv("STRIPE_MAX_NETWORK_RETRIES", 2),
		PaymentGatewayTimeout:   GetDurationEnv("PAYMENT_GATEWAY_TIMEOUT", 15*time.Second),

		JWTSecret: GetEnv("JWT_SECRET", ""),

		DefaultCurrency:      GetEnv("DEFAULT_CURRENCY", "USD"),
		StorageRetryAttempts: GetIntEnv("STORAGE_RETRY_ATTEMPTS", 3),
		CompensationAttempts: GetIntEnv("COMPENSATION_ATTEMPTS", 2),

		KafkaBrokers: GetListEnv("KAFKA_BROKERS"),
		KafkaTopic:   GetEnv("KAFKA_TOPIC", "wallet.transactions"),

		ReconcileInterval: GetDurationEnv("RECONCILE_INTERVAL", 0),
		ReconcileMinAge:   GetDurationEnv("RECONCILE_MIN_AGE", 5*time.Minute),
		ReconcileBatch:    GetIntEnv("RECONCILE_BATCH", 100),
	}

	if cfg.Env == "production" {
		if cfg.StripeSecretKey == "" {
			return cfg, ErrMissingStripeKey
		}
		if cfg.JWTSecret == "" {
			return cfg, ErrMissingJWTSecret
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret"
	}
	return cfg, nil
}
