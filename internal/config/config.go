package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DevJWTSecret is used when JWT_SECRET is unset. Fine locally, never in production.
const DevJWTSecret = "storefront-dev-secret"

type Config struct {
	HTTPAddr        string
	DatabaseURL     string // empty: no primary store
	FallbackDBPath  string
	RedisAddr       string   // empty: carts and idempotency keys live in memory
	KafkaBrokers    []string // empty: events are dropped
	JWTSecret       string
	JWTExpire       time.Duration
	StripeSecretKey string // empty: unsecured checkout
	Currency        string
	ReserveStock    bool
	FrontendURL     string
	ServiceName     string
	LogLevel        slog.Level
	LogFormat       string
}

func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":5000"),
		DatabaseURL:     getenv("DATABASE_URL", ""),
		FallbackDBPath:  getenv("FALLBACK_DB_PATH", "storefront-fallback.db"),
		RedisAddr:       getenv("REDIS_ADDR", ""),
		KafkaBrokers:    splitCSV(getenv("KAFKA_BROKERS", "")),
		JWTSecret:       getenv("JWT_SECRET", DevJWTSecret),
		StripeSecretKey: getenv("STRIPE_SECRET_KEY", ""),
		Currency:        strings.ToLower(getenv("PAYMENT_CURRENCY", "usd")),
		FrontendURL:     getenv("FRONTEND_URL", "http://localhost:5173"),
		ServiceName:     getenv("SERVICE_NAME", "storefront"),
		LogFormat:       getenv("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.JWTExpire, err = ParseExpiry(getenv("JWT_EXPIRE", "7d")); err != nil {
		return Config{}, fmt.Errorf("JWT_EXPIRE: %w", err)
	}
	if cfg.ReserveStock, err = strconv.ParseBool(getenv("RESERVE_STOCK", "false")); err != nil {
		return Config{}, fmt.Errorf("RESERVE_STOCK: %w", err)
	}
	if err = cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

// ParseExpiry accepts Go durations ("12h") and whole days ("7d").
func ParseExpiry(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("expiry must be positive, got %q", s)
	}
	return d, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
