package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "DATABASE_URL", "REDIS_ADDR", "KAFKA_BROKERS", "JWT_EXPIRE", "RESERVE_STOCK", "LOG_LEVEL", "PAYMENT_CURRENCY"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.HTTPAddr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpire)
	assert.False(t, cfg.ReserveStock)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "usd", cfg.Currency)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("JWT_EXPIRE", "90m")
	t.Setenv("RESERVE_STOCK", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PAYMENT_CURRENCY", "EUR")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 90*time.Minute, cfg.JWTExpire)
	assert.True(t, cfg.ReserveStock)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "eur", cfg.Currency)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("JWT_EXPIRE", "seven days")
	_, err := Load()
	assert.Error(t, err)
}

func TestParseExpiry(t *testing.T) {
	d, err := ParseExpiry("30d")
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, d)

	for _, bad := range []string{"0d", "-1d", "xd", "0s", ""} {
		_, err := ParseExpiry(bad)
		assert.Error(t, err, bad)
	}
}
