package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/marketplace/internal/core/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MARKET_ADMIN", "platform")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":50051", cfg.GRPCAddr)
	assert.Equal(t, 10, cfg.WorkerCount)
	assert.Equal(t, 10000, cfg.QueueSize)
	assert.Equal(t, 30*time.Minute, cfg.CancelWindow)
	assert.Equal(t, domain.FeeSchedule{FeeBps: 250, VIPFeeBps: 100}, cfg.Fees())
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.TelemetryEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MARKET_ADMIN", "platform")
	t.Setenv("MARKET_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("MARKET_CANCEL_WINDOW", "5m")
	t.Setenv("MARKET_CASHBACK_BPS", "700")
	t.Setenv("OTEL_ENDPOINT", "otlp.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Minute, cfg.CancelWindow)
	assert.Equal(t, uint64(700), cfg.CashbackBps)
	assert.True(t, cfg.TelemetryEnabled())
}

func TestLoad_RequiresAdmin(t *testing.T) {
	t.Setenv("MARKET_ADMIN", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsOutOfRange(t *testing.T) {
	t.Setenv("MARKET_ADMIN", "platform")
	t.Setenv("MARKET_FEE_BPS", "5001")
	t.Setenv("MARKET_CASHBACK_BPS", "701")
	t.Setenv("MARKET_WORKER_COUNT", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fee rates")
	assert.Contains(t, err.Error(), "MARKET_CASHBACK_BPS")
	assert.Contains(t, err.Error(), "MARKET_WORKER_COUNT")
}
