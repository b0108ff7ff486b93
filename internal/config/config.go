// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/rl1809/marketplace/internal/core/domain"
)

const (
	ServiceName    = "marketplace"
	ServiceVersion = "0.1.0"
)

// OpenTelemetry export settings
const (
	LogsPath      = "/otlp/v1/logs"
	TracesPath    = "/otlp/v1/traces"
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

type Config struct {
	HTTPAddr string `env:"MARKET_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"MARKET_GRPC_ADDR" envDefault:":50051"`

	MySQLDSN  string `env:"MARKET_MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/marketplace?parseTime=true"`
	RedisAddr string `env:"MARKET_REDIS_ADDR" envDefault:"localhost:6379"`

	KafkaBrokers []string `env:"MARKET_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"MARKET_KAFKA_TOPIC" envDefault:"marketplace.events"`

	WorkerCount int `env:"MARKET_WORKER_COUNT" envDefault:"10"`
	QueueSize   int `env:"MARKET_QUEUE_SIZE" envDefault:"10000"`

	OtelEndpoint   string `env:"OTEL_ENDPOINT"`
	OtelAuthHeader string `env:"OTEL_AUTH_HEADER"`
	LogLevel       string `env:"MARKET_LOG_LEVEL" envDefault:"info"`

	Admin        string        `env:"MARKET_ADMIN,required,notEmpty"`
	FeeBps       uint64        `env:"MARKET_FEE_BPS" envDefault:"250"`
	VIPFeeBps    uint64        `env:"MARKET_VIP_FEE_BPS" envDefault:"100"`
	CashbackBps  uint64        `env:"MARKET_CASHBACK_BPS" envDefault:"0"`
	CancelWindow time.Duration `env:"MARKET_CANCEL_WINDOW" envDefault:"30m"`
}

// Load parses and validates the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.WorkerCount <= 0 {
		errs = append(errs, fmt.Errorf("MARKET_WORKER_COUNT must be positive, got %d", c.WorkerCount))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("MARKET_QUEUE_SIZE must be positive, got %d", c.QueueSize))
	}
	if c.FeeBps > domain.MaxFeeBps || c.VIPFeeBps > domain.MaxFeeBps {
		errs = append(errs, fmt.Errorf("fee rates must not exceed %d bps", domain.MaxFeeBps))
	}
	if c.CashbackBps > domain.MaxCashbackBps {
		errs = append(errs, fmt.Errorf("MARKET_CASHBACK_BPS must not exceed %d bps", domain.MaxCashbackBps))
	}
	if c.CancelWindow <= 0 {
		errs = append(errs, errors.New("MARKET_CANCEL_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) Fees() domain.FeeSchedule {
	return domain.FeeSchedule{FeeBps: c.FeeBps, VIPFeeBps: c.VIPFeeBps, CashbackBps: c.CashbackBps}
}

// TelemetryEnabled reports whether an OTLP endpoint is configured.
func (c *Config) TelemetryEnabled() bool {
	return c.OtelEndpoint != ""
}
