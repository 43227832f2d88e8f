package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/tracing"
)

// Outbound lookups are bounded to this window.
const (
	minTimeout = 2 * time.Second
	maxTimeout = 10 * time.Second
)

func newConfig() *Config {
	return &Config{
		AppConfig:        &AppConfig{},
		Logger:           &logger.Config{},
		Tracing:          &tracing.JaegerConfig{},
		PostgresConfig:   &PostgresConfig{},
		RedisConfig:      &RedisConfig{},
		DNSConfig:        &DNSConfig{},
		ScanConfig:       &ScanConfig{},
		StatsConfig:      &StatsConfig{},
		ReputationConfig: &ReputationConfig{},
		CronConfig:       &CronConfig{},
	}
}

func InitConfig() (*Config, error) {
	config := newConfig()

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		return nil, errors.Wrap(err, "error loading config")
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.ScanConfig.BatchSize <= 0 {
		return errors.New("SCAN_BATCH_SIZE must be positive")
	}
	if c.StatsConfig.PopulateInterval <= 0 {
		return errors.New("STATS_POPULATE_INTERVAL must be positive")
	}
	c.DNSConfig.Timeout = clampTimeout(c.DNSConfig.Timeout)
	c.AppConfig.HTTPClientTimeout = clampTimeout(c.AppConfig.HTTPClientTimeout)
	return nil
}

// StatsTTL keeps cached stats alive across one missed populate cycle.
func (c *Config) StatsTTL() time.Duration {
	return 2 * c.StatsConfig.PopulateInterval
}

func clampTimeout(d time.Duration) time.Duration {
	switch {
	case d < minTimeout:
		return minTimeout
	case d > maxTimeout:
		return maxTimeout
	default:
		return d
	}
}
