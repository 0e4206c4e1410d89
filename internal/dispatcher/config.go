package dispatcher

import (
	"ingestion/internal/config"
	"ingestion/pkg/backoff"
	"ingestion/pkg/circuitbreaker"
	"time"
)

const (
	defaultBufferSize  = 10000
	defaultWorkers     = 10
	defaultHTTPTimeout = 10 * time.Second
	defaultMaxRetries  = 3
)

// Config holds configuration for the in-memory dispatcher.
type Config struct {
	BufferSize  int
	Workers     int
	HTTPTimeout time.Duration
	MaxRetries  int // zero uses the default, negative disables retries
	Backoff     backoff.Config
	Breaker     circuitbreaker.Config
}

// LoadConfigFromEnv reads DISPATCHER_* variables. Retry and breaker tuning
// keep their defaults.
func LoadConfigFromEnv() Config {
	return Config{
		BufferSize:  config.GetIntEnv("DISPATCHER_BUFFER_SIZE", defaultBufferSize),
		Workers:     config.GetIntEnv("DISPATCHER_WORKERS", defaultWorkers),
		HTTPTimeout: config.GetDurationEnv("DISPATCHER_HTTP_TIMEOUT", defaultHTTPTimeout),
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	return c
}
