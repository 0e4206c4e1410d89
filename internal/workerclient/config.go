package workerclient

import (
	"ingestion/internal/config"
	"ingestion/pkg/circuitbreaker"
	"time"
)

// Config holds worker client settings.
type Config struct {
	BaseURL string        // worker root URL (default: http://localhost:3000)
	Timeout time.Duration // bound on every call (default: 10s)
	Breaker circuitbreaker.Config
}

// LoadConfigFromEnv reads WORKER_* variables.
func LoadConfigFromEnv() Config {
	return Config{
		BaseURL: config.GetEnv("WORKER_URL", "http://localhost:3000"),
		Timeout: config.GetDurationEnv("WORKER_TIMEOUT", 10*time.Second),
		Breaker: circuitbreaker.Config{
			Threshold: config.GetIntEnv("WORKER_BREAKER_THRESHOLD", 5),
			Cooldown:  config.GetDurationEnv("WORKER_BREAKER_COOLDOWN", 30*time.Second),
		},
	}
}
