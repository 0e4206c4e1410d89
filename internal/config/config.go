// Package config provides configuration loading from environment variables.
package config

import (
	"time"
)

// ServiceConfig holds configuration for the ingestion orchestrator service.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)

	StoreDriver string // memory, sqlite, postgres or redis
	StoreDSN    string

	WebhookURL string // Destination for status-change events (empty disables notifications)
	WebhookKey string // HMAC key for signing webhook deliveries
}

// LoadServiceConfig loads service configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		APIKey:            GetSecretFile(GetEnv("API_KEY_FILE", "")),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
		StoreDriver:       GetEnv("STORE_DRIVER", "memory"),
		StoreDSN:          GetEnv("STORE_DSN", ""),
		WebhookURL:        GetEnv("WEBHOOK_URL", ""),
		WebhookKey:        GetSecretFile(GetEnv("WEBHOOK_KEY_FILE", "")),
	}
}

// WorkerServerConfig holds configuration for the reference ingestion worker binary.
type WorkerServerConfig struct {
	Port        string
	MetricsPort string
}

// LoadWorkerServerConfig loads worker binary configuration from environment variables.
func LoadWorkerServerConfig() *WorkerServerConfig {
	return &WorkerServerConfig{
		Port:        GetEnv("WORKER_PORT", "3000"),
		MetricsPort: GetEnv("METRICS_PORT", "9090"),
	}
}
