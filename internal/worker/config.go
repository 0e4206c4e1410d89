package worker

import (
	"ingestion/internal/config"
	"time"
)

const (
	defaultMinDelay    = 2 * time.Minute
	defaultMaxDelay    = 5 * time.Minute
	defaultFailureRate = 0.5
)

// Config controls the simulated deferred completion.
type Config struct {
	MinDelay    time.Duration // shortest completion delay (default: 2m)
	MaxDelay    time.Duration // longest completion delay (default: 5m)
	FailureRate *float64      // probability a completion ends Failed; nil means 0.5
}

// Rate returns a FailureRate value for Config literals.
func Rate(p float64) *float64 { return &p }

// LoadConfigFromEnv reads COMPLETION_* variables.
func LoadConfigFromEnv() Config {
	rate := config.GetFloatEnv("COMPLETION_FAILURE_RATE", defaultFailureRate)
	return Config{
		MinDelay:    config.GetDurationEnv("COMPLETION_MIN_DELAY", defaultMinDelay),
		MaxDelay:    config.GetDurationEnv("COMPLETION_MAX_DELAY", defaultMaxDelay),
		FailureRate: &rate,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.MinDelay <= 0 {
		c.MinDelay = defaultMinDelay
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
	if c.FailureRate == nil || *c.FailureRate < 0 || *c.FailureRate > 1 {
		rate := defaultFailureRate
		c.FailureRate = &rate
	}
	return c
}
