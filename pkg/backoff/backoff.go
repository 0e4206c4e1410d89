// Package backoff provides exponential backoff calculation.
package backoff

import (
	"math/rand/v2"
	"time"
)

const (
	defaultInitial = 100 * time.Millisecond
	defaultMax     = 5 * time.Second
)

// Config for exponential backoff. Zero values use defaults.
type Config struct {
	Initial time.Duration // default: 100ms
	Max     time.Duration // default: 5s
	Jitter  float64       // fraction of each delay that is randomized, in [0, 1]
}

// Exponential returns the delay before the given attempt.
// Attempt 1 returns Initial, attempt 2 returns Initial*2, and so on up to Max.
// With Jitter j the result lies in [d*(1-j), d].
func Exponential(attempt int, cfg *Config) time.Duration {
	initial, maxDelay, jitter := defaultInitial, defaultMax, 0.0
	if cfg != nil {
		if cfg.Initial > 0 {
			initial = cfg.Initial
		}
		if cfg.Max > 0 {
			maxDelay = cfg.Max
		}
		jitter = min(max(cfg.Jitter, 0), 1)
	}

	d := initial
	for i := 1; i < attempt && d < maxDelay; i++ {
		d *= 2
	}
	d = min(d, maxDelay)

	if jitter > 0 {
		d -= time.Duration(rand.Float64() * jitter * float64(d))
	}
	return d
}
