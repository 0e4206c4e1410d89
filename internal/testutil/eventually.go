// Package testutil holds polling helpers for tests that observe asynchronous
// effects such as completion timers and webhook deliveries.
package testutil

import (
	"testing"
	"time"
)

const (
	defaultTimeout = 5 * time.Second
	defaultTick    = 10 * time.Millisecond
)

// Poll configures how often and for how long a condition is checked.
type Poll struct {
	Timeout time.Duration
	Tick    time.Duration
}

func (p Poll) withDefaults() Poll {
	if p.Timeout <= 0 {
		p.Timeout = defaultTimeout
	}
	if p.Tick <= 0 {
		p.Tick = defaultTick
	}
	return p
}

// Check reports whether cond held at some point before the timeout.
func (p Poll) Check(cond func() bool) bool {
	p = p.withDefaults()
	deadline := time.Now().Add(p.Timeout)
	for {
		if cond() {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(p.Tick)
	}
}

// Eventually fails tb when cond does not hold within the default timeout.
func Eventually(tb testing.TB, cond func() bool, msg string) {
	tb.Helper()
	if !(Poll{}).Check(cond) {
		tb.Fatalf("condition not met within %s: %s", defaultTimeout, msg)
	}
}

// Never fails tb when cond holds at any point during window.
func Never(tb testing.TB, cond func() bool, window time.Duration, msg string) {
	tb.Helper()
	if (Poll{Timeout: window}).Check(cond) {
		tb.Fatalf("condition unexpectedly met within %s: %s", window, msg)
	}
}
