package testutil

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPoll_Check(t *testing.T) {
	t.Parallel()

	var n atomic.Int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		n.Store(1)
	}()

	if !(Poll{Timeout: time.Second}).Check(func() bool { return n.Load() == 1 }) {
		t.Fatal("expected condition to become true")
	}
}

func TestPoll_CheckTimesOut(t *testing.T) {
	t.Parallel()

	start := time.Now()
	ok := (Poll{Timeout: 30 * time.Millisecond, Tick: 5 * time.Millisecond}).Check(func() bool { return false })
	if ok {
		t.Fatal("expected timeout")
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("returned after %v, before the timeout", elapsed)
	}
}

func TestPoll_ChecksAtLeastOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	(Poll{Timeout: time.Nanosecond}).Check(func() bool {
		calls++
		return false
	})
	if calls == 0 {
		t.Error("condition was never evaluated")
	}
}

func TestEventually(t *testing.T) {
	t.Parallel()

	var n atomic.Int32
	time.AfterFunc(10*time.Millisecond, func() { n.Store(3) })
	Eventually(t, func() bool { return n.Load() == 3 }, "counter set")
}

func TestNever(t *testing.T) {
	t.Parallel()
	Never(t, func() bool { return false }, 20*time.Millisecond, "constant false")
}
