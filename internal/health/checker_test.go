package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestChecker_Liveness(t *testing.T) {
	t.Parallel()
	checker := NewChecker().Register("worker", CheckFunc(func(context.Context) error {
		return errors.New("down")
	}))

	if response := checker.Liveness(context.Background()); response.Status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s", response.Status)
	}
}

func TestChecker_Readiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		workerErr error
		storeErr  error
		want      Status
	}{
		{"all healthy", nil, nil, StatusHealthy},
		{"worker down", errors.New("connection refused"), nil, StatusUnhealthy},
		{"store down", nil, errors.New("ping timeout"), StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			checker := NewChecker().
				Register("worker", CheckFunc(func(context.Context) error { return tt.workerErr })).
				Register("store", CheckFunc(func(context.Context) error { return tt.storeErr }))

			response := checker.Readiness(context.Background())
			if response.Status != tt.want {
				t.Errorf("status = %s, want %s", response.Status, tt.want)
			}
			if len(response.Checks) != 2 {
				t.Fatalf("expected 2 checks, got %v", response.Checks)
			}
			if tt.workerErr != nil && response.Checks["worker"].Message != tt.workerErr.Error() {
				t.Errorf("worker message = %q", response.Checks["worker"].Message)
			}
		})
	}
}

func TestChecker_NilDependency(t *testing.T) {
	t.Parallel()
	response := NewChecker().Register("worker", nil).Readiness(context.Background())

	if response.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy status, got %s", response.Status)
	}
	if response.Checks["worker"].Status != StatusUnhealthy {
		t.Errorf("Expected worker check to be unhealthy, got %+v", response.Checks["worker"])
	}
}

func TestChecker_CachesReadiness(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	checker := NewChecker().Register("worker", CheckFunc(func(context.Context) error {
		calls.Add(1)
		return nil
	}))

	checker.Readiness(context.Background())
	checker.Readiness(context.Background())

	if calls.Load() != 1 {
		t.Errorf("expected cached second probe, got %d calls", calls.Load())
	}
}

func TestChecker_ShuttingDown(t *testing.T) {
	t.Parallel()
	checker := NewChecker().Register("worker", CheckFunc(func(context.Context) error { return nil }))
	checker.Readiness(context.Background())

	checker.SetShuttingDown()

	response := checker.Readiness(context.Background())
	if response.IsHealthy() {
		t.Error("expected unhealthy while shutting down")
	}
	if _, ok := response.Checks["shutdown"]; !ok {
		t.Error("expected shutdown check")
	}
}

func TestResponse_IsHealthy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		status   Status
		expected bool
	}{
		{"healthy", StatusHealthy, true},
		{"unhealthy", StatusUnhealthy, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			response := &Response{Status: tt.status}
			if response.IsHealthy() != tt.expected {
				t.Errorf("IsHealthy() = %v, want %v", response.IsHealthy(), tt.expected)
			}
		})
	}
}
