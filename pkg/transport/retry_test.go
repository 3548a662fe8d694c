package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	cperrors "github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/repository"
)

func TestWithRetry(t *testing.T) {
	transient := &RetryableError{Err: fmt.Errorf("%w: status 502", ErrNetwork)}
	tests := []struct {
		name      string
		fail      error
		failures  int
		attempts  int
		wantCalls int
		wantErr   bool
	}{
		{"succeeds first try", transient, 0, 3, 1, false},
		{"succeeds after retries", transient, 2, 3, 3, false},
		{"exhausts attempts", transient, 5, 3, 3, true},
		{"single attempt", transient, 5, 1, 1, true},
		{"client error is final", fmt.Errorf("%w: status 403", ErrNetwork), 5, 3, 1, true},
		{"missing file is final", ErrNotFound, 5, 3, 1, true},
		{"offline is final", &RetryableError{Err: ErrOffline}, 5, 3, 1, true},
		{"checksum mismatch is final", &RetryableError{Err: cperrors.Wrap(cperrors.ErrCodeChecksum, ErrChecksum, "x.jar")}, 5, 3, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(Options{Attempts: tt.attempts})
			calls := 0
			err := c.withRetry(context.Background(), repository.Repository{ID: "r"}, "x.jar", func() error {
				calls++
				if calls <= tt.failures {
					return tt.fail
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("withRetry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestWithRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := New(Options{Attempts: 3, RetryDelay: time.Hour}, nil)

	calls := 0
	err := c.withRetry(ctx, repository.Repository{ID: "r"}, "x.jar", func() error {
		calls++
		cancel()
		return &RetryableError{Err: ErrNetwork}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("withRetry() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithRetryDeadlineBeforePause(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c := New(Options{Attempts: 3, RetryDelay: time.Hour}, nil)

	start := time.Now()
	err := c.withRetry(ctx, repository.Repository{ID: "r"}, "x.jar", func() error {
		return &RetryableError{Err: ErrNetwork}
	})
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("withRetry() error = %v, want the fetch error", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("withRetry() waited %v, want an immediate return", elapsed)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"transient", &RetryableError{Err: ErrNetwork}, true},
		{"wrapped transient", fmt.Errorf("get: %w", &RetryableError{Err: ErrNetwork}), true},
		{"not found", &RetryableError{Err: ErrNotFound}, false},
		{"offline", &RetryableError{Err: ErrOffline}, false},
		{"checksum", &RetryableError{Err: ErrChecksum}, false},
		{"canceled", &RetryableError{Err: context.Canceled}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}

	base := errors.New("boom")
	if !errors.Is(&RetryableError{Err: base}, base) {
		t.Error("RetryableError should unwrap to its cause")
	}
}
