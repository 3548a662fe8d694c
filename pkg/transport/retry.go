package transport

import (
	"context"
	"errors"
	"time"

	"github.com/matzehuels/classpath/pkg/repository"
)

// maxRetryDelay caps the doubling pause between attempts.
const maxRetryDelay = 30 * time.Second

// RetryableError marks a fetch failure that another attempt may cure: a
// dropped connection, a truncated body, a 5xx or 429 response.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether a failed fetch should be attempted again.
// Missing files, offline mode, checksum mismatches and context errors are
// final even when wrapped in a [RetryableError].
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrOffline), errors.Is(err, ErrChecksum):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return errors.As(err, new(*RetryableError))
}

// withRetry runs fetch for path in repo up to the configured number of
// attempts. The pause starts at RetryDelay and doubles up to maxRetryDelay.
// It gives up early when ctx ends or its deadline falls inside the next
// pause, returning the last fetch error in the latter case.
func (c *Client) withRetry(ctx context.Context, repo repository.Repository, path string, fetch func() error) error {
	pause := c.opts.RetryDelay
	for attempt := 1; ; attempt++ {
		err := fetch()
		if err == nil || !IsRetryable(err) || attempt >= c.opts.Attempts {
			return err
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < pause {
			return err
		}
		c.logger.Debug("retrying", "repo", repo.ID, "path", path, "attempt", attempt+1, "after", pause, "err", err)

		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		pause = min(pause*2, maxRetryDelay)
	}
}
