package concurrency

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
)

const maxShift = 30

// RetryPolicy bounds the optimistic retry loop.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// OnRetry, when set, is called before sleeping for another attempt.
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy makes five attempts starting from a 10ms backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second}
}

// Backoff returns a full-jitter delay in [0, min(MaxDelay, BaseDelay*2^attempt)).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	} else if attempt > maxShift {
		attempt = maxShift
	}
	ceiling := p.BaseDelay << attempt
	if ceiling <= 0 {
		ceiling = p.BaseDelay
	}
	if p.MaxDelay > 0 && ceiling > p.MaxDelay {
		ceiling = p.MaxDelay
	}
	return rand.N(ceiling)
}

// Retry runs fn until it succeeds, fails with something other than ErrVersionConflict, or the
// attempt budget is spent. A spent budget yields ErrConcurrencyConflict.
func Retry(ctx context.Context, p RetryPolicy, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil || !errors.Is(err, apperrors.ErrVersionConflict) {
			return err
		}
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if serr := sleep(ctx, p.Backoff(attempt-1)); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("%w: gave up after %d attempts (last: %v)", apperrors.ErrConcurrencyConflict, attempts, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("retry wait: %w", ctx.Err())
	}
}
