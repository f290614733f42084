// Package concurrency serializes access to accounts and retries optimistic conflicts.
package concurrency

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
)

// Release gives back every lock taken by a single Acquire call.
type Release func()

// Locker acquires exclusive access to a set of account ids.
//
// Implementations must take keys in the order returned by Order so two movements touching the
// same pair of accounts can never wait on each other.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (Release, error)
}

// Order returns the distinct non-empty keys in ascending order.
func Order(keys ...string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// NoopLocker leaves serialization to the store (row locks or optimistic versions).
type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context, _ ...string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, waitError(ctx, "", err)
	}
	return func() {}, nil
}

// waitError classifies a failed wait. A cancelled caller gets its cancellation back; anything
// else (deadline, contention, unreachable lock backend) is ErrLockTimeout.
func waitError(ctx context.Context, key string, cause error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("waiting for account lock: %w", ctx.Err())
	}
	if key == "" {
		return fmt.Errorf("%w: %w", apperrors.ErrLockTimeout, cause)
	}
	return fmt.Errorf("%w: account %s: %w", apperrors.ErrLockTimeout, key, cause)
}

func releaseAll(releases []func()) Release {
	return func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
}
