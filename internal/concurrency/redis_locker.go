package concurrency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ledger:lock:account:"

// RedisLockOptions tunes the redsync mutexes taken per account.
type RedisLockOptions struct {
	// Expiry bounds how long a crashed holder can keep an account locked.
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// DefaultRedisLockOptions keeps retrying for roughly two seconds; the caller's context deadline
// usually ends the wait first.
func DefaultRedisLockOptions() RedisLockOptions {
	return RedisLockOptions{
		Expiry:     10 * time.Second,
		Tries:      80,
		RetryDelay: 25 * time.Millisecond,
	}
}

// RedisLocker serializes account access across processes with redsync mutexes.
type RedisLocker struct {
	rs     *redsync.Redsync
	opts   RedisLockOptions
	logger *slog.Logger
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker builds a locker over an existing go-redis client.
func NewRedisLocker(client goredislib.UniversalClient, opts RedisLockOptions, logger *slog.Logger) *RedisLocker {
	if opts.Expiry <= 0 {
		opts.Expiry = DefaultRedisLockOptions().Expiry
	}
	if opts.Tries <= 0 {
		opts.Tries = DefaultRedisLockOptions().Tries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRedisLockOptions().RetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		logger: logger,
	}
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*goredislib.Client, error) {
	opt, err := goredislib.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredislib.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Acquire takes one mutex per account in ascending order.
func (l *RedisLocker) Acquire(ctx context.Context, keys ...string) (Release, error) {
	ordered := Order(keys...)
	held := make([]func(), 0, len(ordered))
	for _, key := range ordered {
		mutex := l.rs.NewMutex(
			redisKeyPrefix+key,
			redsync.WithExpiry(l.opts.Expiry),
			redsync.WithTries(l.opts.Tries),
			redsync.WithRetryDelay(l.opts.RetryDelay),
		)
		if err := mutex.LockContext(ctx); err != nil {
			releaseAll(held)()
			return nil, waitError(ctx, key, err)
		}
		held = append(held, l.unlocker(mutex, key))
	}
	return releaseAll(held), nil
}

func (l *RedisLocker) unlocker(mutex *redsync.Mutex, key string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(ctx); !ok || err != nil {
			// The lock expires on its own after Expiry.
			l.logger.Warn("failed to release account lock",
				slog.String("account_id", key),
				slog.Bool("unlock_ok", ok),
				slog.Any("error", err))
		}
	}
}
