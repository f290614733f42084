// Package app assembles the ledger from configuration: store, locker, event sinks and services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/transfer_engine/internal/concurrency"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
	"github.com/SscSPs/transfer_engine/internal/core/services"
	"github.com/SscSPs/transfer_engine/internal/notify"
	"github.com/SscSPs/transfer_engine/internal/platform/config"
	"github.com/SscSPs/transfer_engine/internal/platform/metrics"
	"github.com/SscSPs/transfer_engine/internal/repositories/database/pgsql"
	"github.com/SscSPs/transfer_engine/internal/repositories/database/sqlite"
	"github.com/SscSPs/transfer_engine/internal/repositories/memory"
	"github.com/SscSPs/transfer_engine/pkg/database"
)

// App holds the wired ledger and the resources that must be released on shutdown.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Services *portssvc.ServiceContainer
	Events   *notify.Broadcaster
	Metrics  *metrics.Collector

	closers []func() error
}

// New builds the application described by cfg. Call Close when done, even after an error
// from a later step of the caller.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.NewCollector()}

	repos, err := a.openStore(ctx)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	locker, err := a.newLocker(ctx)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	publisher, err := a.newPublisher()
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	retry := concurrency.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.TransferMaxAttempts
	if cfg.TransferRetryBaseDelay > 0 {
		retry.BaseDelay = cfg.TransferRetryBaseDelay
	}

	a.Services, err = services.NewContainer(repos, services.ContainerConfig{
		Locker:               locker,
		Publisher:            publisher,
		Metrics:              a.Metrics,
		Retry:                retry,
		LockTimeout:          cfg.TransferLockTimeout,
		IdempotencyCacheSize: cfg.IdempotencyCacheSize,
	})
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *App) openStore(ctx context.Context) (portsrepo.RepositoryProvider, error) {
	cfg := a.Config
	switch cfg.StoreBackend {
	case config.StorePostgres:
		if cfg.RunMigrations {
			a.Logger.Info("Running database migrations...")
			if err := database.MigratePostgres(cfg.DatabaseURL, a.Logger); err != nil {
				return portsrepo.RepositoryProvider{}, err
			}
		}
		pool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
		if err != nil {
			return portsrepo.RepositoryProvider{}, fmt.Errorf("failed to initialize database pool: %w", err)
		}
		a.onClose(func() error {
			database.ClosePgxPool(pool)
			return nil
		})
		a.Logger.Info("Database connection pool established.")
		return pgsql.NewRepositoryProvider(pool), nil

	case config.StoreSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return portsrepo.RepositoryProvider{}, err
		}
		a.onClose(db.Close)
		if cfg.RunMigrations {
			if err := database.MigrateSQLite(db, a.Logger); err != nil {
				return portsrepo.RepositoryProvider{}, err
			}
		}
		a.Logger.Info("SQLite database opened.", slog.String("path", cfg.SQLitePath))
		return sqlite.NewRepositoryProvider(db), nil

	default:
		return memory.NewRepositoryProvider(memory.NewStore()), nil
	}
}

func (a *App) newLocker(ctx context.Context) (concurrency.Locker, error) {
	switch a.Config.LockBackend {
	case config.LockRedis:
		client, err := concurrency.NewRedisClient(ctx, a.Config.RedisURL)
		if err != nil {
			return nil, err
		}
		a.onClose(client.Close)

		opts := concurrency.DefaultRedisLockOptions()
		if a.Config.LockExpiry > 0 {
			opts.Expiry = a.Config.LockExpiry
		}
		a.Logger.Info("Using redis account locks", slog.Duration("expiry", opts.Expiry))
		return concurrency.NewRedisLocker(client, opts, a.Logger), nil

	case config.LockNone:
		// Correctness then rests on the store's version checks alone.
		a.Logger.Warn("Account locking disabled, relying on optimistic retries")
		return concurrency.NoopLocker{}, nil

	default:
		return concurrency.NewLocalLocker(), nil
	}
}

func (a *App) newPublisher() (portssvc.EventPublisher, error) {
	a.Events = notify.NewBroadcaster(a.Metrics, a.Logger)
	sinks := notify.Fanout{a.Events}

	if a.Config.WebhookURL != "" {
		webhook, err := notify.NewWebhookPublisher(notify.WebhookOptions{
			URL:      a.Config.WebhookURL,
			Secret:   a.Config.WebhookSecret,
			Recorder: a.Metrics,
			Logger:   a.Logger,
		})
		if err != nil {
			return nil, err
		}
		a.onClose(func() error {
			webhook.Close()
			return nil
		})
		sinks = append(sinks, webhook)
		a.Logger.Info("Webhook notifications enabled")
	}

	if a.Config.AMQPURL != "" {
		amqpPublisher, err := notify.DialAMQP(a.Config.AMQPURL, a.Config.AMQPExchange, a.Metrics, a.Logger)
		if err != nil {
			return nil, err
		}
		a.onClose(amqpPublisher.Close)
		sinks = append(sinks, amqpPublisher)
		a.Logger.Info("AMQP notifications enabled", slog.String("exchange", a.Config.AMQPExchange))
	}

	return sinks, nil
}
