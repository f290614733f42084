package services

import (
	"fmt"
	"time"

	"github.com/SscSPs/transfer_engine/internal/concurrency"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
)

// ContainerConfig carries the tunables shared by the ledger services.
type ContainerConfig struct {
	Locker               concurrency.Locker
	Publisher            portssvc.EventPublisher
	Metrics              MetricsRecorder
	Retry                concurrency.RetryPolicy
	LockTimeout          time.Duration
	IdempotencyCacheSize int
}

// NewContainer wires the services over repos. Account status changes and movements share one
// locker so they serialize on the same accounts.
func NewContainer(repos portsrepo.RepositoryProvider, cfg ContainerConfig) (*portssvc.ServiceContainer, error) {
	if cfg.Locker == nil {
		cfg.Locker = concurrency.NewLocalLocker()
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = concurrency.DefaultRetryPolicy()
	}

	guard, err := NewIdempotencyGuard(repos.JournalRepo, cfg.IdempotencyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create idempotency guard: %w", err)
	}

	return &portssvc.ServiceContainer{
		Account: NewAccountService(repos.AccountRepo, repos.TxManager,
			WithAccountLocker(cfg.Locker),
			WithAccountLockTimeout(cfg.LockTimeout)),
		Transfer: NewTransferCoordinator(repos.TxManager, guard,
			WithLocker(cfg.Locker),
			WithEventPublisher(cfg.Publisher),
			WithMetrics(cfg.Metrics),
			WithRetryPolicy(cfg.Retry),
			WithLockTimeout(cfg.LockTimeout)),
		Query: NewBalanceQuery(repos.AccountRepo, repos.JournalRepo),
	}, nil
}
