package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/transfer_engine/internal/concurrency"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
	"github.com/SscSPs/transfer_engine/internal/repositories/memory"
	"github.com/SscSPs/transfer_engine/internal/repositories/storetest"
)

// seedAccount stores an ACTIVE USD account with the given balance and returns its id.
func seedAccount(t *testing.T, store *memory.Store, owner string, balance int64) string {
	t.Helper()
	acc := storetest.NewAccount(owner, balance)
	require.NoError(t, store.SaveAccount(context.Background(), acc))
	return acc.AccountID
}

func balanceOf(t *testing.T, store *memory.Store, accountID string) int64 {
	t.Helper()
	acc, err := store.FindAccountByID(context.Background(), accountID)
	require.NoError(t, err)
	return acc.Balance
}

func fastRetry() concurrency.RetryPolicy {
	return concurrency.RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

// MockEventPublisher is a mock type for the EventPublisher interface
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event domain.TransferCompletedEvent) {
	m.Called(ctx, event)
}

// recordingMetrics counts coordinator measurements.
type recordingMetrics struct {
	mu        sync.Mutex
	outcomes  map[string]int
	retries   int
	lockWaits int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{outcomes: make(map[string]int)}
}

func (r *recordingMetrics) ObserveMovement(_ domain.TransactionKind, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[outcome]++
}

func (r *recordingMetrics) ObserveLockWait(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lockWaits++
}

func (r *recordingMetrics) IncConflictRetry(domain.TransactionKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

func (r *recordingMetrics) outcome(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[name]
}

// conflictingTxManager makes the first n scopes fail as if another writer won the race.
type conflictingTxManager struct {
	inner     portsrepo.TransactionManager
	mu        sync.Mutex
	remaining int
	calls     int
	conflict  error
}

func (m *conflictingTxManager) WithinTransaction(ctx context.Context, fn portsrepo.TxFunc) error {
	m.mu.Lock()
	m.calls++
	fail := m.remaining > 0
	if fail {
		m.remaining--
	}
	m.mu.Unlock()

	return m.inner.WithinTransaction(ctx, func(ctx context.Context, tx portsrepo.TxRepositories) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if fail {
			return m.conflict
		}
		return nil
	})
}

// faultyTxManager lets a test replace ConditionalAdjust for selected accounts.
type faultyTxManager struct {
	inner  portsrepo.TransactionManager
	adjust func(accountID string, delta int64) error
}

func (m *faultyTxManager) WithinTransaction(ctx context.Context, fn portsrepo.TxFunc) error {
	return m.inner.WithinTransaction(ctx, func(ctx context.Context, tx portsrepo.TxRepositories) error {
		return fn(ctx, faultyTx{TxRepositories: tx, adjust: m.adjust})
	})
}

type faultyTx struct {
	portsrepo.TxRepositories
	adjust func(accountID string, delta int64) error
}

func (t faultyTx) Accounts() portsrepo.AccountTxStore {
	return faultyAccounts{AccountTxStore: t.TxRepositories.Accounts(), adjust: t.adjust}
}

type faultyAccounts struct {
	portsrepo.AccountTxStore
	adjust func(accountID string, delta int64) error
}

func (a faultyAccounts) ConditionalAdjust(ctx context.Context, accountID string, delta int64, expectedVersion int64) (int64, error) {
	if err := a.adjust(accountID, delta); err != nil {
		return 0, err
	}
	return a.AccountTxStore.ConditionalAdjust(ctx, accountID, delta, expectedVersion)
}
