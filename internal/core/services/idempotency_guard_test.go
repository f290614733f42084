package services_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	"github.com/SscSPs/transfer_engine/internal/core/services"
	"github.com/SscSPs/transfer_engine/internal/repositories/storetest"
)

// MockJournalReader is a mock type for the JournalReader interface
type MockJournalReader struct {
	mock.Mock
}

func (m *MockJournalReader) FindRecordByID(ctx context.Context, transactionID string) (*domain.TransactionRecord, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransactionRecord), args.Error(1)
}

func (m *MockJournalReader) FindRecordByReference(ctx context.Context, referenceID string) (*domain.TransactionRecord, error) {
	args := m.Called(ctx, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransactionRecord), args.Error(1)
}

func (m *MockJournalReader) ListRecordsByAccount(ctx context.Context, accountID string, limit int, nextToken *string) ([]domain.TransactionRecord, *string, error) {
	args := m.Called(ctx, accountID, limit, nextToken)
	var recs []domain.TransactionRecord
	if args.Get(0) != nil {
		recs = args.Get(0).([]domain.TransactionRecord)
	}
	var token *string
	if args.Get(1) != nil {
		token = args.Get(1).(*string)
	}
	return recs, token, args.Error(2)
}

func TestIdempotencyGuard_LookupMissReturnsNil(t *testing.T) {
	journal := new(MockJournalReader)
	journal.On("FindRecordByReference", mock.Anything, "ref").Return(nil, apperrors.ErrNotFound)
	guard, err := services.NewIdempotencyGuard(journal, 8)
	require.NoError(t, err)

	rec, err := guard.Lookup(context.Background(), "ref")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestIdempotencyGuard_LookupCachesFinalRecords(t *testing.T) {
	stored := storetest.CompletedTransfer("a", "b", 10, "ref")
	journal := new(MockJournalReader)
	journal.On("FindRecordByReference", mock.Anything, "ref").Return(&stored, nil).Once()
	guard, err := services.NewIdempotencyGuard(journal, 8)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec, err := guard.Lookup(context.Background(), "ref")
		require.NoError(t, err)
		assert.Equal(t, stored.TransactionID, rec.TransactionID)
	}
	journal.AssertNumberOfCalls(t, "FindRecordByReference", 1)
}

func TestIdempotencyGuard_LookupPropagatesStorageErrors(t *testing.T) {
	journal := new(MockJournalReader)
	boom := apperrors.NewAppError(500, "query failed", errors.New("conn reset"))
	journal.On("FindRecordByReference", mock.Anything, "ref").Return(nil, boom)
	guard, err := services.NewIdempotencyGuard(journal, 8)
	require.NoError(t, err)

	_, err = guard.Lookup(context.Background(), "ref")
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
}

func TestIdempotencyGuard_RememberSkipsNonFinal(t *testing.T) {
	journal := new(MockJournalReader)
	journal.On("FindRecordByReference", mock.Anything, "pending").Return(nil, apperrors.ErrNotFound)
	guard, err := services.NewIdempotencyGuard(journal, 8)
	require.NoError(t, err)

	guard.Remember(domain.TransactionRecord{ReferenceID: "pending", Status: domain.TransactionPending})
	rec, err := guard.Lookup(context.Background(), "pending")
	require.NoError(t, err)
	assert.Nil(t, rec)

	done := storetest.CompletedTransfer("a", "b", 1, "done")
	guard.Remember(done)
	rec, err = guard.Lookup(context.Background(), "done")
	require.NoError(t, err)
	assert.Equal(t, done.TransactionID, rec.TransactionID)
	journal.AssertNotCalled(t, "FindRecordByReference", mock.Anything, "done")
}

func TestIdempotencyGuard_ReserveSharesOneExecution(t *testing.T) {
	guard, err := services.NewIdempotencyGuard(new(MockJournalReader), 8)
	require.NoError(t, err)

	var runs atomic.Int32
	gate := make(chan struct{})
	stored := storetest.CompletedTransfer("a", "b", 5, "shared")

	const callers = 10
	results := make([]*domain.TransactionRecord, callers)
	var wg sync.WaitGroup
	var started sync.WaitGroup
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			rec, err := guard.Reserve(context.Background(), "shared", func(context.Context) (*domain.TransactionRecord, error) {
				runs.Add(1)
				<-gate
				return &stored, nil
			})
			assert.NoError(t, err)
			results[i] = rec
		}(i)
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
	for _, rec := range results {
		require.NotNil(t, rec)
		assert.Equal(t, stored.TransactionID, rec.TransactionID)
	}
}

func TestIdempotencyGuard_ReserveWaiterCancellation(t *testing.T) {
	guard, err := services.NewIdempotencyGuard(new(MockJournalReader), 8)
	require.NoError(t, err)

	gate := make(chan struct{})
	finished := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	var workErr error

	go func() {
		defer close(finished)
		_, workErr = guard.Reserve(context.Background(), "slow", func(work context.Context) (*domain.TransactionRecord, error) {
			<-gate
			return nil, work.Err()
		})
	}()
	time.Sleep(30 * time.Millisecond)

	cancel()
	_, err = guard.Reserve(ctx, "slow", func(context.Context) (*domain.TransactionRecord, error) {
		t.Error("a second execution must not start while the first is in flight")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	close(gate)
	<-finished
	assert.NoError(t, workErr)
}

func TestIdempotencyGuard_ReserveDetachesWork(t *testing.T) {
	guard, err := services.NewIdempotencyGuard(new(MockJournalReader), 8)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	workCtx := make(chan context.Context, 1)
	_, _ = guard.Reserve(ctx, "detached", func(work context.Context) (*domain.TransactionRecord, error) {
		workCtx <- work
		return nil, nil
	})
	assert.NoError(t, (<-workCtx).Err())
}
