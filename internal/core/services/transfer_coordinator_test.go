package services_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	"github.com/SscSPs/transfer_engine/internal/concurrency"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
	"github.com/SscSPs/transfer_engine/internal/core/services"
	"github.com/SscSPs/transfer_engine/internal/repositories/memory"
)

type TransferCoordinatorTestSuite struct {
	suite.Suite
	ctx       context.Context
	store     *memory.Store
	locker    *concurrency.LocalLocker
	publisher *MockEventPublisher
	metrics   *recordingMetrics
	svc       portssvc.TransferSvcFacade
}

func (suite *TransferCoordinatorTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = memory.NewStore()
	suite.locker = concurrency.NewLocalLocker()
	suite.publisher = new(MockEventPublisher)
	suite.publisher.On("Publish", mock.Anything, mock.Anything).Maybe()
	suite.metrics = newRecordingMetrics()
	suite.svc = suite.newCoordinator(suite.store)
}

func (suite *TransferCoordinatorTestSuite) newCoordinator(tm portsrepo.TransactionManager, opts ...services.CoordinatorOption) portssvc.TransferSvcFacade {
	guard, err := services.NewIdempotencyGuard(suite.store, 128)
	suite.Require().NoError(err)
	base := []services.CoordinatorOption{
		services.WithLocker(suite.locker),
		services.WithEventPublisher(suite.publisher),
		services.WithMetrics(suite.metrics),
		services.WithRetryPolicy(fastRetry()),
		services.WithLockTimeout(200 * time.Millisecond),
	}
	return services.NewTransferCoordinator(tm, guard, append(base, opts...)...)
}

func (suite *TransferCoordinatorTestSuite) transfer(from, to string, amount int64, ref string) (*domain.TransactionRecord, error) {
	return suite.svc.Execute(suite.ctx, domain.TransferRequest{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        amount,
		ReferenceID:   ref,
	})
}

func (suite *TransferCoordinatorTestSuite) assertNoRecord(ref string) {
	_, err := suite.store.FindRecordByReference(suite.ctx, ref)
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *TransferCoordinatorTestSuite) TestTransfer_MovesFunds() {
	a := seedAccount(suite.T(), suite.store, "alice", 1000)
	b := seedAccount(suite.T(), suite.store, "bob", 500)

	rec, err := suite.transfer(a, b, 300, "r1")
	suite.Require().NoError(err)
	suite.Equal(domain.TransactionCompleted, rec.Status)
	suite.Equal(int64(300), rec.Amount)
	suite.Equal(a, domain.StringValue(rec.FromAccountID))
	suite.Equal(b, domain.StringValue(rec.ToAccountID))
	suite.Equal("USD", rec.CurrencyCode)
	suite.NotNil(rec.CompletedAt)

	suite.Equal(int64(700), balanceOf(suite.T(), suite.store, a))
	suite.Equal(int64(800), balanceOf(suite.T(), suite.store, b))

	accA, _ := suite.store.FindAccountByID(suite.ctx, a)
	suite.Equal(int64(2), accA.Version)

	stored, err := suite.store.FindRecordByReference(suite.ctx, "r1")
	suite.Require().NoError(err)
	suite.Equal(rec.TransactionID, stored.TransactionID)
	suite.Equal(1, suite.metrics.outcome(services.OutcomeCompleted))
	suite.publisher.AssertCalled(suite.T(), "Publish", mock.Anything, mock.MatchedBy(func(ev domain.TransferCompletedEvent) bool {
		return ev.TransactionID == rec.TransactionID && ev.Amount == 300
	}))
}

func (suite *TransferCoordinatorTestSuite) TestTransfer_ResubmitReturnsSameRecord() {
	a := seedAccount(suite.T(), suite.store, "alice", 1000)
	b := seedAccount(suite.T(), suite.store, "bob", 500)

	first, err := suite.transfer(a, b, 300, "r1")
	suite.Require().NoError(err)
	second, err := suite.transfer(a, b, 300, "r1")
	suite.Require().NoError(err)

	suite.Equal(first.TransactionID, second.TransactionID)
	suite.Equal(int64(700), balanceOf(suite.T(), suite.store, a))
	suite.Equal(int64(800), balanceOf(suite.T(), suite.store, b))
	suite.Equal(1, suite.metrics.outcome(services.OutcomeReplayed))
	suite.publisher.AssertNumberOfCalls(suite.T(), "Publish", 1)
}

func (suite *TransferCoordinatorTestSuite) TestTransfer_ReplayFromJournalAfterRestart() {
	a := seedAccount(suite.T(), suite.store, "alice", 1000)
	b := seedAccount(suite.T(), suite.store, "bob", 0)

	first, err := suite.transfer(a, b, 100, "restart")
	suite.Require().NoError(err)

	// A fresh coordinator has an empty cache and must consult the journal.
	fresh := suite.newCoordinator(suite.store)
	again, err := fresh.Execute(suite.ctx, domain.TransferRequest{FromAccountID: a, ToAccountID: b, Amount: 100, ReferenceID: "restart"})
	suite.Require().NoError(err)
	suite.Equal(first.TransactionID, again.TransactionID)
	suite.Equal(int64(900), balanceOf(suite.T(), suite.store, a))
}

func (suite *TransferCoordinatorTestSuite) TestTransfer_InsufficientFundsJournalsFailure() {
	a := seedAccount(suite.T(), suite.store, "alice", 100)
	b := seedAccount(suite.T(), suite.store, "bob", 0)

	rec, err := suite.transfer(a, b, 500, "r2")
	suite.Require().ErrorIs(err, apperrors.ErrInsufficientFunds)
	suite.Require().NotNil(rec)
	suite.Equal(domain.TransactionFailed, rec.Status)
	suite.Equal(domain.FailureInsufficientFunds, rec.FailureReason)

	suite.Equal(int64(100), balanceOf(suite.T(), suite.store, a))
	suite.Equal(int64(0), balanceOf(suite.T(), suite.store, b))

	stored, err := suite.store.FindRecordByReference(suite.ctx, "r2")
	suite.Require().NoError(err)
	suite.Equal(domain.TransactionFailed, stored.Status)
	suite.publisher.AssertNotCalled(suite.T(), "Publish", mock.Anything, mock.Anything)

	// The failure is replayed with the same classification.
	replayed, err := suite.transfer(a, b, 500, "r2")
	suite.ErrorIs(err, apperrors.ErrInsufficientFunds)
	suite.Equal(rec.TransactionID, replayed.TransactionID)
}

func (suite *TransferCoordinatorTestSuite) TestTransfer_ValidationRejectsWithoutRecord() {
	a := seedAccount(suite.T(), suite.store, "alice", 100)
	b := seedAccount(suite.T(), suite.store, "bob", 0)

	cases := []struct {
		name string
		req  domain.TransferRequest
	}{
		{"self transfer", domain.TransferRequest{FromAccountID: a, ToAccountID: a, Amount: 50, ReferenceID: "r3"}},
		{"zero amount", domain.TransferRequest{FromAccountID: a, ToAccountID: b, Amount: 0, ReferenceID: "r3"}},
		{"negative amount", domain.TransferRequest{FromAccountID: a, ToAccountID: b, Amount: -5, ReferenceID: "r3"}},
		{"missing reference", domain.TransferRequest{FromAccountID: a, ToAccountID: b, Amount: 5}},
		{"missing source", domain.TransferRequest{ToAccountID: b, Amount: 5, ReferenceID: "r3"}},
	}
	for _, tc := range cases {
		suite.Run(tc.name, func() {
			rec, err := suite.svc.Execute(suite.ctx, tc.req)
			suite.ErrorIs(err, apperrors.ErrValidation)
			suite.Nil(rec)
		})
	}
	suite.assertNoRecord("r3")
	suite.Equal(int64(100), balanceOf(suite.T(), suite.store, a))
}

func (suite *TransferCoordinatorTestSuite) TestTransfer_UnknownAccount() {
	a := seedAccount(suite.T(), suite.store, "alice", 100)

	rec, err := suite.transfer(a, "missing", 10, "unknown")
	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.Nil(rec)
	suite.assertNoRecord("unknown")
	suite.Equal(int64(100), balanceOf(suite.T(), suite.store, a))
	suite.Equal(1, suite.metrics.outcome(services.OutcomeRejected))
}

func (suite *TransferCoordinatorTestSuite) TestTransfer_InactiveAccountRejected() {
	a := seedAccount(suite.T(), suite.store, "alice", 100)
	b := seedAccount(suite.T(), suite.store, "bob", 0)
	accounts := services.NewAccountService(suite.store, suite.store, services.WithAccountLocker(suite.locker))
	_, err := accounts.ChangeStatus(suite.ctx, b, domain.AccountFrozen)
	suite.Require().NoError(err)

	rec, err := suite.transfer(a, b, 10, "frozen")
	suite.ErrorIs(err, apperrors.ErrAccountNotActive)
	suite.Nil(rec)
	suite.assertNoRecord("frozen")
	suite.Equal(int64(100), balanceOf(suite.T(), suite.store, a))
}

func (suite *TransferCoordinatorTestSuite) TestTransfer_CurrencyMismatch() {
	a := seedAccount(suite.T(), suite.store, "alice", 100)
	eur := memoryAccount("bob", 0, "EUR")
	suite.Require().NoError(suite.store.SaveAccount(suite.ctx, eur))

	_, err := suite.transfer(a, eur.AccountID, 10, "fx")
	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.assertNoRecord("fx")
}

func (suite *TransferCoordinatorTestSuite) TestTransfer_LockTimeoutLeavesNoTrace() {
	a := seedAccount(suite.T(), suite.store, "alice", 100)
	b := seedAccount(suite.T(), suite.store, "bob", 0)

	release, err := suite.locker.Acquire(suite.ctx, b)
	suite.Require().NoError(err)
	defer release()

	rec, err := suite.transfer(a, b, 10, "busy")
	suite.ErrorIs(err, apperrors.ErrLockTimeout)
	suite.True(apperrors.IsRetryable(err))
	suite.Nil(rec)
	suite.assertNoRecord("busy")
	suite.Equal(int64(100), balanceOf(suite.T(), suite.store, a))
}

func (suite *TransferCoordinatorTestSuite) TestTransfer_RetriesVersionConflicts() {
	a := seedAccount(suite.T(), suite.store, "alice", 100)
	b := seedAccount(suite.T(), suite.store, "bob", 0)
	tm := &conflictingTxManager{inner: suite.store, remaining: 2, conflict: apperrors.ErrVersionConflict}
	svc := suite.newCoordinator(tm)

	rec, err := svc.Execute(suite.ctx, domain.TransferRequest{FromAccountID: a, ToAccountID: b, Amount: 40, ReferenceID: "retry"})
	suite.Require().NoError(err)
	suite.Equal(domain.TransactionCompleted, rec.Status)
	suite.Equal(3, tm.calls)
	suite.Equal(2, suite.metrics.retries)
	suite.Equal(int64(60), balanceOf(suite.T(), suite.store, a))
	suite.Equal(int64(40), balanceOf(suite.T(), suite.store, b))
}

func (suite *TransferCoordinatorTestSuite) TestTransfer_ExhaustedRetriesSurfaceConflict() {
	a := seedAccount(suite.T(), suite.store, "alice", 100)
	b := seedAccount(suite.T(), suite.store, "bob", 0)
	tm := &conflictingTxManager{inner: suite.store, remaining: 100, conflict: apperrors.ErrVersionConflict}
	svc := suite.newCoordinator(tm)

	rec, err := svc.Execute(suite.ctx, domain.TransferRequest{FromAccountID: a, ToAccountID: b, Amount: 40, ReferenceID: "exhausted"})
	suite.ErrorIs(err, apperrors.ErrConcurrencyConflict)
	suite.True(apperrors.IsRetryable(err))
	suite.Nil(rec)
	suite.Equal(5, tm.calls)
	suite.assertNoRecord("exhausted")
	suite.Equal(int64(100), balanceOf(suite.T(), suite.store, a))
}

func (suite *TransferCoordinatorTestSuite) TestTransfer_CreditFailureCompensatesAndJournals() {
	a := seedAccount(suite.T(), suite.store, "alice", 100)
	b := seedAccount(suite.T(), suite.store, "bob", 0)
	tm := &faultyTxManager{inner: suite.store, adjust: func(id string, delta int64) error {
		if id == b {
			return fmt.Errorf("%w: account %s", apperrors.ErrAccountNotActive, id)
		}
		return nil
	}}
	svc := suite.newCoordinator(tm)

	rec, err := svc.Execute(suite.ctx, domain.TransferRequest{FromAccountID: a, ToAccountID: b, Amount: 40, ReferenceID: "compensate"})
	suite.ErrorIs(err, apperrors.ErrAccountNotActive)
	suite.Require().NotNil(rec)
	suite.Equal(domain.TransactionFailed, rec.Status)
	suite.Equal(domain.FailureAccountNotActive, rec.FailureReason)

	suite.Equal(int64(100), balanceOf(suite.T(), suite.store, a))
	suite.Equal(int64(0), balanceOf(suite.T(), suite.store, b))
	stored, err := suite.store.FindRecordByReference(suite.ctx, "compensate")
	suite.Require().NoError(err)
	suite.Equal(domain.TransactionFailed, stored.Status)
}

func (suite *TransferCoordinatorTestSuite) TestTransfer_InfrastructureFailureRollsBack() {
	a := seedAccount(suite.T(), suite.store, "alice", 100)
	b := seedAccount(suite.T(), suite.store, "bob", 0)
	tm := &faultyTxManager{inner: suite.store, adjust: func(id string, delta int64) error {
		if id == b {
			return apperrors.NewAppError(500, "disk on fire", nil)
		}
		return nil
	}}
	svc := suite.newCoordinator(tm)

	rec, err := svc.Execute(suite.ctx, domain.TransferRequest{FromAccountID: a, ToAccountID: b, Amount: 40, ReferenceID: "infra"})
	suite.ErrorIs(err, apperrors.ErrPersistence)
	suite.Nil(rec)
	suite.assertNoRecord("infra")
	suite.Equal(int64(100), balanceOf(suite.T(), suite.store, a))
}

func (suite *TransferCoordinatorTestSuite) TestTransfer_ReusedReferenceWithDifferentPayload() {
	a := seedAccount(suite.T(), suite.store, "alice", 100)
	b := seedAccount(suite.T(), suite.store, "bob", 0)

	first, err := suite.transfer(a, b, 10, "reuse")
	suite.Require().NoError(err)
	second, err := suite.transfer(a, b, 99, "reuse")
	suite.Require().NoError(err)
	suite.Equal(first.TransactionID, second.TransactionID)
	suite.Equal(int64(10), second.Amount)
	suite.Equal(int64(90), balanceOf(suite.T(), suite.store, a))
}

func (suite *TransferCoordinatorTestSuite) TestDepositAndWithdraw() {
	a := seedAccount(suite.T(), suite.store, "alice", 0)

	dep, err := suite.svc.Deposit(suite.ctx, domain.FundsRequest{AccountID: a, Amount: 250, ReferenceID: "dep-1"})
	suite.Require().NoError(err)
	suite.Equal(domain.KindDeposit, dep.Kind)
	suite.Nil(dep.FromAccountID)
	suite.Equal(int64(250), balanceOf(suite.T(), suite.store, a))

	wd, err := suite.svc.Withdraw(suite.ctx, domain.FundsRequest{AccountID: a, Amount: 100, ReferenceID: "wd-1"})
	suite.Require().NoError(err)
	suite.Equal(domain.KindWithdrawal, wd.Kind)
	suite.Nil(wd.ToAccountID)
	suite.Equal(int64(150), balanceOf(suite.T(), suite.store, a))

	failed, err := suite.svc.Withdraw(suite.ctx, domain.FundsRequest{AccountID: a, Amount: 1000, ReferenceID: "wd-2"})
	suite.ErrorIs(err, apperrors.ErrInsufficientFunds)
	suite.Require().NotNil(failed)
	suite.Equal(domain.TransactionFailed, failed.Status)
	suite.Equal(int64(150), balanceOf(suite.T(), suite.store, a))

	_, err = suite.svc.Deposit(suite.ctx, domain.FundsRequest{AccountID: a, Amount: 0, ReferenceID: "dep-2"})
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *TransferCoordinatorTestSuite) TestConcurrentSameReferenceAppliesOnce() {
	a := seedAccount(suite.T(), suite.store, "alice", 1000)
	b := seedAccount(suite.T(), suite.store, "bob", 0)

	const callers = 25
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := suite.transfer(a, b, 100, "same-ref")
			if assert.NoError(suite.T(), err) {
				ids[i] = rec.TransactionID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		suite.Equal(ids[0], id)
	}
	suite.Equal(int64(900), balanceOf(suite.T(), suite.store, a))
	suite.Equal(int64(100), balanceOf(suite.T(), suite.store, b))
	suite.publisher.AssertNumberOfCalls(suite.T(), "Publish", 1)
}

func (suite *TransferCoordinatorTestSuite) TestOppositeTransfersDoNotDeadlock() {
	for round := 0; round < 20; round++ {
		suite.SetupTest()
		suite.svc = suite.newCoordinator(suite.store, services.WithLockTimeout(5*time.Second))
		a := seedAccount(suite.T(), suite.store, "alice", 700)
		b := seedAccount(suite.T(), suite.store, "bob", 800)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			time.Sleep(time.Duration(rand.IntN(200)) * time.Microsecond)
			_, errs[0] = suite.transfer(a, b, 200, fmt.Sprintf("r4-%d", round))
		}()
		go func() {
			defer wg.Done()
			time.Sleep(time.Duration(rand.IntN(200)) * time.Microsecond)
			_, errs[1] = suite.transfer(b, a, 100, fmt.Sprintf("r5-%d", round))
		}()
		wg.Wait()

		suite.Require().NoError(errs[0])
		suite.Require().NoError(errs[1])
		suite.Equal(int64(600), balanceOf(suite.T(), suite.store, a))
		suite.Equal(int64(900), balanceOf(suite.T(), suite.store, b))
	}
}

func (suite *TransferCoordinatorTestSuite) TestConservationUnderLoad() {
	suite.svc = suite.newCoordinator(suite.store, services.WithLockTimeout(5*time.Second))
	const accounts = 5
	ids := make([]string, accounts)
	for i := range ids {
		ids[i] = seedAccount(suite.T(), suite.store, "owner", 1000)
	}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := ids[rand.IntN(accounts)]
			to := ids[rand.IntN(accounts)]
			_, err := suite.transfer(from, to, int64(rand.IntN(400)+1), fmt.Sprintf("load-%d", i))
			if from == to {
				assert.ErrorIs(suite.T(), err, apperrors.ErrValidation)
				return
			}
			if err != nil {
				assert.ErrorIs(suite.T(), err, apperrors.ErrInsufficientFunds)
			}
		}(i)
	}
	wg.Wait()

	var total int64
	for _, id := range ids {
		bal := balanceOf(suite.T(), suite.store, id)
		suite.GreaterOrEqual(bal, int64(0))
		total += bal
	}
	suite.Equal(int64(accounts*1000), total)
}

func (suite *TransferCoordinatorTestSuite) TestWaitingCallerCancellationDoesNotAbortWinner() {
	a := seedAccount(suite.T(), suite.store, "alice", 100)
	b := seedAccount(suite.T(), suite.store, "bob", 0)
	svc := suite.newCoordinator(suite.store, services.WithLockTimeout(2*time.Second))

	release, err := suite.locker.Acquire(suite.ctx, a)
	suite.Require().NoError(err)

	winnerDone := make(chan error, 1)
	go func() {
		_, err := svc.Execute(suite.ctx, domain.TransferRequest{FromAccountID: a, ToAccountID: b, Amount: 10, ReferenceID: "wait"})
		winnerDone <- err
	}()

	waitCtx, cancel := context.WithTimeout(suite.ctx, 30*time.Millisecond)
	defer cancel()
	_, err = svc.Execute(waitCtx, domain.TransferRequest{FromAccountID: a, ToAccountID: b, Amount: 10, ReferenceID: "wait"})
	suite.ErrorIs(err, context.DeadlineExceeded)

	release()
	suite.Require().NoError(<-winnerDone)
	suite.Equal(int64(90), balanceOf(suite.T(), suite.store, a))
}

func TestTransferCoordinatorTestSuite(t *testing.T) {
	suite.Run(t, new(TransferCoordinatorTestSuite))
}

func memoryAccount(owner string, balance int64, currency string) domain.Account {
	now := time.Now().UTC()
	return domain.Account{
		AccountID:    fmt.Sprintf("%s-%s-%d", owner, currency, now.UnixNano()),
		OwnerID:      owner,
		Balance:      balance,
		CurrencyCode: currency,
		Version:      1,
		Status:       domain.AccountActive,
		AuditFields:  domain.AuditFields{CreatedAt: now, CreatedBy: owner, LastUpdatedAt: now},
	}
}

func TestTransferCoordinator_DefaultsWork(t *testing.T) {
	store := memory.NewStore()
	a := seedAccount(t, store, "alice", 10)
	b := seedAccount(t, store, "bob", 0)
	guard, err := services.NewIdempotencyGuard(store, 0)
	require.NoError(t, err)

	svc := services.NewTransferCoordinator(store, guard)
	rec, err := svc.Execute(context.Background(), domain.TransferRequest{FromAccountID: a, ToAccountID: b, Amount: 10, ReferenceID: "defaults"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionCompleted, rec.Status)
	assert.Equal(t, int64(0), balanceOf(t, store, a))
}
