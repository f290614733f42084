// Package storetest holds behaviour checks shared by every ledger store backend.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty provider for one sub-test.
type Factory func(t *testing.T) portsrepo.RepositoryProvider

// NewAccount builds an ACTIVE account at version 1.
func NewAccount(owner string, balance int64) domain.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.Account{
		AccountID:    uuid.NewString(),
		OwnerID:      owner,
		Balance:      balance,
		CurrencyCode: "USD",
		Version:      1,
		Status:       domain.AccountActive,
		AuditFields:  domain.AuditFields{CreatedAt: now, CreatedBy: owner, LastUpdatedAt: now},
	}
}

// CompletedTransfer builds a finalized transfer record.
func CompletedTransfer(from, to string, amount int64, ref string) domain.TransactionRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := domain.TransactionRecord{
		TransactionID: uuid.NewString(),
		Kind:          domain.KindTransfer,
		FromAccountID: domain.StringPtr(from),
		ToAccountID:   domain.StringPtr(to),
		Amount:        amount,
		CurrencyCode:  "USD",
		ReferenceID:   ref,
		Status:        domain.TransactionPending,
		CreatedAt:     now,
	}
	rec.Complete(now)
	return rec
}

// Run exercises the repository ports against a backend.
func Run(t *testing.T, newProvider Factory) {
	t.Run("account round trip", func(t *testing.T) {
		ctx := context.Background()
		repos := newProvider(t)
		acc := NewAccount("owner-1", 500)
		require.NoError(t, repos.AccountRepo.SaveAccount(ctx, acc))
		assert.ErrorIs(t, repos.AccountRepo.SaveAccount(ctx, acc), apperrors.ErrDuplicate)

		got, err := repos.AccountRepo.FindAccountByID(ctx, acc.AccountID)
		require.NoError(t, err)
		assert.Equal(t, acc.Balance, got.Balance)
		assert.Equal(t, acc.Status, got.Status)
		assert.Equal(t, acc.Version, got.Version)

		owned, err := repos.AccountRepo.FindAccountsByOwner(ctx, "owner-1")
		require.NoError(t, err)
		assert.Len(t, owned, 1)

		_, err = repos.AccountRepo.FindAccountByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("conditional adjust classifies rejections", func(t *testing.T) {
		ctx := context.Background()
		repos := newProvider(t)
		acc := NewAccount("owner-1", 100)
		require.NoError(t, repos.AccountRepo.SaveAccount(ctx, acc))

		expect := func(delta, version int64, target error) {
			err := repos.TxManager.WithinTransaction(ctx, func(ctx context.Context, tx portsrepo.TxRepositories) error {
				_, err := tx.Accounts().ConditionalAdjust(ctx, acc.AccountID, delta, version)
				return err
			})
			assert.ErrorIs(t, err, target)
		}
		expect(-101, 1, apperrors.ErrInsufficientFunds)
		expect(-1, 7, apperrors.ErrVersionConflict)

		require.NoError(t, repos.TxManager.WithinTransaction(ctx, func(ctx context.Context, tx portsrepo.TxRepositories) error {
			_, err := tx.Accounts().UpdateAccountStatus(ctx, acc.AccountID, domain.AccountFrozen, 1)
			return err
		}))
		expect(1, 2, apperrors.ErrAccountNotActive)

		got, err := repos.AccountRepo.FindAccountByID(ctx, acc.AccountID)
		require.NoError(t, err)
		assert.Equal(t, int64(100), got.Balance)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("failed scope leaves nothing behind", func(t *testing.T) {
		ctx := context.Background()
		repos := newProvider(t)
		a, b := NewAccount("owner-1", 100), NewAccount("owner-2", 0)
		require.NoError(t, repos.AccountRepo.SaveAccount(ctx, a))
		require.NoError(t, repos.AccountRepo.SaveAccount(ctx, b))

		err := repos.TxManager.WithinTransaction(ctx, func(ctx context.Context, tx portsrepo.TxRepositories) error {
			locked, err := tx.Accounts().FindAccountsForUpdate(ctx, []string{b.AccountID, a.AccountID})
			require.NoError(t, err)
			require.Len(t, locked, 2)
			if _, err := tx.Accounts().ConditionalAdjust(ctx, a.AccountID, -40, 1); err != nil {
				return err
			}
			if _, err := tx.Accounts().ConditionalAdjust(ctx, b.AccountID, 40, 1); err != nil {
				return err
			}
			if err := tx.Journal().AppendRecord(ctx, CompletedTransfer(a.AccountID, b.AccountID, 40, "ref-x")); err != nil {
				return err
			}
			return fmt.Errorf("abort")
		})
		require.EqualError(t, err, "abort")

		got, err := repos.AccountRepo.FindAccountByID(ctx, a.AccountID)
		require.NoError(t, err)
		assert.Equal(t, int64(100), got.Balance)
		_, err = repos.JournalRepo.FindRecordByReference(ctx, "ref-x")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("lock of missing account fails", func(t *testing.T) {
		ctx := context.Background()
		repos := newProvider(t)
		err := repos.TxManager.WithinTransaction(ctx, func(ctx context.Context, tx portsrepo.TxRepositories) error {
			_, err := tx.Accounts().FindAccountsForUpdate(ctx, []string{uuid.NewString()})
			return err
		})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("journal enforces reference uniqueness and pages newest first", func(t *testing.T) {
		ctx := context.Background()
		repos := newProvider(t)
		a, b := NewAccount("owner-1", 100), NewAccount("owner-2", 0)
		require.NoError(t, repos.AccountRepo.SaveAccount(ctx, a))
		require.NoError(t, repos.AccountRepo.SaveAccount(ctx, b))

		for i := 0; i < 3; i++ {
			rec := CompletedTransfer(a.AccountID, b.AccountID, int64(i+1), fmt.Sprintf("ref-%d", i))
			require.NoError(t, repos.TxManager.WithinTransaction(ctx, func(ctx context.Context, tx portsrepo.TxRepositories) error {
				return tx.Journal().AppendRecord(ctx, rec)
			}))
		}

		dup := CompletedTransfer(a.AccountID, b.AccountID, 9, "ref-0")
		err := repos.TxManager.WithinTransaction(ctx, func(ctx context.Context, tx portsrepo.TxRepositories) error {
			return tx.Journal().AppendRecord(ctx, dup)
		})
		assert.ErrorIs(t, err, apperrors.ErrDuplicateReference)

		stored, err := repos.JournalRepo.FindRecordByReference(ctx, "ref-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), stored.Amount)
		assert.Equal(t, domain.TransactionCompleted, stored.Status)
		require.NotNil(t, stored.CompletedAt)

		byID, err := repos.JournalRepo.FindRecordByID(ctx, stored.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, stored.ReferenceID, byID.ReferenceID)

		page, next, err := repos.JournalRepo.ListRecordsByAccount(ctx, a.AccountID, 2, nil)
		require.NoError(t, err)
		require.Len(t, page, 2)
		require.NotNil(t, next)
		assert.Equal(t, "ref-2", page[0].ReferenceID)
		assert.Equal(t, "ref-1", page[1].ReferenceID)

		page, next, err = repos.JournalRepo.ListRecordsByAccount(ctx, b.AccountID, 2, next)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "ref-0", page[0].ReferenceID)
		assert.Nil(t, next)
	})

	t.Run("journal summary groups by kind, status and currency", func(t *testing.T) {
		ctx := context.Background()
		repos := newProvider(t)

		empty, err := repos.JournalRepo.SummarizeRecords(ctx)
		require.NoError(t, err)
		assert.Empty(t, empty)

		a, b := NewAccount("owner-1", 100), NewAccount("owner-2", 0)
		require.NoError(t, repos.AccountRepo.SaveAccount(ctx, a))
		require.NoError(t, repos.AccountRepo.SaveAccount(ctx, b))

		failed := CompletedTransfer(a.AccountID, b.AccountID, 500, "sum-failed")
		failed.Status = domain.TransactionFailed
		failed.FailureReason = domain.FailureInsufficientFunds
		records := []domain.TransactionRecord{
			CompletedTransfer(a.AccountID, b.AccountID, 10, "sum-1"),
			CompletedTransfer(b.AccountID, a.AccountID, 15, "sum-2"),
			failed,
		}
		for _, rec := range records {
			require.NoError(t, repos.TxManager.WithinTransaction(ctx, func(ctx context.Context, tx portsrepo.TxRepositories) error {
				return tx.Journal().AppendRecord(ctx, rec)
			}))
		}

		buckets, err := repos.JournalRepo.SummarizeRecords(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []domain.StatsBucket{
			{Kind: domain.KindTransfer, Status: domain.TransactionCompleted, CurrencyCode: "USD", Count: 2, Volume: 25},
			{Kind: domain.KindTransfer, Status: domain.TransactionFailed, CurrencyCode: "USD", Count: 1, Volume: 500},
		}, buckets)
	})
}
