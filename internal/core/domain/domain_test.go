package domain_test

import (
	"testing"
	"time"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestTransferState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from domain.TransferState
		to   domain.TransferState
		want bool
	}{
		{"received to validated", domain.StateReceived, domain.StateValidated, true},
		{"validated to locked", domain.StateValidated, domain.StateLocked, true},
		{"locked to debited", domain.StateLocked, domain.StateDebited, true},
		{"debited to credited", domain.StateDebited, domain.StateCredited, true},
		{"credited to journaled", domain.StateCredited, domain.StateJournaled, true},
		{"journaled to completed", domain.StateJournaled, domain.StateCompleted, true},
		{"skipping a step", domain.StateLocked, domain.StateCredited, false},
		{"going backwards", domain.StateDebited, domain.StateLocked, false},
		{"failed from debited", domain.StateDebited, domain.StateFailed, true},
		{"failed from received", domain.StateReceived, domain.StateFailed, true},
		{"completed is terminal", domain.StateCompleted, domain.StateFailed, false},
		{"failed is terminal", domain.StateFailed, domain.StateValidated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestAccountStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, domain.AccountActive.CanTransitionTo(domain.AccountFrozen))
	assert.True(t, domain.AccountFrozen.CanTransitionTo(domain.AccountActive))
	assert.True(t, domain.AccountFrozen.CanTransitionTo(domain.AccountClosed))
	assert.False(t, domain.AccountClosed.CanTransitionTo(domain.AccountActive))
	assert.False(t, domain.AccountActive.CanTransitionTo(domain.AccountActive))
	assert.False(t, domain.AccountActive.CanTransitionTo(domain.AccountStatus("DELETED")))
}

func TestTransactionRecord_Finalize(t *testing.T) {
	now := time.Now()
	rec := domain.TransactionRecord{Status: domain.TransactionPending}

	rec.Fail(domain.FailureInsufficientFunds, now)
	assert.Equal(t, domain.TransactionFailed, rec.Status)
	assert.Equal(t, domain.FailureInsufficientFunds, rec.FailureReason)
	assert.True(t, rec.IsFinal())

	// final records are immutable
	rec.Complete(now.Add(time.Second))
	assert.Equal(t, domain.TransactionFailed, rec.Status)
	assert.Equal(t, now, *rec.CompletedAt)
}

func TestTransactionRecord_Involves(t *testing.T) {
	rec := domain.TransactionRecord{
		FromAccountID: domain.StringPtr("a"),
		ToAccountID:   domain.StringPtr("b"),
	}
	assert.True(t, rec.Involves("a"))
	assert.True(t, rec.Involves("b"))
	assert.False(t, rec.Involves("c"))

	deposit := domain.TransactionRecord{ToAccountID: domain.StringPtr("b")}
	assert.False(t, deposit.Involves(""))
}

func TestNewTransferCompletedEvent(t *testing.T) {
	at := time.Now()
	rec := domain.TransactionRecord{
		TransactionID: "tx-1",
		Kind:          domain.KindTransfer,
		FromAccountID: domain.StringPtr("a"),
		ToAccountID:   domain.StringPtr("b"),
		Amount:        3000,
		CurrencyCode:  "USD",
		ReferenceID:   "ref-1",
		CompletedAt:   &at,
	}
	ev := domain.NewTransferCompletedEvent(rec)
	assert.Equal(t, "tx-1", ev.TransactionID)
	assert.Equal(t, int64(3000), ev.Amount)
	assert.Equal(t, at, ev.CompletedAt)
}

func TestNewTransactionStats(t *testing.T) {
	stats := domain.NewTransactionStats([]domain.StatsBucket{
		{Kind: domain.KindWithdrawal, Status: domain.TransactionCompleted, CurrencyCode: "USD", Count: 1, Volume: 40},
		{Kind: domain.KindTransfer, Status: domain.TransactionFailed, CurrencyCode: "USD", Count: 2, Volume: 900},
		{Kind: domain.KindTransfer, Status: domain.TransactionCompleted, CurrencyCode: "EUR", Count: 3, Volume: 120},
		{Kind: domain.KindTransfer, Status: domain.TransactionCompleted, CurrencyCode: "USD", Count: 4, Volume: 75},
	})

	assert.Equal(t, int64(10), stats.TotalCount)
	assert.Equal(t, map[string]int64{"EUR": 120, "USD": 115}, stats.CompletedVolume)
	assert.Equal(t, []string{"TRANSFER/COMPLETED/EUR", "TRANSFER/COMPLETED/USD", "TRANSFER/FAILED/USD", "WITHDRAWAL/COMPLETED/USD"},
		bucketKeys(stats.Breakdown))
}

func bucketKeys(buckets []domain.StatsBucket) []string {
	keys := make([]string, 0, len(buckets))
	for _, b := range buckets {
		keys = append(keys, string(b.Kind)+"/"+string(b.Status)+"/"+b.CurrencyCode)
	}
	return keys
}
