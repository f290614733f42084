package domain

import (
	"cmp"
	"slices"
	"time"
)

// TransactionKind distinguishes the movements recorded in the journal.
type TransactionKind string

const (
	KindTransfer   TransactionKind = "TRANSFER"
	KindDeposit    TransactionKind = "DEPOSIT"
	KindWithdrawal TransactionKind = "WITHDRAWAL"
)

// TransactionStatus is the status of a journal record.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
)

// FailureReason classifies a FAILED record.
type FailureReason string

const (
	FailureInsufficientFunds FailureReason = "InsufficientFunds"
	FailureAccountNotActive  FailureReason = "AccountNotActive"
	FailureAccountNotFound   FailureReason = "AccountNotFound"
)

// TransactionRecord is the immutable audit entry for one movement of value.
// FromAccountID is nil for deposits and ToAccountID is nil for withdrawals.
type TransactionRecord struct {
	TransactionID string            `json:"transactionID"`
	Kind          TransactionKind   `json:"kind"`
	FromAccountID *string           `json:"fromAccountID,omitempty"`
	ToAccountID   *string           `json:"toAccountID,omitempty"`
	Amount        int64             `json:"amount"`
	CurrencyCode  string            `json:"currencyCode"`
	ReferenceID   string            `json:"referenceID"`
	Description   string            `json:"description,omitempty"`
	Status        TransactionStatus `json:"status"`
	FailureReason FailureReason     `json:"failureReason,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
	// Sequence is assigned by the store on append and orders records within the journal.
	Sequence int64 `json:"sequence"`
}

// IsFinal reports whether the record reached COMPLETED or FAILED.
func (r TransactionRecord) IsFinal() bool {
	return r.Status == TransactionCompleted || r.Status == TransactionFailed
}

// Involves reports whether accountID is either side of the record.
func (r TransactionRecord) Involves(accountID string) bool {
	if accountID == "" {
		return false
	}
	return StringValue(r.FromAccountID) == accountID || StringValue(r.ToAccountID) == accountID
}

// Complete finalizes a pending record as COMPLETED.
func (r *TransactionRecord) Complete(at time.Time) {
	if r.IsFinal() {
		return
	}
	r.Status = TransactionCompleted
	r.FailureReason = ""
	r.CompletedAt = &at
}

// Fail finalizes a pending record as FAILED with reason.
func (r *TransactionRecord) Fail(reason FailureReason, at time.Time) {
	if r.IsFinal() {
		return
	}
	r.Status = TransactionFailed
	r.FailureReason = reason
	r.CompletedAt = &at
}

// TransactionPage is one page of an account history, newest first.
type TransactionPage struct {
	Records   []TransactionRecord `json:"records"`
	NextToken *string             `json:"nextToken,omitempty"`
}

// StatsBucket aggregates the journal records sharing a kind, status and currency.
// Volume is the sum of their amounts in minor units.
type StatsBucket struct {
	Kind         TransactionKind   `json:"kind"`
	Status       TransactionStatus `json:"status"`
	CurrencyCode string            `json:"currencyCode"`
	Count        int64             `json:"count"`
	Volume       int64             `json:"volume"`
}

// TransactionStats summarizes the whole journal.
type TransactionStats struct {
	TotalCount int64 `json:"totalCount"`
	// CompletedVolume is the value moved by COMPLETED records, keyed by currency.
	CompletedVolume map[string]int64 `json:"completedVolume"`
	Breakdown       []StatsBucket    `json:"breakdown"`
}

// NewTransactionStats derives the totals from buckets and orders the breakdown by kind,
// status and currency.
func NewTransactionStats(buckets []StatsBucket) TransactionStats {
	stats := TransactionStats{
		CompletedVolume: make(map[string]int64),
		Breakdown:       slices.Clone(buckets),
	}
	if stats.Breakdown == nil {
		stats.Breakdown = []StatsBucket{}
	}
	for _, b := range stats.Breakdown {
		stats.TotalCount += b.Count
		if b.Status == TransactionCompleted {
			stats.CompletedVolume[b.CurrencyCode] += b.Volume
		}
	}
	slices.SortFunc(stats.Breakdown, func(a, b StatsBucket) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.Status, b.Status),
			cmp.Compare(a.CurrencyCode, b.CurrencyCode),
		)
	})
	return stats
}
