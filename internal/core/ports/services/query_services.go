package services

import (
	"context"
	"iter"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
)

// BalanceQuerySvc serves read-only views of balances and history.
type BalanceQuerySvc interface {
	// GetBalance returns the committed balance of an account.
	GetBalance(ctx context.Context, accountID string) (*domain.Balance, error)

	// ListByAccount returns one page of the account history, newest first.
	ListByAccount(ctx context.Context, accountID string, limit int, nextToken *string) (*domain.TransactionPage, error)

	// Records lazily walks the whole account history page by page. The sequence is restartable.
	Records(ctx context.Context, accountID string, pageSize int) iter.Seq2[domain.TransactionRecord, error]

	// GetTransaction retrieves a single record by id.
	GetTransaction(ctx context.Context, transactionID string) (*domain.TransactionRecord, error)

	// Stats summarizes the journal: record counts and volumes per kind, status and currency.
	Stats(ctx context.Context) (*domain.TransactionStats, error)
}
