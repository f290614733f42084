package services

import (
	"context"
	"iter"
	"log/slog"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
	"github.com/SscSPs/transfer_engine/internal/utils/pagination"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// balanceQuery serves committed state only and never takes account locks.
type balanceQuery struct {
	BaseService
	accountRepo portsrepo.AccountReader
	journalRepo portsrepo.JournalRepositoryFacade
}

// NewBalanceQuery creates the read side of the ledger.
func NewBalanceQuery(accountRepo portsrepo.AccountReader, journalRepo portsrepo.JournalRepositoryFacade) portssvc.BalanceQuerySvc {
	return &balanceQuery{accountRepo: accountRepo, journalRepo: journalRepo}
}

var _ portssvc.BalanceQuerySvc = (*balanceQuery)(nil)

func (q *balanceQuery) GetBalance(ctx context.Context, accountID string) (*domain.Balance, error) {
	account, err := q.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &domain.Balance{
		AccountID:    account.AccountID,
		Balance:      account.Balance,
		CurrencyCode: account.CurrencyCode,
		Version:      account.Version,
		Status:       account.Status,
	}, nil
}

func (q *balanceQuery) ListByAccount(ctx context.Context, accountID string, limit int, nextToken *string) (*domain.TransactionPage, error) {
	if _, err := q.accountRepo.FindAccountByID(ctx, accountID); err != nil {
		return nil, err
	}

	limit = pagination.ClampLimit(limit, DefaultPageSize, MaxPageSize)
	records, token, err := q.journalRepo.ListRecordsByAccount(ctx, accountID, limit, nextToken)
	if err != nil {
		q.LogError(ctx, err, "Failed to list account history", slog.String("account_id", accountID))
		return nil, err
	}
	if records == nil {
		records = []domain.TransactionRecord{}
	}
	return &domain.TransactionPage{Records: records, NextToken: token}, nil
}

// Records walks the history newest first. Each range over the sequence starts from the top.
func (q *balanceQuery) Records(ctx context.Context, accountID string, pageSize int) iter.Seq2[domain.TransactionRecord, error] {
	return func(yield func(domain.TransactionRecord, error) bool) {
		var token *string
		for {
			page, err := q.ListByAccount(ctx, accountID, pageSize, token)
			if err != nil {
				yield(domain.TransactionRecord{}, err)
				return
			}
			for _, rec := range page.Records {
				if !yield(rec, nil) {
					return
				}
			}
			if page.NextToken == nil {
				return
			}
			token = page.NextToken
		}
	}
}

func (q *balanceQuery) GetTransaction(ctx context.Context, transactionID string) (*domain.TransactionRecord, error) {
	return q.journalRepo.FindRecordByID(ctx, transactionID)
}

// Stats aggregates the whole journal. Volumes stay in minor units and are never summed across
// currencies.
func (q *balanceQuery) Stats(ctx context.Context) (*domain.TransactionStats, error) {
	buckets, err := q.journalRepo.SummarizeRecords(ctx)
	if err != nil {
		q.LogError(ctx, err, "Failed to summarize journal")
		return nil, err
	}
	stats := domain.NewTransactionStats(buckets)
	return &stats, nil
}
