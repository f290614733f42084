package repositories

import (
	"context"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
)

// JournalReader defines read operations for the transaction journal.
type JournalReader interface {
	// FindRecordByID retrieves a record by its transaction id.
	FindRecordByID(ctx context.Context, transactionID string) (*domain.TransactionRecord, error)

	// FindRecordByReference retrieves the record stored for a client reference id.
	FindRecordByReference(ctx context.Context, referenceID string) (*domain.TransactionRecord, error)

	// ListRecordsByAccount returns records touching the account, newest first.
	// nextToken is opaque; a nil returned token means there are no more pages.
	ListRecordsByAccount(ctx context.Context, accountID string, limit int, nextToken *string) ([]domain.TransactionRecord, *string, error)
}

// JournalTxStore defines the journal operations available inside a transactional scope.
type JournalTxStore interface {
	// AppendRecord stores a finalized record. A reused reference id yields apperrors.ErrDuplicateReference.
	AppendRecord(ctx context.Context, record domain.TransactionRecord) error
}

// JournalStatsReader aggregates the journal.
type JournalStatsReader interface {
	// SummarizeRecords returns one bucket per kind, status and currency present in the journal.
	SummarizeRecords(ctx context.Context) ([]domain.StatsBucket, error)
}

// JournalRepositoryFacade combines the non-transactional journal interfaces.
type JournalRepositoryFacade interface {
	JournalReader
	JournalStatsReader
}
