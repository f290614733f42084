package services

import (
	"context"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
)

// TransferSvc moves value between balances atomically.
//
// On success the COMPLETED record is returned with a nil error. A business failure that was
// journaled (for example insufficient funds) returns the FAILED record together with the
// classified error. Rejections that happen before any mutation return a nil record.
type TransferSvc interface {
	Execute(ctx context.Context, req domain.TransferRequest) (*domain.TransactionRecord, error)
}

// FundsSvc credits or debits a single account through the same journal.
type FundsSvc interface {
	Deposit(ctx context.Context, req domain.FundsRequest) (*domain.TransactionRecord, error)
	Withdraw(ctx context.Context, req domain.FundsRequest) (*domain.TransactionRecord, error)
}

// TransferSvcFacade combines the value moving services.
type TransferSvcFacade interface {
	TransferSvc
	FundsSvc
}

// EventPublisher receives completed movements after commit. Implementations must not block
// the caller for long and must not report failures back into the movement.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.TransferCompletedEvent)
}
