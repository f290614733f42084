package services

import (
	"context"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
	"github.com/SscSPs/transfer_engine/internal/dto"
)

// AccountReaderSvc defines read operations for account data
type AccountReaderSvc interface {
	// GetAccountByID retrieves a specific account by its unique identifier.
	GetAccountByID(ctx context.Context, accountID string) (*domain.Account, error)

	// ListAccountsByOwner lists the accounts held by ownerID.
	ListAccountsByOwner(ctx context.Context, ownerID string) ([]domain.Account, error)
}

// AccountWriterSvc defines lifecycle operations for accounts.
// Balances are never written here; only the transfer coordinator moves value.
type AccountWriterSvc interface {
	// OpenAccount creates an ACTIVE account with a zero balance.
	OpenAccount(ctx context.Context, ownerID string, req dto.CreateAccountRequest) (*domain.Account, error)

	// ChangeStatus freezes, unfreezes or closes an account.
	ChangeStatus(ctx context.Context, accountID string, status domain.AccountStatus) (*domain.Account, error)
}

// AccountSvcFacade combines all account-related service interfaces
// This is a facade for clients that need access to all operations
type AccountSvcFacade interface {
	AccountReaderSvc
	AccountWriterSvc
}
