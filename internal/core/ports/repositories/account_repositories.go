package repositories

import (
	"context"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
)

// AccountReader defines read operations for account data.
// Reads return committed state and never wait on transfer locks.
type AccountReader interface {
	// FindAccountByID retrieves a specific account by its unique identifier.
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)

	// FindAccountsByOwner lists the accounts held by an owner, oldest first.
	FindAccountsByOwner(ctx context.Context, ownerID string) ([]domain.Account, error)
}

// AccountWriter defines write operations for account data
type AccountWriter interface {
	// SaveAccount persists a new account.
	SaveAccount(ctx context.Context, account domain.Account) error
}

// AccountTxStore defines the account operations available inside a transactional scope.
type AccountTxStore interface {
	// FindAccountsForUpdate loads the accounts in ascending id order, locking them where the
	// backend supports row locks. A missing id yields apperrors.ErrNotFound.
	FindAccountsForUpdate(ctx context.Context, accountIDs []string) (map[string]domain.Account, error)

	// ConditionalAdjust adds delta to the balance iff the version still equals expectedVersion,
	// the account is ACTIVE and the resulting balance is not negative. It returns the new version.
	ConditionalAdjust(ctx context.Context, accountID string, delta int64, expectedVersion int64) (int64, error)

	// UpdateAccountStatus changes the lifecycle status under the same version check.
	UpdateAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus, expectedVersion int64) (int64, error)
}

// AccountRepositoryFacade combines the non-transactional account interfaces.
type AccountRepositoryFacade interface {
	AccountReader
	AccountWriter
}
