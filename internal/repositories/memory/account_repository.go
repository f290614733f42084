package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
)

// SaveAccount inserts a new account.
func (s *Store) SaveAccount(ctx context.Context, account domain.Account) error {
	if account.AccountID == "" {
		return fmt.Errorf("%w: account id is required", apperrors.ErrValidation)
	}
	if account.Balance < 0 {
		return fmt.Errorf("%w: balance cannot be negative", apperrors.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.AccountID]; exists {
		return fmt.Errorf("%w: account with ID %s already exists", apperrors.ErrDuplicate, account.AccountID)
	}
	s.accounts[account.AccountID] = account
	return nil
}

// FindAccountByID retrieves an account by its ID.
func (s *Store) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	s.mu.RLock()
	acc, ok := s.accounts[accountID]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &acc, nil
}

// FindAccountsByOwner lists accounts held by ownerID, oldest first.
func (s *Store) FindAccountsByOwner(ctx context.Context, ownerID string) ([]domain.Account, error) {
	s.mu.RLock()
	accounts := make([]domain.Account, 0)
	for _, acc := range s.accounts {
		if acc.OwnerID == ownerID {
			accounts = append(accounts, acc)
		}
	}
	s.mu.RUnlock()

	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].AccountID < accounts[j].AccountID
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}
