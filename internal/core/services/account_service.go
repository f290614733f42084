package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	"github.com/SscSPs/transfer_engine/internal/concurrency"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
	"github.com/SscSPs/transfer_engine/internal/dto"
)

// accountService implements the AccountSvcFacade interface
type accountService struct {
	BaseService
	accountRepo portsrepo.AccountRepositoryFacade
	txManager   portsrepo.TransactionManager
	locker      concurrency.Locker
	retry       concurrency.RetryPolicy
	lockTimeout time.Duration
	validate    *validator.Validate
}

// ServiceOption is a functional option for configuring the account service
type ServiceOption func(*accountService)

// WithAccountLocker shares the coordinator's locker so status changes serialize with movements.
func WithAccountLocker(l concurrency.Locker) ServiceOption {
	return func(s *accountService) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithAccountLockTimeout overrides DefaultLockTimeout for status changes.
func WithAccountLockTimeout(d time.Duration) ServiceOption {
	return func(s *accountService) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// NewAccountService creates a new account service with the provided options
func NewAccountService(repo portsrepo.AccountRepositoryFacade, txManager portsrepo.TransactionManager, options ...ServiceOption) portssvc.AccountSvcFacade {
	svc := &accountService{
		accountRepo: repo,
		txManager:   txManager,
		locker:      concurrency.NewLocalLocker(),
		retry:       concurrency.DefaultRetryPolicy(),
		lockTimeout: DefaultLockTimeout,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, option := range options {
		option(svc)
	}

	return svc
}

// Ensure accountService implements the AccountSvcFacade interface
var _ portssvc.AccountSvcFacade = (*accountService)(nil)

func (s *accountService) OpenAccount(ctx context.Context, ownerID string, req dto.CreateAccountRequest) (*domain.Account, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", apperrors.ErrValidation)
	}
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}

	now := time.Now().UTC()
	account := domain.Account{
		AccountID:    uuid.NewString(),
		OwnerID:      ownerID,
		Balance:      0,
		CurrencyCode: req.CurrencyCode,
		Version:      1,
		Status:       domain.AccountActive,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     ownerID,
			LastUpdatedAt: now,
		},
	}

	if err := s.accountRepo.SaveAccount(ctx, account); err != nil {
		s.LogError(ctx, err, "Failed to save account",
			slog.String("account_id", account.AccountID),
			slog.String("owner_id", ownerID))
		return nil, err
	}

	s.LogInfo(ctx, "Account opened",
		slog.String("account_id", account.AccountID),
		slog.String("owner_id", ownerID),
		slog.String("currency_code", account.CurrencyCode))
	return &account, nil
}

func (s *accountService) GetAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		s.LogDebug(ctx, "Account lookup failed",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()))
		return nil, err
	}
	return account, nil
}

func (s *accountService) ListAccountsByOwner(ctx context.Context, ownerID string) ([]domain.Account, error) {
	accounts, err := s.accountRepo.FindAccountsByOwner(ctx, ownerID)
	if err != nil {
		s.LogError(ctx, err, "Failed to list accounts", slog.String("owner_id", ownerID))
		return nil, err
	}
	return accounts, nil
}

// ChangeStatus moves an account through its lifecycle under the same locks movements take,
// so no movement can observe a half-applied status change.
// Closing requires a zero balance.
func (s *accountService) ChangeStatus(ctx context.Context, accountID string, status domain.AccountStatus) (*domain.Account, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, status)
	}

	var updated domain.Account
	err := concurrency.Retry(ctx, s.retry, func(int) error {
		lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()

		release, err := s.locker.Acquire(lockCtx, accountID)
		if err != nil {
			return err
		}
		defer release()

		return s.txManager.WithinTransaction(lockCtx, func(txCtx context.Context, tx portsrepo.TxRepositories) error {
			accounts, err := tx.Accounts().FindAccountsForUpdate(txCtx, []string{accountID})
			if err != nil {
				return err
			}
			current, ok := accounts[accountID]
			if !ok {
				return fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
			}
			if !current.Status.CanTransitionTo(status) {
				return fmt.Errorf("%w: cannot move account from %s to %s", apperrors.ErrValidation, current.Status, status)
			}
			if status == domain.AccountClosed && current.Balance != 0 {
				return fmt.Errorf("%w: account %s still holds a balance", apperrors.ErrValidation, accountID)
			}

			version, err := tx.Accounts().UpdateAccountStatus(context.WithoutCancel(txCtx), accountID, status, current.Version)
			if err != nil {
				return err
			}
			updated = current
			updated.Status = status
			updated.Version = version
			updated.LastUpdatedAt = time.Now().UTC()
			return nil
		})
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to change account status",
			slog.String("account_id", accountID),
			slog.String("status", string(status)))
		return nil, err
	}

	s.LogInfo(ctx, "Account status changed",
		slog.String("account_id", accountID),
		slog.String("status", string(status)))
	return &updated, nil
}
