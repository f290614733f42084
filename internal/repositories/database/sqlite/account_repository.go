package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
	"github.com/SscSPs/transfer_engine/internal/models"
	"github.com/SscSPs/transfer_engine/internal/utils/mapping"
)

const accountColumns = `account_id, owner_id, balance, currency_code, version, status, created_at, created_by, last_updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var m models.Account
	if err := row.Scan(&m.AccountID, &m.OwnerID, &m.Balance, &m.CurrencyCode, &m.Version, &m.Status, &m.CreatedAt, &m.CreatedBy, &m.LastUpdatedAt); err != nil {
		return domain.Account{}, err
	}
	return mapping.ToDomainAccount(m), nil
}

// AccountRepository reads and creates accounts.
type AccountRepository struct {
	db *sql.DB
}

var _ portsrepo.AccountRepositoryFacade = (*AccountRepository)(nil)

// SaveAccount inserts a new account.
func (r *AccountRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	m := mapping.ToModelAccount(account)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9)`,
		m.AccountID, m.OwnerID, m.Balance, m.CurrencyCode, m.Version, string(m.Status), m.CreatedAt.UTC(), m.CreatedBy, m.LastUpdatedAt.UTC(),
	)
	if err != nil {
		return translateError(fmt.Sprintf("failed to save account %s", m.AccountID), err)
	}
	return nil
}

// FindAccountByID retrieves an account by its ID.
func (r *AccountRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	acc, err := scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_id = ?1`, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, translateError("failed to find account", err)
	}
	return &acc, nil
}

// FindAccountsByOwner lists the accounts of an owner, oldest first.
func (r *AccountRepository) FindAccountsByOwner(ctx context.Context, ownerID string) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE owner_id = ?1 ORDER BY created_at, account_id`, ownerID)
	if err != nil {
		return nil, translateError("failed to query accounts by owner", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, translateError("failed to scan account row", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("error iterating account rows", err)
	}
	return accounts, nil
}

type accountTx struct {
	q dbtx
}

var _ portsrepo.AccountTxStore = (*accountTx)(nil)

// FindAccountsForUpdate reads the accounts in ascending id order. The scope already holds the
// database write lock, so no per-row lock is needed.
func (r *accountTx) FindAccountsForUpdate(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	ids := append([]string(nil), accountIDs...)
	sort.Strings(ids)

	accountsMap := make(map[string]domain.Account, len(ids))
	var missing []string
	for _, id := range ids {
		acc, err := scanAccount(r.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_id = ?1`, id))
		if errors.Is(err, sql.ErrNoRows) {
			missing = append(missing, id)
			continue
		}
		if err != nil {
			return nil, translateError("failed to read account", err)
		}
		accountsMap[id] = acc
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: account(s) %s", apperrors.ErrNotFound, strings.Join(missing, ", "))
	}
	return accountsMap, nil
}

// ConditionalAdjust applies delta in a single guarded UPDATE.
func (r *accountTx) ConditionalAdjust(ctx context.Context, accountID string, delta int64, expectedVersion int64) (int64, error) {
	var newVersion int64
	err := r.q.QueryRowContext(ctx, `
		UPDATE accounts
		SET balance = balance + ?2, version = version + 1, last_updated_at = ?4
		WHERE account_id = ?1 AND version = ?3 AND status = 'ACTIVE' AND balance + ?2 >= 0
		RETURNING version`,
		accountID, delta, expectedVersion, time.Now().UTC(),
	).Scan(&newVersion)
	if err == nil {
		return newVersion, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, translateError(fmt.Sprintf("failed to adjust balance of account %s", accountID), err)
	}

	acc, err := scanAccount(r.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_id = ?1`, accountID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
	case err != nil:
		return 0, translateError("failed to read account", err)
	case acc.Version != expectedVersion:
		return 0, fmt.Errorf("%w: account %s at version %d, expected %d", apperrors.ErrVersionConflict, accountID, acc.Version, expectedVersion)
	case !acc.IsActive():
		return 0, fmt.Errorf("%w: account %s is %s", apperrors.ErrAccountNotActive, accountID, acc.Status)
	default:
		return 0, fmt.Errorf("%w: account %s", apperrors.ErrInsufficientFunds, accountID)
	}
}

// UpdateAccountStatus changes the status under a version check.
func (r *accountTx) UpdateAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus, expectedVersion int64) (int64, error) {
	var newVersion int64
	err := r.q.QueryRowContext(ctx, `
		UPDATE accounts
		SET status = ?2, version = version + 1, last_updated_at = ?4
		WHERE account_id = ?1 AND version = ?3
		RETURNING version`,
		accountID, string(status), expectedVersion, time.Now().UTC(),
	).Scan(&newVersion)
	if err == nil {
		return newVersion, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, translateError("failed to update account status", err)
	}

	var count int
	if qerr := r.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM accounts WHERE account_id = ?1`, accountID).Scan(&count); qerr != nil {
		return 0, translateError("failed to check account existence", qerr)
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
	}
	return 0, fmt.Errorf("%w: account %s changed", apperrors.ErrVersionConflict, accountID)
}
