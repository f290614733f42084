package pgsql

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
	"github.com/SscSPs/transfer_engine/internal/models"
	"github.com/SscSPs/transfer_engine/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `account_id, owner_id, balance, currency_code, version, status, created_at, created_by, last_updated_at`

type PgxAccountRepository struct {
	pool *pgxpool.Pool
}

// newPgxAccountRepository creates a new repository for account data.
func newPgxAccountRepository(pool *pgxpool.Pool) *PgxAccountRepository {
	return &PgxAccountRepository{pool: pool}
}

// Ensure PgxAccountRepository implements portsrepo.AccountRepositoryFacade
var _ portsrepo.AccountRepositoryFacade = (*PgxAccountRepository)(nil)

func scanAccount(row pgx.Row) (domain.Account, error) {
	var m models.Account
	err := row.Scan(
		&m.AccountID,
		&m.OwnerID,
		&m.Balance,
		&m.CurrencyCode,
		&m.Version,
		&m.Status,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	return mapping.ToDomainAccount(m), nil
}

// SaveAccount inserts a new account.
func (r *PgxAccountRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	m := mapping.ToModelAccount(account)
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := r.pool.Exec(ctx, query,
		m.AccountID,
		m.OwnerID,
		m.Balance,
		m.CurrencyCode,
		m.Version,
		m.Status,
		m.CreatedAt,
		m.CreatedBy,
		m.LastUpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return fmt.Errorf("%w: account with ID %s already exists", apperrors.ErrDuplicate, m.AccountID)
			case pgCheckViolation:
				return fmt.Errorf("%w: %s", apperrors.ErrValidation, pgErr.ConstraintName)
			}
		}
		return persistenceError(fmt.Sprintf("failed to save account %s", m.AccountID), err)
	}
	return nil
}

// FindAccountByID retrieves an account by its ID.
func (r *PgxAccountRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1;`
	acc, err := scanAccount(r.pool.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, persistenceError(fmt.Sprintf("failed to find account by ID %s", accountID), err)
	}
	return &acc, nil
}

// FindAccountsByOwner lists the accounts of an owner, oldest first.
func (r *PgxAccountRepository) FindAccountsByOwner(ctx context.Context, ownerID string) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 ORDER BY created_at, account_id;`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, persistenceError("failed to query accounts by owner", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, persistenceError("failed to scan account row", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("error iterating account rows", err)
	}
	return accounts, nil
}

// pgxAccountTx runs account statements inside a transaction.
type pgxAccountTx struct {
	q dbtx
}

var _ portsrepo.AccountTxStore = (*pgxAccountTx)(nil)

// FindAccountsForUpdate selects accounts and locks them for update within a transaction.
// Rows are locked in ascending id order so concurrent transfers cannot deadlock.
func (r *pgxAccountTx) FindAccountsForUpdate(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	if len(accountIDs) == 0 {
		return map[string]domain.Account{}, nil
	}
	ids := append([]string(nil), accountIDs...)
	sort.Strings(ids)

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = ANY($1) ORDER BY account_id FOR UPDATE;`
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, persistenceError("failed to lock accounts", err)
	}
	defer rows.Close()

	accountsMap := make(map[string]domain.Account, len(ids))
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, persistenceError("failed to scan locked account", err)
		}
		accountsMap[acc.AccountID] = acc
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("error iterating locked accounts", err)
	}

	var missing []string
	for _, id := range ids {
		if _, ok := accountsMap[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: account(s) %s", apperrors.ErrNotFound, strings.Join(missing, ", "))
	}
	return accountsMap, nil
}

// ConditionalAdjust applies delta in a single guarded UPDATE.
func (r *pgxAccountTx) ConditionalAdjust(ctx context.Context, accountID string, delta int64, expectedVersion int64) (int64, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $2, version = version + 1, last_updated_at = now()
		WHERE account_id = $1 AND version = $3 AND status = 'ACTIVE' AND balance + $2 >= 0
		RETURNING version;
	`
	var newVersion int64
	err := r.q.QueryRow(ctx, query, accountID, delta, expectedVersion).Scan(&newVersion)
	if err == nil {
		return newVersion, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, r.classifyRejected(ctx, accountID, expectedVersion)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCheckViolation:
			return 0, fmt.Errorf("%w: account %s", apperrors.ErrInsufficientFunds, accountID)
		case pgNumericOutOfRange:
			return 0, fmt.Errorf("%w: balance overflow on account %s", apperrors.ErrValidation, accountID)
		}
	}
	return 0, persistenceError(fmt.Sprintf("failed to adjust balance of account %s", accountID), err)
}

// classifyRejected explains why the guarded UPDATE matched no row.
func (r *pgxAccountTx) classifyRejected(ctx context.Context, accountID string, expectedVersion int64) error {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1;`
	acc, err := scanAccount(r.q.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
		}
		return persistenceError(fmt.Sprintf("failed to read account %s", accountID), err)
	}
	switch {
	case acc.Version != expectedVersion:
		return fmt.Errorf("%w: account %s at version %d, expected %d", apperrors.ErrVersionConflict, accountID, acc.Version, expectedVersion)
	case !acc.IsActive():
		return fmt.Errorf("%w: account %s is %s", apperrors.ErrAccountNotActive, accountID, acc.Status)
	default:
		return fmt.Errorf("%w: account %s", apperrors.ErrInsufficientFunds, accountID)
	}
}

// UpdateAccountStatus changes the status under a version check.
func (r *pgxAccountTx) UpdateAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus, expectedVersion int64) (int64, error) {
	query := `
		UPDATE accounts
		SET status = $2, version = version + 1, last_updated_at = now()
		WHERE account_id = $1 AND version = $3
		RETURNING version;
	`
	var newVersion int64
	err := r.q.QueryRow(ctx, query, accountID, string(status), expectedVersion).Scan(&newVersion)
	if err == nil {
		return newVersion, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if qerr := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE account_id = $1);`, accountID).Scan(&exists); qerr != nil {
			return 0, persistenceError("failed to check account existence", qerr)
		}
		if !exists {
			return 0, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
		}
		return 0, fmt.Errorf("%w: account %s changed", apperrors.ErrVersionConflict, accountID)
	}
	return 0, persistenceError(fmt.Sprintf("failed to update status of account %s", accountID), err)
}
