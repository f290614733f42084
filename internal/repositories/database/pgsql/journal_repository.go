package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
	"github.com/SscSPs/transfer_engine/internal/models"
	"github.com/SscSPs/transfer_engine/internal/utils/mapping"
	"github.com/SscSPs/transfer_engine/internal/utils/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `seq, transaction_id, kind, from_account_id, to_account_id, amount, currency_code, reference_id, description, status, failure_reason, created_at, completed_at`

const referenceConstraint = "transaction_records_reference_id_key"

// PgxJournalRepository reads the transaction journal.
type PgxJournalRepository struct {
	pool *pgxpool.Pool
}

// newPgxJournalRepository creates a new repository for journal data.
func newPgxJournalRepository(pool *pgxpool.Pool) *PgxJournalRepository {
	return &PgxJournalRepository{pool: pool}
}

var _ portsrepo.JournalRepositoryFacade = (*PgxJournalRepository)(nil)

func scanRecord(row pgx.Row) (domain.TransactionRecord, error) {
	var m models.TransactionRecord
	err := row.Scan(
		&m.Sequence,
		&m.TransactionID,
		&m.Kind,
		&m.FromAccountID,
		&m.ToAccountID,
		&m.Amount,
		&m.CurrencyCode,
		&m.ReferenceID,
		&m.Description,
		&m.Status,
		&m.FailureReason,
		&m.CreatedAt,
		&m.CompletedAt,
	)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	return mapping.ToDomainTransactionRecord(m), nil
}

func (r *PgxJournalRepository) findOne(ctx context.Context, column, value string) (*domain.TransactionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM transaction_records WHERE ` + column + ` = $1;`
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, persistenceError(fmt.Sprintf("failed to find transaction record by %s", column), err)
	}
	return &rec, nil
}

// FindRecordByID retrieves a record by transaction id.
func (r *PgxJournalRepository) FindRecordByID(ctx context.Context, transactionID string) (*domain.TransactionRecord, error) {
	return r.findOne(ctx, "transaction_id", transactionID)
}

// FindRecordByReference retrieves the record stored for a reference id.
func (r *PgxJournalRepository) FindRecordByReference(ctx context.Context, referenceID string) (*domain.TransactionRecord, error) {
	return r.findOne(ctx, "reference_id", referenceID)
}

// ListRecordsByAccount retrieves records touching an account, newest first, using token-based pagination.
func (r *PgxJournalRepository) ListRecordsByAccount(ctx context.Context, accountID string, limit int, nextToken *string) ([]domain.TransactionRecord, *string, error) {
	if limit <= 0 {
		return nil, nil, fmt.Errorf("%w: limit must be positive", apperrors.ErrValidation)
	}

	var before int64
	if nextToken != nil && *nextToken != "" {
		cursor, err := pagination.DecodeToken(*nextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		before = cursor.Sequence
	}

	// Fetch one extra row to know whether another page exists.
	query := `
		SELECT ` + recordColumns + `
		FROM transaction_records
		WHERE (from_account_id = $1 OR to_account_id = $1)
		  AND ($2::BIGINT = 0 OR seq < $2)
		ORDER BY seq DESC
		LIMIT $3;
	`
	rows, err := r.pool.Query(ctx, query, accountID, before, limit+1)
	if err != nil {
		return nil, nil, persistenceError("failed to list transaction records", err)
	}
	defer rows.Close()

	records := make([]domain.TransactionRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, nil, persistenceError("failed to scan transaction record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, persistenceError("error iterating transaction records", err)
	}

	var next *string
	if len(records) > limit {
		records = records[:limit]
		last := records[limit-1]
		token := pagination.EncodeToken(last.CreatedAt, last.Sequence)
		next = &token
	}
	return records, next, nil
}

// SummarizeRecords aggregates the journal by kind, status and currency.
func (r *PgxJournalRepository) SummarizeRecords(ctx context.Context) ([]domain.StatsBucket, error) {
	query := `
		SELECT kind, status, currency_code, COUNT(*), COALESCE(SUM(amount), 0)::BIGINT
		FROM transaction_records
		GROUP BY kind, status, currency_code;
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, persistenceError("failed to summarize transaction records", err)
	}
	defer rows.Close()

	buckets := make([]domain.StatsBucket, 0)
	for rows.Next() {
		var b domain.StatsBucket
		if err := rows.Scan(&b.Kind, &b.Status, &b.CurrencyCode, &b.Count, &b.Volume); err != nil {
			return nil, persistenceError("failed to scan transaction summary", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("error iterating transaction summary", err)
	}
	return buckets, nil
}

// pgxJournalTx appends records inside a transaction.
type pgxJournalTx struct {
	q dbtx
}

var _ portsrepo.JournalTxStore = (*pgxJournalTx)(nil)

// AppendRecord inserts a finalized record. The unique constraint on reference_id makes the
// reservation atomic with the insert across all service instances.
func (r *pgxJournalTx) AppendRecord(ctx context.Context, record domain.TransactionRecord) error {
	m := mapping.ToModelTransactionRecord(record)
	query := `
		INSERT INTO transaction_records (transaction_id, kind, from_account_id, to_account_id, amount, currency_code, reference_id, description, status, failure_reason, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`
	_, err := r.q.Exec(ctx, query,
		m.TransactionID,
		m.Kind,
		m.FromAccountID,
		m.ToAccountID,
		m.Amount,
		m.CurrencyCode,
		m.ReferenceID,
		m.Description,
		m.Status,
		m.FailureReason,
		m.CreatedAt,
		m.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == referenceConstraint:
				return fmt.Errorf("%w: %s", apperrors.ErrDuplicateReference, m.ReferenceID)
			case pgErr.Code == pgCheckViolation:
				return fmt.Errorf("%w: %s", apperrors.ErrValidation, pgErr.ConstraintName)
			}
		}
		return persistenceError("failed to append transaction record", err)
	}
	return nil
}
