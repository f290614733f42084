package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
	"github.com/SscSPs/transfer_engine/internal/models"
	"github.com/SscSPs/transfer_engine/internal/utils/mapping"
	"github.com/SscSPs/transfer_engine/internal/utils/pagination"
)

const recordColumns = `seq, transaction_id, kind, from_account_id, to_account_id, amount, currency_code, reference_id, description, status, failure_reason, created_at, completed_at`

func scanRecord(row rowScanner) (domain.TransactionRecord, error) {
	var m models.TransactionRecord
	err := row.Scan(&m.Sequence, &m.TransactionID, &m.Kind, &m.FromAccountID, &m.ToAccountID, &m.Amount,
		&m.CurrencyCode, &m.ReferenceID, &m.Description, &m.Status, &m.FailureReason, &m.CreatedAt, &m.CompletedAt)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	return mapping.ToDomainTransactionRecord(m), nil
}

// JournalRepository reads the transaction journal.
type JournalRepository struct {
	db *sql.DB
}

var _ portsrepo.JournalRepositoryFacade = (*JournalRepository)(nil)

func (r *JournalRepository) findOne(ctx context.Context, column, value string) (*domain.TransactionRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM transaction_records WHERE `+column+` = ?1`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, translateError("failed to find transaction record", err)
	}
	return &rec, nil
}

// FindRecordByID retrieves a record by transaction id.
func (r *JournalRepository) FindRecordByID(ctx context.Context, transactionID string) (*domain.TransactionRecord, error) {
	return r.findOne(ctx, "transaction_id", transactionID)
}

// FindRecordByReference retrieves the record stored for a reference id.
func (r *JournalRepository) FindRecordByReference(ctx context.Context, referenceID string) (*domain.TransactionRecord, error) {
	return r.findOne(ctx, "reference_id", referenceID)
}

// ListRecordsByAccount retrieves records touching an account, newest first.
func (r *JournalRepository) ListRecordsByAccount(ctx context.Context, accountID string, limit int, nextToken *string) ([]domain.TransactionRecord, *string, error) {
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

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM transaction_records
		WHERE (from_account_id = ?1 OR to_account_id = ?1)
		  AND (?2 = 0 OR seq < ?2)
		ORDER BY seq DESC
		LIMIT ?3`,
		accountID, before, limit+1,
	)
	if err != nil {
		return nil, nil, translateError("failed to list transaction records", err)
	}
	defer rows.Close()

	records := make([]domain.TransactionRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, nil, translateError("failed to scan transaction record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, translateError("error iterating transaction records", err)
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

type journalTx struct {
	q dbtx
}

var _ portsrepo.JournalTxStore = (*journalTx)(nil)

// AppendRecord inserts a finalized record; the UNIQUE reference_id column rejects reuse.
func (r *journalTx) AppendRecord(ctx context.Context, record domain.TransactionRecord) error {
	m := mapping.ToModelTransactionRecord(record)
	m.CreatedAt = m.CreatedAt.UTC()
	if m.CompletedAt.Valid {
		m.CompletedAt.Time = m.CompletedAt.Time.UTC()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO transaction_records (transaction_id, kind, from_account_id, to_account_id, amount, currency_code, reference_id, description, status, failure_reason, created_at, completed_at)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11, ?12)`,
		m.TransactionID, m.Kind, m.FromAccountID, m.ToAccountID, m.Amount, m.CurrencyCode,
		m.ReferenceID, m.Description, m.Status, m.FailureReason, m.CreatedAt, m.CompletedAt,
	)
	if err != nil {
		return translateError(fmt.Sprintf("reference %s", m.ReferenceID), err)
	}
	return nil
}

// SummarizeRecords aggregates the journal by kind, status and currency.
func (r *JournalRepository) SummarizeRecords(ctx context.Context) ([]domain.StatsBucket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, status, currency_code, COUNT(*), COALESCE(SUM(amount), 0)
		FROM transaction_records
		GROUP BY kind, status, currency_code`)
	if err != nil {
		return nil, translateError("failed to summarize transaction records", err)
	}
	defer rows.Close()

	buckets := make([]domain.StatsBucket, 0)
	for rows.Next() {
		var b domain.StatsBucket
		if err := rows.Scan(&b.Kind, &b.Status, &b.CurrencyCode, &b.Count, &b.Volume); err != nil {
			return nil, translateError("failed to scan transaction summary", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("error iterating transaction summary", err)
	}
	return buckets, nil
}
