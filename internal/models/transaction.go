package models

import (
	"database/sql"
	"time"
)

// TransactionRecord represents a row of the transaction_records table.
type TransactionRecord struct {
	Sequence      int64          `db:"seq"`
	TransactionID string         `db:"transaction_id"`
	Kind          string         `db:"kind"`
	FromAccountID sql.NullString `db:"from_account_id"`
	ToAccountID   sql.NullString `db:"to_account_id"`
	Amount        int64          `db:"amount"`
	CurrencyCode  string         `db:"currency_code"`
	ReferenceID   string         `db:"reference_id"`
	Description   string         `db:"description"`
	Status        string         `db:"status"`
	FailureReason sql.NullString `db:"failure_reason"`
	CreatedAt     time.Time      `db:"created_at"`
	CompletedAt   sql.NullTime   `db:"completed_at"`
}
