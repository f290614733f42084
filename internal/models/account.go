package models

// AccountStatus mirrors the status column of the accounts table.
type AccountStatus string

// Account represents a row of the accounts table.
type Account struct {
	AccountID    string        `db:"account_id"`
	OwnerID      string        `db:"owner_id"`
	Balance      int64         `db:"balance"` // minor units, CHECK (balance >= 0)
	CurrencyCode string        `db:"currency_code"`
	Version      int64         `db:"version"`
	Status       AccountStatus `db:"status"`
	AuditFields
}
