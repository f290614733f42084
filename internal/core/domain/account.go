package domain

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountActive AccountStatus = "ACTIVE"
	AccountFrozen AccountStatus = "FROZEN"
	AccountClosed AccountStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountActive, AccountFrozen, AccountClosed:
		return true
	}
	return false
}

// CanTransitionTo reports whether an account may move from s to next.
// CLOSED is terminal.
func (s AccountStatus) CanTransitionTo(next AccountStatus) bool {
	if !next.Valid() || s == next {
		return false
	}
	return s == AccountActive || s == AccountFrozen
}

// Account is a holder of value in minor currency units.
// Balance never goes below zero and Version increments on every successful mutation.
type Account struct {
	AccountID    string        `json:"accountID"`
	OwnerID      string        `json:"ownerID"`
	Balance      int64         `json:"balance"`
	CurrencyCode string        `json:"currencyCode"`
	Version      int64         `json:"version"`
	Status       AccountStatus `json:"status"`
	AuditFields
}

// IsActive reports whether the account accepts mutations.
func (a Account) IsActive() bool {
	return a.Status == AccountActive
}

// Balance is a point-in-time view of an account balance.
type Balance struct {
	AccountID    string        `json:"accountID"`
	Balance      int64         `json:"balance"`
	CurrencyCode string        `json:"currencyCode"`
	Version      int64         `json:"version"`
	Status       AccountStatus `json:"status"`
}
