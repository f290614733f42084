package domain

import "time"

// TransferRequest asks for Amount minor units to move from one account to another.
// ReferenceID is the client-supplied idempotency token.
type TransferRequest struct {
	FromAccountID string `json:"fromAccountID" validate:"required"`
	ToAccountID   string `json:"toAccountID" validate:"required,nefield=FromAccountID"`
	Amount        int64  `json:"amount" validate:"gt=0"`
	ReferenceID   string `json:"referenceID" validate:"required,max=128"`
	Description   string `json:"description" validate:"max=500"`
}

// FundsRequest asks for a single-account deposit or withdrawal.
type FundsRequest struct {
	AccountID   string `json:"accountID" validate:"required"`
	Amount      int64  `json:"amount" validate:"gt=0"`
	ReferenceID string `json:"referenceID" validate:"required,max=128"`
	Description string `json:"description" validate:"max=500"`
}

// TransferState is a step of the coordinator state machine.
type TransferState string

const (
	StateReceived  TransferState = "RECEIVED"
	StateValidated TransferState = "VALIDATED"
	StateLocked    TransferState = "LOCKED"
	StateDebited   TransferState = "DEBITED"
	StateCredited  TransferState = "CREDITED"
	StateJournaled TransferState = "JOURNALED"
	StateCompleted TransferState = "COMPLETED"
	StateFailed    TransferState = "FAILED"
)

var transferSteps = map[TransferState]TransferState{
	StateReceived:  StateValidated,
	StateValidated: StateLocked,
	StateLocked:    StateDebited,
	StateDebited:   StateCredited,
	StateCredited:  StateJournaled,
	StateJournaled: StateCompleted,
}

// IsTerminal reports whether no further transitions are possible.
func (s TransferState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransitionTo reports whether next directly follows s.
// FAILED is reachable from every non-terminal state.
func (s TransferState) CanTransitionTo(next TransferState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return transferSteps[s] == next
}

// TransferCompletedEvent is published after a movement commits.
type TransferCompletedEvent struct {
	TransactionID string          `json:"transactionID"`
	Kind          TransactionKind `json:"kind"`
	FromAccountID *string         `json:"fromAccountID,omitempty"`
	ToAccountID   *string         `json:"toAccountID,omitempty"`
	Amount        int64           `json:"amount"`
	CurrencyCode  string          `json:"currencyCode"`
	ReferenceID   string          `json:"referenceID"`
	CompletedAt   time.Time       `json:"completedAt"`
}

// NewTransferCompletedEvent builds the event for a COMPLETED record.
func NewTransferCompletedEvent(r TransactionRecord) TransferCompletedEvent {
	ev := TransferCompletedEvent{
		TransactionID: r.TransactionID,
		Kind:          r.Kind,
		FromAccountID: r.FromAccountID,
		ToAccountID:   r.ToAccountID,
		Amount:        r.Amount,
		CurrencyCode:  r.CurrencyCode,
		ReferenceID:   r.ReferenceID,
	}
	if r.CompletedAt != nil {
		ev.CompletedAt = *r.CompletedAt
	}
	return ev
}
