package dto

import "github.com/SscSPs/transfer_engine/internal/core/domain"

// CreateTransferRequest is the body of POST /transfers.
// ReferenceID may be omitted when the Idempotency-Key header is sent.
type CreateTransferRequest struct {
	FromAccountID string `json:"fromAccountID" binding:"required"`
	ToAccountID   string `json:"toAccountID" binding:"required"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	ReferenceID   string `json:"referenceID" binding:"omitempty,max=128"`
	Description   string `json:"description" binding:"max=500"`
}

// ToDomain builds the coordinator request.
func (r CreateTransferRequest) ToDomain(referenceID string) domain.TransferRequest {
	return domain.TransferRequest{
		FromAccountID: r.FromAccountID,
		ToAccountID:   r.ToAccountID,
		Amount:        r.Amount,
		ReferenceID:   referenceID,
		Description:   r.Description,
	}
}

// FundsMovementRequest is the body of the deposit and withdrawal endpoints.
type FundsMovementRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	ReferenceID string `json:"referenceID" binding:"omitempty,max=128"`
	Description string `json:"description" binding:"max=500"`
}

// ToDomain builds the coordinator request for accountID.
func (r FundsMovementRequest) ToDomain(accountID, referenceID string) domain.FundsRequest {
	return domain.FundsRequest{
		AccountID:   accountID,
		Amount:      r.Amount,
		ReferenceID: referenceID,
		Description: r.Description,
	}
}
