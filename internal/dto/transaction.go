package dto

import (
	"time"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
	"github.com/SscSPs/transfer_engine/internal/utils"
)

// TransactionResponse defines the data returned for a journal record.
type TransactionResponse struct {
	TransactionID   string                   `json:"transactionID"`
	Kind            domain.TransactionKind   `json:"kind"`
	FromAccountID   *string                  `json:"fromAccountID,omitempty"`
	ToAccountID     *string                  `json:"toAccountID,omitempty"`
	Amount          int64                    `json:"amount"`
	FormattedAmount string                   `json:"formattedAmount"`
	CurrencyCode    string                   `json:"currencyCode"`
	ReferenceID     string                   `json:"referenceID"`
	Description     string                   `json:"description,omitempty"`
	Status          domain.TransactionStatus `json:"status"`
	FailureReason   domain.FailureReason     `json:"failureReason,omitempty"`
	CreatedAt       time.Time                `json:"createdAt"`
	CompletedAt     *time.Time               `json:"completedAt,omitempty"`
}

// ToTransactionResponse converts a domain.TransactionRecord to TransactionResponse DTO
func ToTransactionResponse(r *domain.TransactionRecord) TransactionResponse {
	return TransactionResponse{
		TransactionID:   r.TransactionID,
		Kind:            r.Kind,
		FromAccountID:   r.FromAccountID,
		ToAccountID:     r.ToAccountID,
		Amount:          r.Amount,
		FormattedAmount: utils.FormatMinorUnits(r.Amount, r.CurrencyCode),
		CurrencyCode:    r.CurrencyCode,
		ReferenceID:     r.ReferenceID,
		Description:     r.Description,
		Status:          r.Status,
		FailureReason:   r.FailureReason,
		CreatedAt:       r.CreatedAt,
		CompletedAt:     r.CompletedAt,
	}
}

// ListTransactionsParams holds the query parameters of the history endpoint.
type ListTransactionsParams struct {
	Limit     int    `form:"limit,default=20" binding:"min=1,max=100"`
	NextToken string `form:"nextToken"`
}

// ListTransactionsResponse is one page of account history.
type ListTransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	NextToken    *string               `json:"nextToken,omitempty"`
}

// ToListTransactionsResponse converts a domain page.
func ToListTransactionsResponse(page *domain.TransactionPage) ListTransactionsResponse {
	resp := ListTransactionsResponse{
		Transactions: make([]TransactionResponse, 0, len(page.Records)),
		NextToken:    page.NextToken,
	}
	for i := range page.Records {
		resp.Transactions = append(resp.Transactions, ToTransactionResponse(&page.Records[i]))
	}
	return resp
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string               `json:"error"`
	Retryable bool                 `json:"retryable,omitempty"`
	Record    *TransactionResponse `json:"transaction,omitempty"`
}
