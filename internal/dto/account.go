package dto

import (
	"time"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
	"github.com/SscSPs/transfer_engine/internal/utils"
)

// CreateAccountRequest defines the data needed to open a new account.
type CreateAccountRequest struct {
	CurrencyCode string `json:"currencyCode" binding:"required,iso4217" validate:"required,iso4217"`
}

// UpdateAccountStatusRequest changes the lifecycle status of an account.
type UpdateAccountStatusRequest struct {
	Status domain.AccountStatus `json:"status" binding:"required,oneof=ACTIVE FROZEN CLOSED"`
}

// AccountResponse defines the data returned for an account.
// Mirrors domain.Account.
type AccountResponse struct {
	AccountID        string               `json:"accountID"`
	OwnerID          string               `json:"ownerID"`
	Balance          int64                `json:"balance"`
	FormattedBalance string               `json:"formattedBalance"`
	CurrencyCode     string               `json:"currencyCode"`
	Version          int64                `json:"version"`
	Status           domain.AccountStatus `json:"status"`
	CreatedAt        time.Time            `json:"createdAt"`
	LastUpdatedAt    time.Time            `json:"lastUpdatedAt"`
}

// ToAccountResponse converts a domain.Account to AccountResponse DTO
func ToAccountResponse(acc *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID:        acc.AccountID,
		OwnerID:          acc.OwnerID,
		Balance:          acc.Balance,
		FormattedBalance: utils.FormatMinorUnits(acc.Balance, acc.CurrencyCode),
		CurrencyCode:     acc.CurrencyCode,
		Version:          acc.Version,
		Status:           acc.Status,
		CreatedAt:        acc.CreatedAt,
		LastUpdatedAt:    acc.LastUpdatedAt,
	}
}

// ToListAccountResponse converts a slice of domain accounts.
func ToListAccountResponse(accounts []domain.Account) []AccountResponse {
	resp := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		resp = append(resp, ToAccountResponse(&accounts[i]))
	}
	return resp
}

// BalanceResponse is returned by the balance endpoint.
type BalanceResponse struct {
	AccountID        string               `json:"accountID"`
	Balance          int64                `json:"balance"`
	FormattedBalance string               `json:"formattedBalance"`
	CurrencyCode     string               `json:"currencyCode"`
	Version          int64                `json:"version"`
	Status           domain.AccountStatus `json:"status"`
}

// ToBalanceResponse converts a domain.Balance to BalanceResponse DTO
func ToBalanceResponse(b *domain.Balance) BalanceResponse {
	return BalanceResponse{
		AccountID:        b.AccountID,
		Balance:          b.Balance,
		FormattedBalance: utils.FormatMinorUnits(b.Balance, b.CurrencyCode),
		CurrencyCode:     b.CurrencyCode,
		Version:          b.Version,
		Status:           b.Status,
	}
}
