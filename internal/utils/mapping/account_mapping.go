package mapping

import (
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	"github.com/SscSPs/transfer_engine/internal/models"
)

// ToModelAccount converts a domain Account to a model Account
func ToModelAccount(d domain.Account) models.Account {
	return models.Account{
		AccountID:    d.AccountID,
		OwnerID:      d.OwnerID,
		Balance:      d.Balance,
		CurrencyCode: d.CurrencyCode,
		Version:      d.Version,
		Status:       models.AccountStatus(d.Status),
		AuditFields: models.AuditFields{
			CreatedAt:     d.CreatedAt,
			CreatedBy:     d.CreatedBy,
			LastUpdatedAt: d.LastUpdatedAt,
		},
	}
}

// ToDomainAccount converts a model Account to a domain Account
func ToDomainAccount(m models.Account) domain.Account {
	return domain.Account{
		AccountID:    m.AccountID,
		OwnerID:      m.OwnerID,
		Balance:      m.Balance,
		CurrencyCode: m.CurrencyCode,
		Version:      m.Version,
		Status:       domain.AccountStatus(m.Status),
		AuditFields: domain.AuditFields{
			CreatedAt:     m.CreatedAt,
			CreatedBy:     m.CreatedBy,
			LastUpdatedAt: m.LastUpdatedAt,
		},
	}
}
