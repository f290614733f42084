package mapping

import (
	"database/sql"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
	"github.com/SscSPs/transfer_engine/internal/models"
)

// ToModelTransactionRecord converts a domain TransactionRecord to a model row.
func ToModelTransactionRecord(d domain.TransactionRecord) models.TransactionRecord {
	m := models.TransactionRecord{
		Sequence:      d.Sequence,
		TransactionID: d.TransactionID,
		Kind:          string(d.Kind),
		FromAccountID: nullString(d.FromAccountID),
		ToAccountID:   nullString(d.ToAccountID),
		Amount:        d.Amount,
		CurrencyCode:  d.CurrencyCode,
		ReferenceID:   d.ReferenceID,
		Description:   d.Description,
		Status:        string(d.Status),
		CreatedAt:     d.CreatedAt,
	}
	if d.FailureReason != "" {
		m.FailureReason = sql.NullString{String: string(d.FailureReason), Valid: true}
	}
	if d.CompletedAt != nil {
		m.CompletedAt = sql.NullTime{Time: *d.CompletedAt, Valid: true}
	}
	return m
}

// ToDomainTransactionRecord converts a model row to a domain TransactionRecord.
func ToDomainTransactionRecord(m models.TransactionRecord) domain.TransactionRecord {
	d := domain.TransactionRecord{
		Sequence:      m.Sequence,
		TransactionID: m.TransactionID,
		Kind:          domain.TransactionKind(m.Kind),
		Amount:        m.Amount,
		CurrencyCode:  m.CurrencyCode,
		ReferenceID:   m.ReferenceID,
		Description:   m.Description,
		Status:        domain.TransactionStatus(m.Status),
		CreatedAt:     m.CreatedAt,
	}
	if m.FromAccountID.Valid {
		d.FromAccountID = domain.StringPtr(m.FromAccountID.String)
	}
	if m.ToAccountID.Valid {
		d.ToAccountID = domain.StringPtr(m.ToAccountID.String)
	}
	if m.FailureReason.Valid {
		d.FailureReason = domain.FailureReason(m.FailureReason.String)
	}
	if m.CompletedAt.Valid {
		at := m.CompletedAt.Time
		d.CompletedAt = &at
	}
	return d
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
