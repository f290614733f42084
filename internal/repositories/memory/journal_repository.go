package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	"github.com/SscSPs/transfer_engine/internal/utils/pagination"
)

// FindRecordByID retrieves a record by its transaction id.
func (s *Store) FindRecordByID(ctx context.Context, transactionID string) (*domain.TransactionRecord, error) {
	s.mu.RLock()
	rec, ok := s.records[transactionID]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	rec = cloneRecord(rec)
	return &rec, nil
}

// FindRecordByReference retrieves the record stored for a reference id.
func (s *Store) FindRecordByReference(ctx context.Context, referenceID string) (*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byReference[referenceID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	rec := cloneRecord(s.records[id])
	return &rec, nil
}

// ListRecordsByAccount returns records touching accountID, newest first.
func (s *Store) ListRecordsByAccount(ctx context.Context, accountID string, limit int, nextToken *string) ([]domain.TransactionRecord, *string, error) {
	if limit <= 0 {
		return nil, nil, fmt.Errorf("%w: limit must be positive", apperrors.ErrValidation)
	}

	var before int64 = -1
	if nextToken != nil && *nextToken != "" {
		cursor, err := pagination.DecodeToken(*nextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		before = cursor.Sequence
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byAccount[accountID]
	end := len(ids)
	if before >= 0 {
		end = sort.Search(len(ids), func(i int) bool {
			return s.records[ids[i]].Sequence >= before
		})
	}

	records := make([]domain.TransactionRecord, 0, min(limit, end))
	for i := end - 1; i >= 0 && len(records) < limit; i-- {
		records = append(records, cloneRecord(s.records[ids[i]]))
	}

	var next *string
	if len(records) == limit && end-limit > 0 {
		last := records[len(records)-1]
		token := pagination.EncodeToken(last.CreatedAt, last.Sequence)
		next = &token
	}
	return records, next, nil
}

// SummarizeRecords aggregates the journal by kind, status and currency.
func (s *Store) SummarizeRecords(ctx context.Context) ([]domain.StatsBucket, error) {
	type bucketKey struct {
		kind     domain.TransactionKind
		status   domain.TransactionStatus
		currency string
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	index := make(map[bucketKey]int)
	buckets := make([]domain.StatsBucket, 0)
	for _, rec := range s.records {
		key := bucketKey{rec.Kind, rec.Status, rec.CurrencyCode}
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, domain.StatsBucket{Kind: rec.Kind, Status: rec.Status, CurrencyCode: rec.CurrencyCode})
		}
		buckets[i].Count++
		buckets[i].Volume += rec.Amount
	}
	return buckets, nil
}
