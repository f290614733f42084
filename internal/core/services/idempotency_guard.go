package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
)

// DefaultIdempotencyCacheSize is the number of finalized outcomes kept in memory.
const DefaultIdempotencyCacheSize = 10000

// IdempotencyGuard makes a reference id map to exactly one movement.
//
// Within a process, concurrent requests for one reference id share a single execution. Across
// processes the journal's unique reference id decides the winner and losers read its record.
type IdempotencyGuard struct {
	BaseService
	journal portsrepo.JournalReader
	cache   *lru.Cache[string, domain.TransactionRecord]
	flights singleflight.Group
}

// NewIdempotencyGuard creates a guard backed by journal. A non-positive cacheSize selects
// DefaultIdempotencyCacheSize.
func NewIdempotencyGuard(journal portsrepo.JournalReader, cacheSize int) (*IdempotencyGuard, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultIdempotencyCacheSize
	}
	cache, err := lru.New[string, domain.TransactionRecord](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create idempotency cache: %w", err)
	}
	return &IdempotencyGuard{journal: journal, cache: cache}, nil
}

// Lookup returns the finalized outcome stored for referenceID, or nil when there is none.
func (g *IdempotencyGuard) Lookup(ctx context.Context, referenceID string) (*domain.TransactionRecord, error) {
	if rec, ok := g.cache.Get(referenceID); ok {
		return &rec, nil
	}
	rec, err := g.journal.FindRecordByReference(ctx, referenceID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup reference %s: %w", referenceID, err)
	}
	if rec.IsFinal() {
		g.cache.Add(referenceID, *rec)
	}
	return rec, nil
}

// Remember caches a finalized outcome. Non-final records are ignored.
func (g *IdempotencyGuard) Remember(rec domain.TransactionRecord) {
	if rec.ReferenceID == "" || !rec.IsFinal() {
		return
	}
	g.cache.Add(rec.ReferenceID, rec)
}

type flightResult struct {
	record *domain.TransactionRecord
	err    error
}

// Reserve runs fn at most once at a time per referenceID. Callers arriving while fn runs wait
// for it and receive the same outcome.
//
// fn gets a context detached from the caller's cancellation: once started it runs to
// completion. A caller whose ctx ends stops waiting and gets ctx.Err() instead.
func (g *IdempotencyGuard) Reserve(ctx context.Context, referenceID string, fn func(ctx context.Context) (*domain.TransactionRecord, error)) (*domain.TransactionRecord, error) {
	work := context.WithoutCancel(ctx)
	ch := g.flights.DoChan(referenceID, func() (any, error) {
		rec, err := fn(work)
		return flightResult{record: rec, err: err}, nil
	})

	select {
	case res := <-ch:
		out := res.Val.(flightResult)
		if res.Shared {
			g.LogDebug(ctx, "shared in-flight outcome", slog.String("reference_id", referenceID))
		}
		if out.record == nil {
			return nil, out.err
		}
		rec := *out.record
		return &rec, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// failureError maps a FAILED record back to the error its caller originally received.
func failureError(rec *domain.TransactionRecord) error {
	if rec == nil || rec.Status != domain.TransactionFailed {
		return nil
	}
	switch rec.FailureReason {
	case domain.FailureInsufficientFunds:
		return fmt.Errorf("%w: transaction %s", apperrors.ErrInsufficientFunds, rec.TransactionID)
	case domain.FailureAccountNotActive:
		return fmt.Errorf("%w: transaction %s", apperrors.ErrAccountNotActive, rec.TransactionID)
	case domain.FailureAccountNotFound:
		return fmt.Errorf("%w: transaction %s", apperrors.ErrNotFound, rec.TransactionID)
	default:
		return fmt.Errorf("%w: transaction %s failed", apperrors.ErrValidation, rec.TransactionID)
	}
}
