package pgsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
	"github.com/SscSPs/transfer_engine/internal/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes the repositories translate.
const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgNumericOutOfRange    = "22003"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	Pool *pgxpool.Pool
}

var _ portsrepo.TransactionManager = (*BaseRepository)(nil)

// Begin starts a new database transaction
func (r *BaseRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: waiting for database connection: %w", apperrors.ErrLockTimeout, err)
		}
		return nil, apperrors.NewAppError(500, "failed to begin transaction", err)
	}
	return tx, nil
}

// Commit commits a transaction
func (r *BaseRepository) Commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		if conflict := translateConflict(err); conflict != nil {
			return conflict
		}
		return apperrors.NewAppError(500, "failed to commit transaction", err)
	}
	return nil
}

// Rollback rolls back a transaction
func (r *BaseRepository) Rollback(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) && !errors.Is(err, sql.ErrTxDone) {
		return apperrors.NewAppError(500, "failed to rollback transaction", err)
	}
	return nil
}

// WithinTransaction runs fn inside one database transaction. The deferred rollback also runs
// while a panic unwinds, so a panicking fn never leaves the transaction open.
func (r *BaseRepository) WithinTransaction(ctx context.Context, fn portsrepo.TxFunc) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := r.Rollback(context.WithoutCancel(ctx), tx); rbErr != nil {
			middleware.GetLoggerFromCtx(ctx).Error("Failed to roll back transaction", slog.String("error", rbErr.Error()))
		}
	}()

	if err := fn(ctx, &txRepositories{accounts: &pgxAccountTx{q: tx}, journal: &pgxJournalTx{q: tx}}); err != nil {
		return err
	}

	// the outcome is decided once fn succeeded, a late cancellation must not abort the commit
	if err := r.Commit(context.WithoutCancel(ctx), tx); err != nil {
		return err
	}
	committed = true
	return nil
}

type txRepositories struct {
	accounts *pgxAccountTx
	journal  *pgxJournalTx
}

func (t *txRepositories) Accounts() portsrepo.AccountTxStore { return t.accounts }
func (t *txRepositories) Journal() portsrepo.JournalTxStore  { return t.journal }

// translateConflict maps lock and serialization aborts to a retryable version conflict.
func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected) {
		return fmt.Errorf("%w: %s", apperrors.ErrVersionConflict, pgErr.Message)
	}
	return nil
}

// persistenceError wraps an unexpected driver error.
func persistenceError(msg string, err error) error {
	if conflict := translateConflict(err); conflict != nil {
		return conflict
	}
	return apperrors.NewAppError(500, msg, err)
}
