package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
	"github.com/SscSPs/transfer_engine/internal/middleware"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BaseRepository provides the transactional scope for the SQLite backend.
//
// SQLite has no row locks. The connection is opened with _txlock=immediate so each scope holds
// the database write lock from BEGIN, and every balance write is still guarded by its version.
type BaseRepository struct {
	DB *sql.DB
}

var _ portsrepo.TransactionManager = (*BaseRepository)(nil)

// WithinTransaction runs fn inside one database transaction.
//
// ctx bounds the wait for the connection only. database/sql rolls a transaction back when the
// context it was begun with ends, so the transaction itself is bound to a context without
// cancellation and lives until fn returns.
func (r *BaseRepository) WithinTransaction(ctx context.Context, fn portsrepo.TxFunc) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return beginError(err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return beginError(err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			middleware.GetLoggerFromCtx(ctx).Error("Failed to roll back transaction", slog.String("error", rbErr.Error()))
		}
	}()

	if err := fn(ctx, &txRepositories{accounts: &accountTx{q: tx}, journal: &journalTx{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return translateError("failed to commit transaction", err)
	}
	committed = true
	return nil
}

type txRepositories struct {
	accounts *accountTx
	journal  *journalTx
}

func (t *txRepositories) Accounts() portsrepo.AccountTxStore { return t.accounts }
func (t *txRepositories) Journal() portsrepo.JournalTxStore  { return t.journal }

// beginError reports a deadline hit while waiting for the connection as a lock timeout.
func beginError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: waiting for database connection: %w", apperrors.ErrLockTimeout, err)
	}
	return translateError("failed to begin transaction", err)
}

// translateError maps driver errors onto the application error set.
func translateError(msg string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: database busy", apperrors.ErrVersionConflict)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			if strings.Contains(sqliteErr.Error(), "reference_id") {
				return fmt.Errorf("%w: %s", apperrors.ErrDuplicateReference, msg)
			}
			return fmt.Errorf("%w: %s", apperrors.ErrDuplicate, msg)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%w: %s", apperrors.ErrValidation, sqliteErr.Error())
		}
	}
	return apperrors.NewAppError(500, msg, err)
}
