package repositories

import (
	"context"
)

// TxRepositories exposes the stores bound to one transactional scope.
type TxRepositories interface {
	Accounts() AccountTxStore
	Journal() JournalTxStore
}

// TxFunc is the body of a transactional scope.
type TxFunc func(ctx context.Context, tx TxRepositories) error

// TransactionManager defines methods for transaction management
type TransactionManager interface {
	// WithinTransaction runs fn in one atomic scope. The scope commits when fn returns nil
	// and rolls back when fn returns an error or panics; a panic is re-raised after rollback.
	// Backends that validate optimistically report a lost race at commit as apperrors.ErrVersionConflict.
	WithinTransaction(ctx context.Context, fn TxFunc) error
}
