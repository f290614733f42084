package pgsql

import (
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRepositoryProvider wires the postgres repositories around one pool.
func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		AccountRepo: newPgxAccountRepository(dbPool),
		JournalRepo: newPgxJournalRepository(dbPool),
		TxManager:   &BaseRepository{Pool: dbPool},
		Close:       dbPool.Close,
	}
}
