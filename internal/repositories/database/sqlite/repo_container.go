package sqlite

import (
	"database/sql"

	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
)

// NewRepositoryProvider wires the sqlite repositories around one handle.
func NewRepositoryProvider(db *sql.DB) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		AccountRepo: &AccountRepository{db: db},
		JournalRepo: &JournalRepository{db: db},
		TxManager:   &BaseRepository{DB: db},
		Close:       func() { _ = db.Close() },
	}
}
