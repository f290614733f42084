package repositories

// RepositoryProvider holds all repository interfaces needed by services.
// This makes passing dependencies to the service container constructor cleaner.
type RepositoryProvider struct {
	AccountRepo AccountRepositoryFacade
	JournalRepo JournalRepositoryFacade
	TxManager   TransactionManager
	// Close releases the underlying connections. It may be nil.
	Close func()
}
