package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
)

// Store is an in-process ledger store.
//
// Transactional scopes stage copies of the accounts they touch and validate the versions they
// read when committing, so concurrent scopes never observe each other's uncommitted writes.
type Store struct {
	mu          sync.RWMutex
	accounts    map[string]domain.Account
	records     map[string]domain.TransactionRecord
	byReference map[string]string
	byAccount   map[string][]string // transaction ids in sequence order
	sequence    int64
	now         func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:    make(map[string]domain.Account),
		records:     make(map[string]domain.TransactionRecord),
		byReference: make(map[string]string),
		byAccount:   make(map[string][]string),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NewRepositoryProvider exposes a store through the repository ports.
func NewRepositoryProvider(store *Store) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		AccountRepo: store,
		JournalRepo: store,
		TxManager:   store,
	}
}

var (
	_ portsrepo.AccountRepositoryFacade = (*Store)(nil)
	_ portsrepo.JournalRepositoryFacade = (*Store)(nil)
	_ portsrepo.TransactionManager      = (*Store)(nil)
)

// WithinTransaction runs fn against a staged view of the store and publishes the staged
// changes atomically when fn succeeds.
func (s *Store) WithinTransaction(ctx context.Context, fn portsrepo.TxFunc) error {
	tx := &storeTx{
		store:        s,
		staged:       make(map[string]domain.Account),
		readVersions: make(map[string]int64),
		pendingRefs:  make(map[string]struct{}),
	}
	defer func() {
		if p := recover(); p != nil {
			tx.discard()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		tx.discard()
		return err
	}
	return tx.commit()
}

type storeTx struct {
	store        *Store
	staged       map[string]domain.Account
	readVersions map[string]int64
	pending      []domain.TransactionRecord
	pendingRefs  map[string]struct{}
	done         bool
}

var (
	_ portsrepo.TxRepositories = (*storeTx)(nil)
	_ portsrepo.AccountTxStore = (*storeTx)(nil)
	_ portsrepo.JournalTxStore = (*storeTx)(nil)
)

func (t *storeTx) Accounts() portsrepo.AccountTxStore { return t }
func (t *storeTx) Journal() portsrepo.JournalTxStore  { return t }

func (t *storeTx) ensureOpen() error {
	if t.done {
		return apperrors.NewAppError(500, "transaction already finished", nil)
	}
	return nil
}

// stage returns the working copy of an account, reading it from committed state on first use.
func (t *storeTx) stage(accountID string) (domain.Account, error) {
	if acc, ok := t.staged[accountID]; ok {
		return acc, nil
	}
	t.store.mu.RLock()
	acc, ok := t.store.accounts[accountID]
	t.store.mu.RUnlock()
	if !ok {
		return domain.Account{}, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
	}
	t.staged[accountID] = acc
	t.readVersions[accountID] = acc.Version
	return acc, nil
}

func (t *storeTx) FindAccountsForUpdate(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	ids := append([]string(nil), accountIDs...)
	sort.Strings(ids)

	result := make(map[string]domain.Account, len(ids))
	for _, id := range ids {
		acc, err := t.stage(id)
		if err != nil {
			return nil, err
		}
		result[id] = acc
	}
	return result, nil
}

func (t *storeTx) ConditionalAdjust(ctx context.Context, accountID string, delta int64, expectedVersion int64) (int64, error) {
	if err := t.ensureOpen(); err != nil {
		return 0, err
	}
	acc, err := t.stage(accountID)
	if err != nil {
		return 0, err
	}
	if err := checkAdjust(acc, delta, expectedVersion); err != nil {
		return 0, err
	}

	acc.Balance += delta
	acc.Version++
	acc.LastUpdatedAt = t.store.now()
	t.staged[accountID] = acc
	return acc.Version, nil
}

func (t *storeTx) UpdateAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus, expectedVersion int64) (int64, error) {
	if err := t.ensureOpen(); err != nil {
		return 0, err
	}
	acc, err := t.stage(accountID)
	if err != nil {
		return 0, err
	}
	if acc.Version != expectedVersion {
		return 0, fmt.Errorf("%w: account %s at version %d, expected %d", apperrors.ErrVersionConflict, accountID, acc.Version, expectedVersion)
	}

	acc.Status = status
	acc.Version++
	acc.LastUpdatedAt = t.store.now()
	t.staged[accountID] = acc
	return acc.Version, nil
}

func (t *storeTx) AppendRecord(ctx context.Context, record domain.TransactionRecord) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	if record.TransactionID == "" || record.ReferenceID == "" {
		return fmt.Errorf("%w: record requires transaction and reference ids", apperrors.ErrValidation)
	}
	if _, ok := t.pendingRefs[record.ReferenceID]; ok {
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateReference, record.ReferenceID)
	}
	t.store.mu.RLock()
	_, exists := t.store.byReference[record.ReferenceID]
	t.store.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateReference, record.ReferenceID)
	}

	t.pendingRefs[record.ReferenceID] = struct{}{}
	t.pending = append(t.pending, cloneRecord(record))
	return nil
}

func (t *storeTx) commit() error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, readVersion := range t.readVersions {
		if current, ok := s.accounts[id]; !ok || current.Version != readVersion {
			return fmt.Errorf("%w: account %s changed before commit", apperrors.ErrVersionConflict, id)
		}
	}
	for ref := range t.pendingRefs {
		if _, exists := s.byReference[ref]; exists {
			return fmt.Errorf("%w: %s", apperrors.ErrDuplicateReference, ref)
		}
	}

	for id, acc := range t.staged {
		s.accounts[id] = acc
	}
	for _, rec := range t.pending {
		s.sequence++
		rec.Sequence = s.sequence
		s.records[rec.TransactionID] = rec
		s.byReference[rec.ReferenceID] = rec.TransactionID
		for _, accountID := range []*string{rec.FromAccountID, rec.ToAccountID} {
			if accountID != nil {
				s.byAccount[*accountID] = append(s.byAccount[*accountID], rec.TransactionID)
			}
		}
	}
	return nil
}

func (t *storeTx) discard() {
	t.done = true
	t.staged = nil
	t.pending = nil
}

func checkAdjust(acc domain.Account, delta int64, expectedVersion int64) error {
	if acc.Version != expectedVersion {
		return fmt.Errorf("%w: account %s at version %d, expected %d", apperrors.ErrVersionConflict, acc.AccountID, acc.Version, expectedVersion)
	}
	if !acc.IsActive() {
		return fmt.Errorf("%w: account %s is %s", apperrors.ErrAccountNotActive, acc.AccountID, acc.Status)
	}
	if acc.Balance+delta < 0 {
		return fmt.Errorf("%w: account %s", apperrors.ErrInsufficientFunds, acc.AccountID)
	}
	if delta > 0 && acc.Balance+delta < acc.Balance {
		return fmt.Errorf("%w: balance overflow on account %s", apperrors.ErrValidation, acc.AccountID)
	}
	return nil
}

func cloneRecord(r domain.TransactionRecord) domain.TransactionRecord {
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		r.CompletedAt = &at
	}
	return r
}
