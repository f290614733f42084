package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
	"github.com/SscSPs/transfer_engine/internal/concurrency"
	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/transfer_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
)

// DefaultLockTimeout bounds how long a movement waits for its account locks.
const DefaultLockTimeout = 2 * time.Second

// transferCoordinator drives every movement of value through the same pipeline:
// idempotency guard, ordered locks, one transactional scope with conditional balance updates
// and the journal append, then post-commit notification.
type transferCoordinator struct {
	BaseService
	txManager   portsrepo.TransactionManager
	guard       *IdempotencyGuard
	locker      concurrency.Locker
	publisher   portssvc.EventPublisher
	metrics     MetricsRecorder
	retry       concurrency.RetryPolicy
	lockTimeout time.Duration
	validate    *validator.Validate
	now         func() time.Time
}

// CoordinatorOption is a functional option for configuring the transfer coordinator
type CoordinatorOption func(*transferCoordinator)

// WithLocker sets the account locker. The default is an in-process LocalLocker.
func WithLocker(l concurrency.Locker) CoordinatorOption {
	return func(c *transferCoordinator) {
		if l != nil {
			c.locker = l
		}
	}
}

// WithEventPublisher sets the post-commit publisher.
func WithEventPublisher(p portssvc.EventPublisher) CoordinatorOption {
	return func(c *transferCoordinator) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) CoordinatorOption {
	return func(c *transferCoordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithRetryPolicy overrides the optimistic retry budget.
func WithRetryPolicy(p concurrency.RetryPolicy) CoordinatorOption {
	return func(c *transferCoordinator) {
		c.retry = p
	}
}

// WithLockTimeout overrides DefaultLockTimeout.
func WithLockTimeout(d time.Duration) CoordinatorOption {
	return func(c *transferCoordinator) {
		if d > 0 {
			c.lockTimeout = d
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *transferCoordinator) {
		c.now = now
	}
}

// NewTransferCoordinator creates the coordinator behind TransferSvcFacade.
func NewTransferCoordinator(txManager portsrepo.TransactionManager, guard *IdempotencyGuard, options ...CoordinatorOption) portssvc.TransferSvcFacade {
	c := &transferCoordinator{
		txManager:   txManager,
		guard:       guard,
		locker:      concurrency.NewLocalLocker(),
		publisher:   noopPublisher{},
		metrics:     noopMetrics{},
		retry:       concurrency.DefaultRetryPolicy(),
		lockTimeout: DefaultLockTimeout,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(c)
	}
	return c
}

var _ portssvc.TransferSvcFacade = (*transferCoordinator)(nil)

// movement is the common shape of transfers, deposits and withdrawals.
// from is empty for deposits and to is empty for withdrawals.
type movement struct {
	kind        domain.TransactionKind
	from        string
	to          string
	amount      int64
	referenceID string
	description string
}

func (m movement) accountIDs() []string {
	return concurrency.Order(m.from, m.to)
}

// matches reports whether rec was produced by the same request payload.
func (m movement) matches(rec *domain.TransactionRecord) bool {
	return rec.Kind == m.kind &&
		domain.StringValue(rec.FromAccountID) == m.from &&
		domain.StringValue(rec.ToAccountID) == m.to &&
		rec.Amount == m.amount
}

func (c *transferCoordinator) Execute(ctx context.Context, req domain.TransferRequest) (*domain.TransactionRecord, error) {
	if err := c.validate.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}
	return c.run(ctx, movement{
		kind:        domain.KindTransfer,
		from:        req.FromAccountID,
		to:          req.ToAccountID,
		amount:      req.Amount,
		referenceID: req.ReferenceID,
		description: req.Description,
	})
}

func (c *transferCoordinator) Deposit(ctx context.Context, req domain.FundsRequest) (*domain.TransactionRecord, error) {
	if err := c.validate.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}
	return c.run(ctx, movement{
		kind:        domain.KindDeposit,
		to:          req.AccountID,
		amount:      req.Amount,
		referenceID: req.ReferenceID,
		description: req.Description,
	})
}

func (c *transferCoordinator) Withdraw(ctx context.Context, req domain.FundsRequest) (*domain.TransactionRecord, error) {
	if err := c.validate.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}
	return c.run(ctx, movement{
		kind:        domain.KindWithdrawal,
		from:        req.AccountID,
		amount:      req.Amount,
		referenceID: req.ReferenceID,
		description: req.Description,
	})
}

func (c *transferCoordinator) run(ctx context.Context, m movement) (*domain.TransactionRecord, error) {
	logger := c.GetLogger(ctx).With(
		slog.String("reference_id", m.referenceID),
		slog.String("kind", string(m.kind)))

	return c.guard.Reserve(ctx, m.referenceID, func(work context.Context) (*domain.TransactionRecord, error) {
		start := c.now()

		prior, err := c.guard.Lookup(work, m.referenceID)
		if err != nil {
			c.metrics.ObserveMovement(m.kind, OutcomeError, c.now().Sub(start))
			return nil, err
		}
		if prior != nil {
			c.metrics.ObserveMovement(m.kind, OutcomeReplayed, c.now().Sub(start))
			return c.replay(work, logger, prior, m)
		}

		rec, replayed, err := c.execute(work, logger, m)
		c.metrics.ObserveMovement(m.kind, outcomeOf(rec, replayed, err), c.now().Sub(start))
		if rec == nil || replayed {
			return rec, err
		}

		c.guard.Remember(*rec)
		if rec.Status == domain.TransactionCompleted {
			c.publisher.Publish(work, domain.NewTransferCompletedEvent(*rec))
		}
		return rec, err
	})
}

func outcomeOf(rec *domain.TransactionRecord, replayed bool, err error) string {
	switch {
	case replayed:
		return OutcomeReplayed
	case rec != nil && rec.Status == domain.TransactionCompleted:
		return OutcomeCompleted
	case rec != nil && rec.Status == domain.TransactionFailed:
		return OutcomeFailed
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrAccountNotActive),
		errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrInsufficientFunds):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

// replay returns a previously journaled outcome without touching any balance.
func (c *transferCoordinator) replay(ctx context.Context, logger *slog.Logger, prior *domain.TransactionRecord, m movement) (*domain.TransactionRecord, error) {
	if !m.matches(prior) {
		logger.WarnContext(ctx, "reference id reused with a different payload",
			slog.String("transaction_id", prior.TransactionID))
	}
	logger.InfoContext(ctx, "returning recorded outcome",
		slog.String("transaction_id", prior.TransactionID),
		slog.String("status", string(prior.Status)))
	return prior, failureError(prior)
}

// execute runs attempts until one commits, then resolves lost idempotency races against the
// journal. The bool result reports whether the returned record is a replay.
func (c *transferCoordinator) execute(ctx context.Context, logger *slog.Logger, m movement) (*domain.TransactionRecord, bool, error) {
	policy := c.retry
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error) {
		c.metrics.IncConflictRetry(m.kind)
		logger.DebugContext(ctx, "version conflict, retrying", slog.Int("attempt", attempt))
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}

	var out *outcome
	err := concurrency.Retry(ctx, policy, func(int) error {
		var err error
		out, err = c.attempt(ctx, logger, m)
		return err
	})

	if errors.Is(err, apperrors.ErrDuplicateReference) {
		prior, lerr := c.guard.Lookup(ctx, m.referenceID)
		if lerr != nil {
			return nil, false, lerr
		}
		if prior == nil {
			return nil, false, fmt.Errorf("%w: reference %s reported as duplicate but not found", apperrors.ErrInternal, m.referenceID)
		}
		rec, err := c.replay(ctx, logger, prior, m)
		return rec, true, err
	}
	if err != nil {
		logger.WarnContext(ctx, "movement rejected", slog.String("error", err.Error()))
		return nil, false, err
	}
	return &out.record, false, out.failure
}

// outcome is what one committed attempt produced. failure is set when the record is FAILED.
type outcome struct {
	record  domain.TransactionRecord
	failure error
}

// attempt performs one locked transactional pass.
func (c *transferCoordinator) attempt(ctx context.Context, logger *slog.Logger, m movement) (*outcome, error) {
	st := newStateTracker(ctx, logger)
	st.advance(domain.StateValidated)

	lockCtx, cancel := context.WithTimeout(ctx, c.lockTimeout)
	defer cancel()

	ids := m.accountIDs()
	waitStart := c.now()
	release, err := c.locker.Acquire(lockCtx, ids...)
	c.metrics.ObserveLockWait(c.now().Sub(waitStart))
	if err != nil {
		st.advance(domain.StateFailed)
		return nil, err
	}
	defer release()

	var out outcome
	err = c.txManager.WithinTransaction(lockCtx, func(txCtx context.Context, tx portsrepo.TxRepositories) error {
		accounts, err := tx.Accounts().FindAccountsForUpdate(txCtx, ids)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w: %w", apperrors.ErrLockTimeout, err)
			}
			return err
		}
		currency, err := c.precheck(m, accounts)
		if err != nil {
			return err
		}
		st.advance(domain.StateLocked)

		// Nothing below may be interrupted by the caller or the lock deadline.
		mctx := context.WithoutCancel(txCtx)
		out, err = c.mutate(mctx, tx, st, m, accounts, c.newRecord(m, currency))
		return err
	})
	if err != nil {
		st.advance(domain.StateFailed)
		return nil, err
	}

	rec := out.record

	if rec.Status == domain.TransactionCompleted {
		st.advance(domain.StateCompleted)
		logger.InfoContext(ctx, "movement completed",
			slog.String("transaction_id", rec.TransactionID),
			slog.Int64("amount", m.amount))
	} else {
		logger.InfoContext(ctx, "movement failed",
			slog.String("transaction_id", rec.TransactionID),
			slog.String("reason", string(rec.FailureReason)))
	}
	return &out, nil
}

// precheck validates the locked snapshot. Failures here leave no trace.
func (c *transferCoordinator) precheck(m movement, accounts map[string]domain.Account) (string, error) {
	var currency string
	for _, id := range m.accountIDs() {
		acc, ok := accounts[id]
		if !ok {
			return "", fmt.Errorf("%w: account %s", apperrors.ErrNotFound, id)
		}
		if !acc.IsActive() {
			return "", fmt.Errorf("%w: account %s is %s", apperrors.ErrAccountNotActive, id, acc.Status)
		}
		if currency != "" && acc.CurrencyCode != currency {
			return "", fmt.Errorf("%w: currency mismatch between %s and %s", apperrors.ErrValidation, m.from, m.to)
		}
		currency = acc.CurrencyCode
	}
	if m.to != "" && accounts[m.to].Balance > math.MaxInt64-m.amount {
		return "", fmt.Errorf("%w: credit would overflow account %s", apperrors.ErrValidation, m.to)
	}
	return currency, nil
}

func (c *transferCoordinator) newRecord(m movement, currency string) domain.TransactionRecord {
	return domain.TransactionRecord{
		TransactionID: uuid.NewString(),
		Kind:          m.kind,
		FromAccountID: domain.StringPtr(m.from),
		ToAccountID:   domain.StringPtr(m.to),
		Amount:        m.amount,
		CurrencyCode:  currency,
		ReferenceID:   m.referenceID,
		Description:   m.description,
		Status:        domain.TransactionPending,
		CreatedAt:     c.now(),
	}
}

// mutate applies the debit and credit and journals the outcome inside the open scope.
// A returned error rolls the whole scope back.
func (c *transferCoordinator) mutate(ctx context.Context, tx portsrepo.TxRepositories, st *stateTracker, m movement, accounts map[string]domain.Account, rec domain.TransactionRecord) (outcome, error) {
	store := tx.Accounts()

	var debitedVersion int64
	if m.from != "" {
		v, err := store.ConditionalAdjust(ctx, m.from, -m.amount, accounts[m.from].Version)
		if err != nil {
			reason, ok := failureReasonOf(err)
			if !ok {
				return outcome{}, err
			}
			return c.journalFailure(ctx, tx, st, rec, reason, err)
		}
		debitedVersion = v
	}
	st.advance(domain.StateDebited)

	if m.to != "" {
		if _, err := store.ConditionalAdjust(ctx, m.to, m.amount, accounts[m.to].Version); err != nil {
			reason, ok := failureReasonOf(err)
			if !ok {
				return outcome{}, err
			}
			if m.from != "" {
				if _, cerr := store.ConditionalAdjust(ctx, m.from, m.amount, debitedVersion); cerr != nil {
					return outcome{}, fmt.Errorf("compensate debit of %s: %w", m.from, cerr)
				}
			}
			return c.journalFailure(ctx, tx, st, rec, reason, err)
		}
	}
	st.advance(domain.StateCredited)

	rec.Complete(c.now())
	if err := tx.Journal().AppendRecord(ctx, rec); err != nil {
		return outcome{}, err
	}
	st.advance(domain.StateJournaled)
	return outcome{record: rec}, nil
}

// journalFailure appends a FAILED record; the scope still commits so the failure is auditable.
func (c *transferCoordinator) journalFailure(ctx context.Context, tx portsrepo.TxRepositories, st *stateTracker, rec domain.TransactionRecord, reason domain.FailureReason, cause error) (outcome, error) {
	rec.Fail(reason, c.now())
	if err := tx.Journal().AppendRecord(ctx, rec); err != nil {
		return outcome{}, err
	}
	st.advance(domain.StateFailed)
	return outcome{record: rec, failure: cause}, nil
}

// failureReasonOf classifies business failures that are journaled as FAILED records.
func failureReasonOf(err error) (domain.FailureReason, bool) {
	switch {
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		return domain.FailureInsufficientFunds, true
	case errors.Is(err, apperrors.ErrAccountNotActive):
		return domain.FailureAccountNotActive, true
	case errors.Is(err, apperrors.ErrNotFound):
		return domain.FailureAccountNotFound, true
	}
	return "", false
}

type stateTracker struct {
	ctx    context.Context
	logger *slog.Logger
	state  domain.TransferState
}

func newStateTracker(ctx context.Context, logger *slog.Logger) *stateTracker {
	return &stateTracker{ctx: ctx, logger: logger, state: domain.StateReceived}
}

func (t *stateTracker) advance(next domain.TransferState) {
	if !t.state.CanTransitionTo(next) {
		t.logger.ErrorContext(t.ctx, "illegal transfer state transition",
			slog.String("from", string(t.state)),
			slog.String("to", string(next)))
		return
	}
	t.logger.DebugContext(t.ctx, "transfer state",
		slog.String("from", string(t.state)),
		slog.String("to", string(next)))
	t.state = next
}
