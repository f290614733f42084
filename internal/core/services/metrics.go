package services

import (
	"context"
	"time"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
)

// Movement outcomes reported to a MetricsRecorder.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
	OutcomeReplayed  = "replayed"
	OutcomeError     = "error"
)

// MetricsRecorder receives coordinator measurements.
type MetricsRecorder interface {
	ObserveMovement(kind domain.TransactionKind, outcome string, elapsed time.Duration)
	ObserveLockWait(elapsed time.Duration)
	IncConflictRetry(kind domain.TransactionKind)
}

type noopMetrics struct{}

func (noopMetrics) ObserveMovement(domain.TransactionKind, string, time.Duration) {}
func (noopMetrics) ObserveLockWait(time.Duration)                                 {}
func (noopMetrics) IncConflictRetry(domain.TransactionKind)                       {}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.TransferCompletedEvent) {}
