package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
)

const subscriberBuffer = 32

type subscriber struct {
	accountID string
	events    chan domain.TransferCompletedEvent
	once      sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.events) })
}

// Broadcaster fans completed movements out to in-process subscribers, such as SSE streams.
// A subscriber that falls behind loses events rather than slowing publishers down.
type Broadcaster struct {
	mu       sync.RWMutex
	subs     map[*subscriber]struct{}
	recorder DeliveryRecorder
	logger   *slog.Logger
}

// NewBroadcaster creates an empty broadcaster. recorder may be nil.
func NewBroadcaster(recorder DeliveryRecorder, logger *slog.Logger) *Broadcaster {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{subs: make(map[*subscriber]struct{}), recorder: recorder, logger: logger}
}

var _ portssvc.EventPublisher = (*Broadcaster)(nil)

// Subscribe registers interest in events touching accountID. The returned cancel function
// unregisters and closes the channel; it is safe to call more than once.
func (b *Broadcaster) Subscribe(accountID string) (<-chan domain.TransferCompletedEvent, func()) {
	sub := &subscriber{accountID: accountID, events: make(chan domain.TransferCompletedEvent, subscriberBuffer)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub.events, func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		sub.close()
	}
}

// Close ends every live subscription, closing their channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		delete(b.subs, sub)
		sub.close()
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) Publish(ctx context.Context, event domain.TransferCompletedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if !touches(event, sub.accountID) {
			continue
		}
		select {
		case sub.events <- event:
			b.recorder.ObserveDelivery("sse", ResultDelivered)
		default:
			b.recorder.ObserveDelivery("sse", ResultDropped)
			b.logger.WarnContext(ctx, "sse subscriber is behind, dropping event",
				slog.String("account_id", sub.accountID),
				slog.String("transaction_id", event.TransactionID))
		}
	}
}

func touches(event domain.TransferCompletedEvent, accountID string) bool {
	return domain.StringValue(event.FromAccountID) == accountID || domain.StringValue(event.ToAccountID) == accountID
}
