// Package notify delivers completed movements to interested parties after commit.
// Every sink is best effort: failures are logged and counted, never reported to the movement.
package notify

import (
	"context"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
)

// Delivery results reported to a DeliveryRecorder.
const (
	ResultDelivered = "delivered"
	ResultDropped   = "dropped"
	ResultFailed    = "failed"
	ResultRejected  = "rejected" // circuit open
)

// DeliveryRecorder counts delivery attempts per sink.
type DeliveryRecorder interface {
	ObserveDelivery(sink, result string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveDelivery(string, string) {}

// Fanout forwards each event to every publisher in order.
type Fanout []portssvc.EventPublisher

var _ portssvc.EventPublisher = Fanout(nil)

func (f Fanout) Publish(ctx context.Context, event domain.TransferCompletedEvent) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, event)
		}
	}
}
