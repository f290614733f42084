package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
)

// AMQPChannel is the part of *amqp.Channel the publisher uses.
type AMQPChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a topic exchange with routing key
// "transfer.completed.<kind>".
type AMQPPublisher struct {
	channel  AMQPChannel
	conn     *amqp.Connection
	exchange string
	timeout  time.Duration
	recorder DeliveryRecorder
	logger   *slog.Logger
}

var _ portssvc.EventPublisher = (*AMQPPublisher)(nil)

// DialAMQP connects to url and declares a durable topic exchange.
func DialAMQP(url, exchange string, recorder DeliveryRecorder, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	p := NewAMQPPublisher(ch, exchange, recorder, logger)
	p.conn = conn
	return p, nil
}

// NewAMQPPublisher wraps an already open channel.
func NewAMQPPublisher(ch AMQPChannel, exchange string, recorder DeliveryRecorder, logger *slog.Logger) *AMQPPublisher {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{channel: ch, exchange: exchange, timeout: 2 * time.Second, recorder: recorder, logger: logger}
}

// RoutingKey returns the key an event is published under.
func RoutingKey(event domain.TransferCompletedEvent) string {
	return eventName + "." + strings.ToLower(string(event.Kind))
}

func (p *AMQPPublisher) Publish(ctx context.Context, event domain.TransferCompletedEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		p.recorder.ObserveDelivery("amqp", ResultFailed)
		p.logger.ErrorContext(ctx, "marshal event", slog.String("error", err.Error()))
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	err = p.channel.PublishWithContext(pubCtx, p.exchange, RoutingKey(event), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.TransactionID,
		Timestamp:    event.CompletedAt,
		Type:         eventName,
		Body:         body,
	})
	if err != nil {
		p.recorder.ObserveDelivery("amqp", ResultFailed)
		p.logger.WarnContext(ctx, "amqp publish failed",
			slog.String("transaction_id", event.TransactionID),
			slog.String("error", err.Error()))
		return
	}
	p.recorder.ObserveDelivery("amqp", ResultDelivered)
}

// Close closes the channel and, when DialAMQP opened it, the connection.
func (p *AMQPPublisher) Close() error {
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
