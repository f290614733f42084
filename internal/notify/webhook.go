package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/SscSPs/transfer_engine/internal/core/domain"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
)

const (
	SignatureHeader = "X-Ledger-Signature"
	EventHeader     = "X-Ledger-Event"
	eventName       = "transfer.completed"
)

// WebhookOptions configures a WebhookPublisher.
type WebhookOptions struct {
	URL    string
	Secret string
	// QueueSize bounds the number of undelivered events; further events are dropped.
	QueueSize int
	Timeout   time.Duration
	// ConsecutiveFailures opens the breaker; it half-opens again after OpenTimeout.
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	Client              *http.Client
	Recorder            DeliveryRecorder
	Logger              *slog.Logger
}

// WebhookPublisher POSTs signed JSON events to a single endpoint from a background worker.
type WebhookPublisher struct {
	opts    WebhookOptions
	queue   chan domain.TransferCompletedEvent
	breaker *gobreaker.CircuitBreaker
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var _ portssvc.EventPublisher = (*WebhookPublisher)(nil)

// NewWebhookPublisher starts the delivery worker. Call Close to drain and stop it.
func NewWebhookPublisher(opts WebhookOptions) (*WebhookPublisher, error) {
	if opts.URL == "" {
		return nil, errors.New("webhook url is required")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.ConsecutiveFailures == 0 {
		opts.ConsecutiveFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	p := &WebhookPublisher{
		opts:  opts,
		queue: make(chan domain.TransferCompletedEvent, opts.QueueSize),
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			opts.Logger.Warn("webhook circuit breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	p.wg.Add(1)
	go p.run()
	return p, nil
}

// Publish enqueues the event without blocking.
func (p *WebhookPublisher) Publish(ctx context.Context, event domain.TransferCompletedEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.opts.Recorder.ObserveDelivery("webhook", ResultDropped)
		return
	}
	select {
	case p.queue <- event:
	default:
		p.opts.Recorder.ObserveDelivery("webhook", ResultDropped)
		p.opts.Logger.WarnContext(ctx, "webhook queue full, dropping event",
			slog.String("transaction_id", event.TransactionID))
	}
}

// Close stops accepting events and waits for queued ones to be attempted.
func (p *WebhookPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *WebhookPublisher) run() {
	defer p.wg.Done()
	for event := range p.queue {
		p.deliver(event)
	}
}

func (p *WebhookPublisher) deliver(event domain.TransferCompletedEvent) {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.post(event)
	})
	switch {
	case err == nil:
		p.opts.Recorder.ObserveDelivery("webhook", ResultDelivered)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		p.opts.Recorder.ObserveDelivery("webhook", ResultRejected)
		p.opts.Logger.Debug("webhook circuit open, skipping event",
			slog.String("transaction_id", event.TransactionID))
	default:
		p.opts.Recorder.ObserveDelivery("webhook", ResultFailed)
		p.opts.Logger.Warn("webhook delivery failed",
			slog.String("transaction_id", event.TransactionID),
			slog.String("error", err.Error()))
	}
}

func (p *WebhookPublisher) post(event domain.TransferCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, eventName)
	if p.opts.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(p.opts.Secret, body))
	}

	resp, err := p.opts.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the signature header value for body: "sha256=" followed by the hex HMAC.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header produced by Sign.
func Verify(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
