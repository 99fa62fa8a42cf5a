// Package publisher announces completed checkouts to downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/segmentio/kafka-go"
)

const (
	CheckoutCompletedTopic = "checkout-completed"
	eventTypeCompleted     = "CheckoutCompleted"
	defaultFlushTick       = time.Second
	maxBatch               = 100
)

type OrderEventPublisher interface {
	Enqueue(order *domain.Order) error
}

type NopPublisher struct{}

func (NopPublisher) Enqueue(*domain.Order) error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type orderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type completedEvent struct {
	OrderID       string      `json:"order_id"`
	CheckoutID    string      `json:"checkout_id"`
	SessionID     string      `json:"session_id"`
	PaymentID     string      `json:"payment_id"`
	CustomerEmail string      `json:"customer_email"`
	Items         []orderItem `json:"items"`
	TotalAmount   string      `json:"total_amount"`
	Currency      string      `json:"currency"`
	CompletedAt   time.Time   `json:"completed_at"`
}

// KafkaPublisher queues events in memory and writes them on a ticker, so a
// slow broker never holds up a checkout. Events that fail to write stay
// queued for the next tick; when the broker rejects only part of a batch, only
// the rejected events stay.
type KafkaPublisher struct {
	mu        sync.Mutex
	queue     []kafka.Message
	flushTick time.Duration
	writer    messageWriter
	logger    *slog.Logger
}

func NewKafkaPublisher(logger *slog.Logger, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  CheckoutCompletedTopic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{flushTick: defaultFlushTick, writer: w, logger: logger}
}

func (p *KafkaPublisher) Enqueue(order *domain.Order) error {
	items := make([]orderItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, orderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}
	payload, err := json.Marshal(completedEvent{
		OrderID:       order.ID,
		CheckoutID:    order.CheckoutID,
		SessionID:     order.SessionID,
		PaymentID:     order.PaymentID,
		CustomerEmail: order.Customer.Email,
		Items:         items,
		TotalAmount:   order.Totals.Total.StringFixed(2),
		Currency:      order.Totals.Currency,
		CompletedAt:   order.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal checkout completed event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.CheckoutID), // checkout_id for ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventTypeCompleted)},
		},
	}

	p.mu.Lock()
	p.queue = append(p.queue, msg)
	p.mu.Unlock()
	return nil
}

// Run flushes until ctx is cancelled, then makes one last attempt with a
// short deadline.
func (p *KafkaPublisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.flushTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.flush(ctx)
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			p.flush(drainCtx)
			cancel()
			return
		}
	}
}

func (p *KafkaPublisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) flush(ctx context.Context) int {
	p.mu.Lock()
	n := min(len(p.queue), maxBatch)
	batch := make([]kafka.Message, n)
	copy(batch, p.queue[:n])
	p.mu.Unlock()

	if n == 0 {
		return 0
	}

	err := p.writer.WriteMessages(ctx, batch...)
	if err == nil {
		p.mu.Lock()
		p.queue = p.queue[n:]
		p.mu.Unlock()
		return n
	}

	var perMessage kafka.WriteErrors
	if !errors.As(err, &perMessage) || len(perMessage) != n {
		p.logger.WarnContext(ctx, "failed to publish checkout events", "count", n, "error", err)
		return 0
	}

	// Only the messages the broker rejected are retried.
	failed := make([]kafka.Message, 0, perMessage.Count())
	for i, werr := range perMessage {
		if werr != nil {
			failed = append(failed, batch[i])
		}
	}
	p.mu.Lock()
	p.queue = append(failed, p.queue[n:]...)
	p.mu.Unlock()

	p.logger.WarnContext(ctx, "some checkout events failed to publish",
		"count", n, "failed", len(failed), "error", err)
	return n - len(failed)
}
