// Package notify carries post-commit booking events over RabbitMQ to the
// notification worker. Publishing is always best-effort; a broker outage
// never fails the request that produced the event.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RouteFinalized = "booking.finalized"
	RouteCancelled = "booking.cancelled"
	RouteRefunded  = "booking.refunded"
	RouteFailed    = "payment.failed"
)

// Event is the message body for every booking.* routing key.
type Event struct {
	Kind           string    `json:"kind"`
	BookingID      string    `json:"booking_id"`
	ClientName     string    `json:"client_name"`
	ClientEmail    string    `json:"client_email"`
	ServiceRef     string    `json:"service_ref"`
	ScheduledStart time.Time `json:"scheduled_start"`
	AmountCents    int64     `json:"amount_cents"`
	RefundedCents  int64     `json:"refunded_cents,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *Publisher) Publish(ctx context.Context, key string, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        b,
	})
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
