package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
	"github.com/arielskeren/Auraesthetics-sub002/internal/mailer"
)

// AuditLog is the slice of the ledger the worker appends email_sent events
// to. Failures to append are logged only; email state is not authoritative.
type AuditLog interface {
	InsertBookingEvent(ctx context.Context, ev domain.BookingEvent) error
}

// Worker consumes booking events and sends the matching transactional
// email. Messages are acked after a send attempt either way: notification
// delivery is best-effort and never retried by this core.
type Worker struct {
	mail  mailer.Mailer
	audit AuditLog
	newID func() string

	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewWorker(mail mailer.Mailer, audit AuditLog, newID func() string) *Worker {
	return &Worker{mail: mail, audit: audit, newID: newID}
}

func (w *Worker) Connect(url, exchange, queue string) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	for _, key := range []string{RouteFinalized, RouteCancelled, RouteRefunded} {
		if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	w.conn = conn
	w.ch = ch
	w.queue = q.Name
	return nil
}

func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.ch.ConsumeWithContext(ctx, w.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.handle(ctx, d)
			_ = d.Ack(false)
		}
	}
}

func (w *Worker) Close() error {
	if w.ch != nil {
		_ = w.ch.Close()
	}
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var ev Event
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		logrus.Errorf("notify: bad event body on %s: %v", d.RoutingKey, err)
		return
	}
	if ev.ClientEmail == "" {
		return
	}

	msg, ok := composeMail(d.RoutingKey, ev)
	if !ok {
		return
	}

	if err := w.mail.Send(ctx, msg); err != nil {
		logrus.Errorf("notify: send %s for booking %s: %v", d.RoutingKey, ev.BookingID, err)
		return
	}

	data, _ := json.Marshal(map[string]string{"kind": d.RoutingKey, "to": ev.ClientEmail})
	err := w.audit.InsertBookingEvent(ctx, domain.BookingEvent{
		ID:        w.newID(),
		BookingID: ev.BookingID,
		Type:      domain.BookingEventEmailSent,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		logrus.Errorf("notify: record email_sent for booking %s: %v", ev.BookingID, err)
	}
}

func composeMail(route string, ev Event) (mailer.Message, bool) {
	switch route {
	case RouteFinalized:
		return mailer.Message{
			To:      ev.ClientEmail,
			Subject: "Your booking is confirmed",
			HTML: fmt.Sprintf(
				"<p>Hi %s,</p><p>Your %s appointment on %s is confirmed. Amount paid: %s.</p>",
				ev.ClientName, ev.ServiceRef, ev.ScheduledStart.Format("Mon 2 Jan 2006 15:04"), formatCents(ev.AmountCents),
			),
		}, true
	case RouteCancelled:
		return mailer.Message{
			To:      ev.ClientEmail,
			Subject: "Your booking has been cancelled",
			HTML: fmt.Sprintf(
				"<p>Hi %s,</p><p>Your %s appointment has been cancelled. Refunded: %s.</p>",
				ev.ClientName, ev.ServiceRef, formatCents(ev.RefundedCents),
			),
		}, true
	case RouteRefunded:
		return mailer.Message{
			To:      ev.ClientEmail,
			Subject: "Your refund has been processed",
			HTML: fmt.Sprintf(
				"<p>Hi %s,</p><p>A refund of %s has been issued for your %s booking.</p>",
				ev.ClientName, formatCents(ev.RefundedCents), ev.ServiceRef,
			),
		}, true
	}
	return mailer.Message{}, false
}

func formatCents(cents int64) string {
	return fmt.Sprintf("£%d.%02d", cents/100, cents%100)
}
