package notify

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
	"github.com/arielskeren/Auraesthetics-sub002/internal/mailer"
)

type fakeMailer struct {
	sent    []mailer.Message
	sendErr error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeAudit struct {
	events []domain.BookingEvent
}

func (f *fakeAudit) InsertBookingEvent(_ context.Context, ev domain.BookingEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func delivery(t *testing.T, key string, ev Event) amqp.Delivery {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return amqp.Delivery{RoutingKey: key, Body: b}
}

func TestWorkerHandle(t *testing.T) {
	ev := Event{
		BookingID:      "b-1",
		ClientName:     "Ava",
		ClientEmail:    "ava@example.com",
		ServiceRef:     "svc-facial",
		ScheduledStart: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		AmountCents:    15000,
	}

	t.Run("finalized event sends the confirmation mail", func(t *testing.T) {
		mail := &fakeMailer{}
		audit := &fakeAudit{}
		w := NewWorker(mail, audit, func() string { return "id-1" })

		w.handle(context.Background(), delivery(t, RouteFinalized, ev))

		if len(mail.sent) != 1 {
			t.Fatalf("expected 1 mail, got %d", len(mail.sent))
		}
		msg := mail.sent[0]
		if msg.To != "ava@example.com" {
			t.Fatalf("wrong recipient %q", msg.To)
		}
		if !strings.Contains(msg.HTML, "£150.00") {
			t.Fatalf("expected formatted amount in body, got %q", msg.HTML)
		}
		if len(audit.events) != 1 || audit.events[0].Type != domain.BookingEventEmailSent {
			t.Fatalf("expected one email_sent event, got %+v", audit.events)
		}
	})

	t.Run("refunded event reports the refunded amount", func(t *testing.T) {
		mail := &fakeMailer{}
		w := NewWorker(mail, &fakeAudit{}, func() string { return "id-1" })

		refunded := ev
		refunded.RefundedCents = 2550
		w.handle(context.Background(), delivery(t, RouteRefunded, refunded))

		if len(mail.sent) != 1 {
			t.Fatalf("expected 1 mail, got %d", len(mail.sent))
		}
		if !strings.Contains(mail.sent[0].HTML, "£25.50") {
			t.Fatalf("expected refunded amount, got %q", mail.sent[0].HTML)
		}
	})

	t.Run("missing email is skipped", func(t *testing.T) {
		mail := &fakeMailer{}
		audit := &fakeAudit{}
		w := NewWorker(mail, audit, func() string { return "id-1" })

		anon := ev
		anon.ClientEmail = ""
		w.handle(context.Background(), delivery(t, RouteFinalized, anon))

		if len(mail.sent) != 0 || len(audit.events) != 0 {
			t.Fatalf("expected nothing sent or recorded")
		}
	})

	t.Run("unknown routing key is ignored", func(t *testing.T) {
		mail := &fakeMailer{}
		w := NewWorker(mail, &fakeAudit{}, func() string { return "id-1" })

		w.handle(context.Background(), delivery(t, "booking.unknown", ev))

		if len(mail.sent) != 0 {
			t.Fatalf("expected no mail for unknown route")
		}
	})

	t.Run("send failure records no audit event", func(t *testing.T) {
		mail := &fakeMailer{sendErr: context.DeadlineExceeded}
		audit := &fakeAudit{}
		w := NewWorker(mail, audit, func() string { return "id-1" })

		w.handle(context.Background(), delivery(t, RouteCancelled, ev))

		if len(audit.events) != 0 {
			t.Fatalf("expected no email_sent event after failed send")
		}
	})
}

func TestFormatCents(t *testing.T) {
	cases := map[int64]string{
		0:     "£0.00",
		5:     "£0.05",
		15000: "£150.00",
		2550:  "£25.50",
	}
	for cents, want := range cases {
		if got := formatCents(cents); got != want {
			t.Errorf("formatCents(%d) = %q, want %q", cents, got, want)
		}
	}
}
