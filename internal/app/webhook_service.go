package app

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/arielskeren/Auraesthetics-sub002/internal/clock"
	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
)

// WebhookLedger is the slice of the ledger webhook reconciliation touches.
type WebhookLedger interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetBookingByHoldID(ctx context.Context, holdID string) (domain.Booking, error)
	GetBookingByPaymentRef(ctx context.Context, ref string) (domain.Booking, error)
	SetBookingStatus(ctx context.Context, bookingID string, status domain.PaymentStatus) error
	InsertBookingEvent(ctx context.Context, ev domain.BookingEvent) error
}

// Finalizer is what payment-succeeded deliveries delegate to.
type Finalizer interface {
	Finalize(ctx context.Context, in FinalizeInput) (FinalizeResult, error)
}

// WebhookService applies asynchronous, possibly duplicate or out-of-order
// gateway events to the ledger. The transport has already verified the
// payload; this service trusts it but re-verifies money state through the
// gateway where it matters (via the Finalizer).
type WebhookService struct {
	ledger     WebhookLedger
	finalizer  Finalizer
	scheduling SchedulingAdapter
	calendar   CalendarAPI
	clock      clock.Clock
}

func NewWebhookService(ledger WebhookLedger, fin Finalizer, sched SchedulingAdapter, cal CalendarAPI, clk clock.Clock) *WebhookService {
	return &WebhookService{
		ledger:     ledger,
		finalizer:  fin,
		scheduling: sched,
		calendar:   cal,
		clock:      clk,
	}
}

// WebhookEvent is the normalized payload handed over by the transport
// after signature verification.
type WebhookEvent struct {
	PaymentRef   string
	HoldID       string
	DiscountCode string
	Reason       string
}

// PaymentSucceeded finalizes the booking; redelivery re-confirms the hold
// with the same inputs and changes nothing else.
func (s *WebhookService) PaymentSucceeded(ctx context.Context, ev WebhookEvent) error {
	_, err := s.finalizer.Finalize(ctx, FinalizeInput{
		PaymentRef:   ev.PaymentRef,
		HoldID:       ev.HoldID,
		DiscountCode: ev.DiscountCode,
	})
	if err == domain.ErrNotChargeable {
		// Terminal for this delivery; redelivering the same event cannot
		// change the gateway's answer.
		logrus.Warnf("webhook: payment %s not chargeable, dropping", ev.PaymentRef)
		return nil
	}
	return err
}

// PaymentFailed marks the booking failed and releases the hold. Bookings
// that already moved past pending are left alone: status transitions are
// monotonic and a late failure event must not undo a recorded payment.
func (s *WebhookService) PaymentFailed(ctx context.Context, ev WebhookEvent) error {
	booking, err := s.resolve(ctx, ev)
	if err != nil {
		if err == domain.ErrBookingNotFound {
			logrus.Warnf("webhook: payment failed for unknown booking (ref=%s hold=%s)", ev.PaymentRef, ev.HoldID)
			return nil
		}
		return err
	}

	switch booking.PaymentStatus {
	case domain.PaymentStatusPending, domain.PaymentStatusProcessing, domain.PaymentStatusAuthorized, domain.PaymentStatusFailed:
	default:
		return nil
	}

	err = s.ledger.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.ledger.SetBookingStatus(txCtx, booking.ID, domain.PaymentStatusFailed); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"reason": ev.Reason, "payment_ref": ev.PaymentRef})
		return s.ledger.InsertBookingEvent(txCtx, domain.BookingEvent{
			ID:        newID(),
			BookingID: booking.ID,
			Type:      domain.BookingEventFailed,
			Data:      data,
			CreatedAt: s.clock.Now(),
		})
	})
	if err != nil {
		return err
	}

	if booking.SchedulingHoldID != "" {
		if err := s.scheduling.CancelHold(ctx, booking.SchedulingHoldID); err != nil {
			logrus.Errorf("webhook: cancel hold %s after failed payment: %v", booking.SchedulingHoldID, err)
		}
	}
	if s.calendar != nil && booking.SchedulingSync.CalendarEventID != "" {
		if err := s.calendar.DeleteEvent(ctx, booking.SchedulingSync.CalendarEventID); err != nil {
			logrus.Errorf("webhook: delete calendar event for booking %s: %v", booking.ID, err)
		}
	}
	return nil
}

// ChargeRefunded records a gateway-side refund (for example one issued from
// the processor dashboard). It flips the booking status only; out-of-band
// amounts are not folded into the payment/refund ledger.
func (s *WebhookService) ChargeRefunded(ctx context.Context, ev WebhookEvent) error {
	booking, err := s.resolve(ctx, ev)
	if err != nil {
		if err == domain.ErrBookingNotFound {
			logrus.Warnf("webhook: refund for unknown booking (ref=%s hold=%s)", ev.PaymentRef, ev.HoldID)
			return nil
		}
		return err
	}

	if booking.Cancelled() || booking.Refunded() {
		return nil
	}

	return s.ledger.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.ledger.SetBookingStatus(txCtx, booking.ID, domain.PaymentStatusRefunded); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"source": "gateway_webhook", "payment_ref": ev.PaymentRef})
		return s.ledger.InsertBookingEvent(txCtx, domain.BookingEvent{
			ID:        newID(),
			BookingID: booking.ID,
			Type:      domain.BookingEventRefund,
			Data:      data,
			CreatedAt: s.clock.Now(),
		})
	})
}

// resolve prefers the hold id, which is stable across processors, and
// falls back to the payment reference.
func (s *WebhookService) resolve(ctx context.Context, ev WebhookEvent) (domain.Booking, error) {
	if ev.HoldID != "" {
		b, err := s.ledger.GetBookingByHoldID(ctx, ev.HoldID)
		if err == nil {
			return b, nil
		}
		if err != domain.ErrBookingNotFound {
			return domain.Booking{}, err
		}
	}
	if ev.PaymentRef != "" {
		return s.ledger.GetBookingByPaymentRef(ctx, ev.PaymentRef)
	}
	return domain.Booking{}, domain.ErrBookingNotFound
}
