package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/arielskeren/Auraesthetics-sub002/internal/clock"
	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
	"github.com/arielskeren/Auraesthetics-sub002/internal/gateway"
)

// RefundLedger is the slice of the ledger the cancellation/refund path
// mutates.
type RefundLedger interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	SetBookingStatus(ctx context.Context, bookingID string, status domain.PaymentStatus) error
	SetScheduledStart(ctx context.Context, bookingID string, start time.Time) error
	LockPaymentRows(ctx context.Context, bookingID string) ([]domain.Payment, domain.LedgerTotals, error)
	AddRefundedCents(ctx context.Context, paymentID string, delta int64) error
	CreateRefund(ctx context.Context, ref domain.Refund) error
	InsertBookingEvent(ctx context.Context, ev domain.BookingEvent) error
}

// RefundService computes and applies refunds, with or without full
// cancellation. Every amount decision starts from a fresh, locked read of
// the payment and refund rows; nothing is trusted from a prior read.
type RefundService struct {
	ledger      RefundLedger
	gw          gateway.Gateway
	scheduling  SchedulingAdapter
	sideEffects *SideEffects
	clock       clock.Clock
}

func NewRefundService(ledger RefundLedger, gw gateway.Gateway, sched SchedulingAdapter, se *SideEffects, clk clock.Clock) *RefundService {
	return &RefundService{
		ledger:      ledger,
		gw:          gw,
		scheduling:  sched,
		sideEffects: se,
		clock:       clk,
	}
}

// RefundRequest resolves to an amount in this order: explicit AmountCents,
// else Percent of the remaining refundable balance, else all of it.
type RefundRequest struct {
	BookingID   string
	AmountCents int64
	Percent     int
	Reason      string
}

type RefundResult struct {
	BookingID      string
	GrantedCents   int64
	RemainingAfter int64
}

// CancelBooking cancels the booking, refunding whatever is still
// refundable. Cancelling an already-refunded booking succeeds without a
// second refund; cancelling a cancelled booking is rejected.
func (s *RefundService) CancelBooking(ctx context.Context, req RefundRequest) (RefundResult, error) {
	var (
		result  RefundResult
		booking domain.Booking
	)

	err := s.ledger.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		booking, err = s.ledger.GetBooking(txCtx, req.BookingID)
		if err != nil {
			return err
		}
		if booking.Cancelled() {
			return domain.ErrBookingCancelled
		}

		if !booking.Refunded() {
			granted, remaining, err := s.applyRefund(txCtx, booking, req, true)
			if err != nil {
				return err
			}
			result.GrantedCents = granted
			result.RemainingAfter = remaining
		}

		if err := s.ledger.SetBookingStatus(txCtx, req.BookingID, domain.PaymentStatusCancelled); err != nil {
			return err
		}

		data, _ := json.Marshal(map[string]any{
			"refunded_cents": result.GrantedCents,
			"reason":         req.Reason,
		})
		return s.ledger.InsertBookingEvent(txCtx, domain.BookingEvent{
			ID:        newID(),
			BookingID: req.BookingID,
			Type:      domain.BookingEventCancelled,
			Data:      data,
			CreatedAt: s.clock.Now(),
		})
	})
	if err != nil {
		return RefundResult{}, err
	}
	result.BookingID = req.BookingID

	if s.sideEffects != nil {
		s.sideEffects.BookingCancelled(ctx, booking, result.GrantedCents, s.scheduling.CancelHold)
	}
	return result, nil
}

// RefundBooking issues a standalone refund and leaves the scheduling hold
// intact. A reason is required for auditability.
func (s *RefundService) RefundBooking(ctx context.Context, req RefundRequest) (RefundResult, error) {
	if req.Reason == "" {
		return RefundResult{}, domain.ErrRefundReasonRequired
	}

	var (
		result  RefundResult
		booking domain.Booking
	)

	err := s.ledger.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		booking, err = s.ledger.GetBooking(txCtx, req.BookingID)
		if err != nil {
			return err
		}

		granted, remaining, err := s.applyRefund(txCtx, booking, req, false)
		if err != nil {
			return err
		}
		result.GrantedCents = granted
		result.RemainingAfter = remaining

		// Once cancelled, only refund-adjacent fields may change.
		if !booking.Cancelled() {
			return s.ledger.SetBookingStatus(txCtx, req.BookingID, domain.PaymentStatusRefunded)
		}
		return nil
	})
	if err != nil {
		return RefundResult{}, err
	}
	result.BookingID = req.BookingID

	if s.sideEffects != nil {
		s.sideEffects.BookingRefunded(ctx, booking, result.GrantedCents)
	}
	return result, nil
}

// applyRefund holds the shared computation: lock rows, resolve the desired
// amount against the fresh remaining balance, call the gateway, persist.
// The window between the gateway granting money and commit is kept to one
// update plus two inserts per payment row touched.
func (s *RefundService) applyRefund(ctx context.Context, booking domain.Booking, req RefundRequest, allowZero bool) (granted, remaining int64, err error) {
	payments, totals, err := s.ledger.LockPaymentRows(ctx, booking.ID)
	if err != nil {
		return 0, 0, err
	}
	remaining = totals.Remaining()

	if remaining == 0 && allowZero {
		// Cancellation of a booking with nothing left to refund.
		return 0, 0, nil
	}

	resolved, err := resolveRefundAmount(remaining, req.AmountCents, req.Percent)
	if err != nil {
		return 0, remaining, err
	}

	now := s.clock.Now()
	toAllocate := resolved
	for _, p := range payments {
		if toAllocate <= 0 {
			break
		}
		capacity := p.AmountCents - p.RefundedCents
		if capacity <= 0 {
			continue
		}
		share := toAllocate
		if share > capacity {
			share = capacity
		}

		res, err := s.gw.Refund(ctx, p.ChargeRef, share, req.Reason)
		if err != nil {
			return granted, remaining, err
		}

		// The gateway's granted amount is authoritative. More than the row
		// can absorb means the ledger and the processor disagree about
		// money: abort loudly, never clamp.
		if res.GrantedAmountCents > capacity || granted+res.GrantedAmountCents > remaining {
			logrus.Errorf(
				"ledger consistency violation: booking=%s payment=%s charge=%s requested=%d granted=%d capacity=%d remaining=%d refund_ref=%s",
				booking.ID, p.ID, p.ChargeRef, share, res.GrantedAmountCents, capacity, remaining, res.RefundRef,
			)
			return granted, remaining, domain.ErrLedgerConsistency
		}

		if err := s.ledger.AddRefundedCents(ctx, p.ID, res.GrantedAmountCents); err != nil {
			logrus.Errorf(
				"refund granted but not persisted: booking=%s payment=%s refund_ref=%s granted=%d: %v",
				booking.ID, p.ID, res.RefundRef, res.GrantedAmountCents, err,
			)
			return granted, remaining, err
		}
		err = s.ledger.CreateRefund(ctx, domain.Refund{
			ID:                   newID(),
			PaymentID:            p.ID,
			BookingID:            booking.ID,
			RefundRef:            res.RefundRef,
			AmountCents:          res.GrantedAmountCents,
			RequestedAmountCents: share,
			Reason:               req.Reason,
			Status:               "succeeded",
			CreatedAt:            now,
		})
		if err != nil {
			logrus.Errorf(
				"refund granted but not persisted: booking=%s payment=%s refund_ref=%s granted=%d: %v",
				booking.ID, p.ID, res.RefundRef, res.GrantedAmountCents, err,
			)
			return granted, remaining, err
		}

		granted += res.GrantedAmountCents
		toAllocate -= share
	}

	data, _ := json.Marshal(map[string]any{
		"requested_cents": resolved,
		"granted_cents":   granted,
		"reason":          req.Reason,
	})
	err = s.ledger.InsertBookingEvent(ctx, domain.BookingEvent{
		ID:        newID(),
		BookingID: booking.ID,
		Type:      domain.BookingEventRefund,
		Data:      data,
		CreatedAt: now,
	})
	if err != nil {
		return granted, remaining, err
	}
	return granted, remaining - granted, nil
}

// resolveRefundAmount picks the refund size against the fresh remaining
// balance. Percentages apply to what is left, not the original total: a
// second 50% request refunds half of the remainder.
func resolveRefundAmount(remaining, amountCents int64, percent int) (int64, error) {
	var resolved int64
	switch {
	case amountCents != 0:
		resolved = amountCents
	case percent != 0:
		if percent < 0 || percent > 100 {
			return 0, domain.ErrInvalidRefundAmount
		}
		resolved = remaining * int64(percent) / 100
	default:
		resolved = remaining
	}

	if resolved <= 0 || resolved > remaining {
		return 0, domain.ErrInvalidRefundAmount
	}
	return resolved, nil
}

// Reschedule moves the booking to a new slot with the scheduling provider
// and mirrors the change locally. The provider call is authoritative here,
// so its failure fails the request.
func (s *RefundService) Reschedule(ctx context.Context, bookingID string, newStart, newEnd time.Time) error {
	booking, err := s.ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.Cancelled() {
		return domain.ErrBookingCancelled
	}

	if err := s.scheduling.Reschedule(ctx, booking.SchedulingHoldID, newStart, newEnd); err != nil {
		return err
	}

	err = s.ledger.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.ledger.SetScheduledStart(txCtx, bookingID, newStart); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{
			"from": booking.ScheduledStart.UTC().Format(time.RFC3339),
			"to":   newStart.UTC().Format(time.RFC3339),
		})
		return s.ledger.InsertBookingEvent(txCtx, domain.BookingEvent{
			ID:        newID(),
			BookingID: bookingID,
			Type:      domain.BookingEventRescheduled,
			Data:      data,
			CreatedAt: s.clock.Now(),
		})
	})
	if err != nil {
		return err
	}

	if s.sideEffects != nil {
		booking.ScheduledStart = newStart
		s.sideEffects.BookingRescheduled(ctx, booking, newStart, newEnd)
	}
	return nil
}
