package app

import (
	"context"

	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
)

// BookingReader is the read-side slice of the ledger.
type BookingReader interface {
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	ListPayments(ctx context.Context, bookingID string) ([]domain.Payment, error)
	ListRefunds(ctx context.Context, bookingID string) ([]domain.Refund, error)
	ListBookingEvents(ctx context.Context, bookingID string) ([]domain.BookingEvent, error)
}

// BookingService serves the staff-facing read of one booking with its
// money trail.
type BookingService struct {
	ledger BookingReader
}

func NewBookingService(ledger BookingReader) *BookingService {
	return &BookingService{ledger: ledger}
}

type BookingDetail struct {
	Booking  domain.Booking
	Payments []domain.Payment
	Refunds  []domain.Refund
	Events   []domain.BookingEvent

	TotalAmountCents   int64
	TotalRefundedCents int64
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (BookingDetail, error) {
	if id == "" {
		return BookingDetail{}, domain.ErrInvalidID
	}

	booking, err := s.ledger.GetBooking(ctx, id)
	if err != nil {
		return BookingDetail{}, err
	}
	payments, err := s.ledger.ListPayments(ctx, id)
	if err != nil {
		return BookingDetail{}, err
	}
	refunds, err := s.ledger.ListRefunds(ctx, id)
	if err != nil {
		return BookingDetail{}, err
	}
	events, err := s.ledger.ListBookingEvents(ctx, id)
	if err != nil {
		return BookingDetail{}, err
	}

	detail := BookingDetail{
		Booking:  booking,
		Payments: payments,
		Refunds:  refunds,
		Events:   events,
	}
	for _, p := range payments {
		detail.TotalAmountCents += p.AmountCents
	}
	for _, r := range refunds {
		detail.TotalRefundedCents += r.AmountCents
	}
	return detail, nil
}
