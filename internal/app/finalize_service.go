package app

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/arielskeren/Auraesthetics-sub002/internal/clock"
	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
	"github.com/arielskeren/Auraesthetics-sub002/internal/gateway"
)

// FinalizeLedger is the slice of the ledger the finalization path mutates.
type FinalizeLedger interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	UpsertBookingByHoldID(ctx context.Context, holdID string, up domain.BookingUpsert) (string, error)
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	SetBookingCustomer(ctx context.Context, bookingID, customerID string) error
	SetBookingStatus(ctx context.Context, bookingID string, status domain.PaymentStatus) error
	UpsertCustomerByEmail(ctx context.Context, c domain.Customer) (domain.Customer, error)
	MarkWelcomeOfferUsed(ctx context.Context, customerID string) error
	FindPaymentByBookingAndCharge(ctx context.Context, bookingID, chargeRef string) (*domain.Payment, error)
	CreatePayment(ctx context.Context, p domain.Payment) error
	InsertBookingEvent(ctx context.Context, ev domain.BookingEvent) error
	GetDiscountForUpdate(ctx context.Context, code string) (domain.DiscountCode, error)
	MarkDiscountUsed(ctx context.Context, id string) error
	IncrementDiscountUsage(ctx context.Context, id string) error
}

// SchedulingAdapter covers the hold operations the orchestrators need.
type SchedulingAdapter interface {
	ConfirmHold(ctx context.Context, holdID string, metadata map[string]string) error
	CancelHold(ctx context.Context, holdID string) error
	Reschedule(ctx context.Context, holdID string, newStart, newEnd time.Time) error
}

// FinalizeService turns a verified successful payment into a confirmed
// booking, exactly once. It is safe to invoke repeatedly for the same
// payment reference: webhook redelivery short-circuits on the existing
// payment row.
type FinalizeService struct {
	ledger      FinalizeLedger
	gw          gateway.Gateway
	scheduling  SchedulingAdapter
	sideEffects *SideEffects
	clock       clock.Clock
}

func NewFinalizeService(ledger FinalizeLedger, gw gateway.Gateway, sched SchedulingAdapter, se *SideEffects, clk clock.Clock) *FinalizeService {
	return &FinalizeService{
		ledger:      ledger,
		gw:          gw,
		scheduling:  sched,
		sideEffects: se,
		clock:       clk,
	}
}

type FinalizeInput struct {
	PaymentRef   string
	HoldID       string
	DiscountCode string
}

type FinalizeResult struct {
	BookingID  string
	CustomerID string
	PaymentID  string
	Created    bool
}

func (s *FinalizeService) Finalize(ctx context.Context, in FinalizeInput) (FinalizeResult, error) {
	if in.PaymentRef == "" {
		return FinalizeResult{}, domain.ErrPaymentNotFound
	}

	// The gateway is the authority on whether this payment may finalize a
	// booking; the webhook payload is only a hint.
	info, err := s.gw.RetrieveStatus(ctx, in.PaymentRef)
	if err != nil {
		return FinalizeResult{}, err
	}
	if !info.Status.Chargeable() {
		return FinalizeResult{}, domain.ErrNotChargeable
	}

	holdID := in.HoldID
	if holdID == "" {
		holdID = info.Metadata["hold_id"]
	}
	if holdID == "" {
		return FinalizeResult{}, domain.ErrHoldRequired
	}

	discountCode := in.DiscountCode
	if discountCode == "" {
		discountCode = info.Metadata["discount_code"]
	}

	now := s.clock.Now()
	var (
		result   FinalizeResult
		customer domain.Customer
	)

	err = s.ledger.WithTx(ctx, func(txCtx context.Context) error {
		bookingID, err := s.ledger.UpsertBookingByHoldID(txCtx, holdID, upsertFromPayment(info, discountCode))
		if err != nil {
			return err
		}

		customer, err = s.upsertCustomer(txCtx, info)
		if err != nil {
			return err
		}
		if customer.ID != "" {
			if err := s.ledger.SetBookingCustomer(txCtx, bookingID, customer.ID); err != nil {
				return err
			}
		}

		existing, err := s.ledger.FindPaymentByBookingAndCharge(txCtx, bookingID, info.ChargeRef)
		if err != nil {
			return err
		}
		if existing != nil {
			// Redelivery: the ledger already carries this charge. Re-confirm
			// the hold with the same inputs and change nothing else.
			result = FinalizeResult{
				BookingID:  bookingID,
				CustomerID: customer.ID,
				PaymentID:  existing.ID,
				Created:    false,
			}
			return s.scheduling.ConfirmHold(txCtx, holdID, confirmMetadata(in.PaymentRef))
		}

		if discountCode != "" {
			if err := s.applyDiscount(txCtx, discountCode, customer, now); err != nil {
				return err
			}
		}

		payment := domain.Payment{
			ID:          newID(),
			BookingID:   bookingID,
			ChargeRef:   info.ChargeRef,
			AmountCents: info.AmountCents,
			Currency:    info.Currency,
			Status:      string(info.Status),
			CreatedAt:   now,
		}
		if err := s.ledger.CreatePayment(txCtx, payment); err != nil {
			// A concurrent finalization inserted the row first; fold into it.
			if err == domain.ErrPaymentNotFound {
				winner, ferr := s.ledger.FindPaymentByBookingAndCharge(txCtx, bookingID, info.ChargeRef)
				if ferr != nil {
					return ferr
				}
				if winner != nil {
					result = FinalizeResult{
						BookingID:  bookingID,
						CustomerID: customer.ID,
						PaymentID:  winner.ID,
						Created:    false,
					}
					return s.scheduling.ConfirmHold(txCtx, holdID, confirmMetadata(in.PaymentRef))
				}
			}
			return err
		}

		status := domain.PaymentStatusPaid
		if info.Metadata["payment_type"] == string(domain.PaymentTypeDeposit) {
			status = domain.PaymentStatusDepositPaid
		}
		if err := s.ledger.SetBookingStatus(txCtx, bookingID, status); err != nil {
			return err
		}

		data, _ := json.Marshal(map[string]any{
			"payment_ref":  in.PaymentRef,
			"charge_ref":   info.ChargeRef,
			"amount_cents": info.AmountCents,
		})
		err = s.ledger.InsertBookingEvent(txCtx, domain.BookingEvent{
			ID:        newID(),
			BookingID: bookingID,
			Type:      domain.BookingEventFinalized,
			Data:      data,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}

		// Confirm before commit: a failure here is cheap to retry, unlike a
		// refund after the money has durably moved.
		if err := s.scheduling.ConfirmHold(txCtx, holdID, confirmMetadata(in.PaymentRef)); err != nil {
			return err
		}

		result = FinalizeResult{
			BookingID:  bookingID,
			CustomerID: customer.ID,
			PaymentID:  payment.ID,
			Created:    true,
		}
		return nil
	})
	if err != nil {
		return FinalizeResult{}, err
	}

	if s.sideEffects != nil {
		booking, err := s.ledger.GetBooking(ctx, result.BookingID)
		if err != nil {
			logrus.Errorf("finalize: reload booking %s for side effects: %v", result.BookingID, err)
			return result, nil
		}
		s.sideEffects.BookingFinalized(ctx, booking, customer)
	}
	return result, nil
}

func (s *FinalizeService) upsertCustomer(ctx context.Context, info gateway.PaymentInfo) (domain.Customer, error) {
	if info.Billing.Email == "" {
		return domain.Customer{}, nil
	}
	first, last := splitName(info.Billing.Name)
	return s.ledger.UpsertCustomerByEmail(ctx, domain.Customer{
		Email:     info.Billing.Email,
		FirstName: first,
		LastName:  last,
		Phone:     info.Billing.Phone,
	})
}

// applyDiscount consumes the code under its row lock. A customer-scoped
// code whose owner does not match the paying customer is skipped without
// failing the booking; sharing a personal code must not block checkout.
func (s *FinalizeService) applyDiscount(ctx context.Context, code string, customer domain.Customer, now time.Time) error {
	d, err := s.ledger.GetDiscountForUpdate(ctx, code)
	if err != nil {
		if err == domain.ErrDiscountNotFound {
			logrus.Warnf("finalize: discount code %q not found, ignoring", code)
			return nil
		}
		return err
	}
	if d.Expired(now) || !d.Active {
		logrus.Warnf("finalize: discount code %q inactive or expired, ignoring", code)
		return nil
	}

	switch d.Scope {
	case domain.DiscountScopeCustomer:
		if d.CustomerID == "" || d.CustomerID != customer.ID {
			logrus.Warnf("finalize: discount code %q not owned by customer %s, ignoring", code, customer.ID)
			return nil
		}
		if d.Used {
			return nil
		}
		if err := s.ledger.MarkDiscountUsed(ctx, d.ID); err != nil {
			if err == domain.ErrDiscountNotFound {
				// Lost the race; the other finalization consumed it.
				return nil
			}
			return err
		}
		return s.ledger.MarkWelcomeOfferUsed(ctx, customer.ID)
	case domain.DiscountScopeGlobal:
		if err := s.ledger.IncrementDiscountUsage(ctx, d.ID); err != nil {
			if err == domain.ErrDiscountNotFound {
				return nil
			}
			return err
		}
	}
	return nil
}

func upsertFromPayment(info gateway.PaymentInfo, discountCode string) domain.BookingUpsert {
	up := domain.BookingUpsert{
		ServiceRef:   info.Metadata["service_ref"],
		ClientName:   info.Billing.Name,
		ClientEmail:  info.Billing.Email,
		ClientPhone:  info.Billing.Phone,
		DiscountCode: discountCode,
		PaymentRef:   info.ChargeRef,
		Breakdown: domain.PaymentBreakdown{
			AmountCents:      info.AmountCents,
			FinalAmountCents: info.AmountCents,
		},
	}
	if info.Metadata["payment_type"] == string(domain.PaymentTypeDeposit) {
		up.PaymentType = domain.PaymentTypeDeposit
		up.Breakdown.DepositAmountCents = info.AmountCents
	} else {
		up.PaymentType = domain.PaymentTypeFull
	}
	if raw := info.Metadata["scheduled_start"]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			up.ScheduledStart = &t
		}
	}
	return up
}

func confirmMetadata(paymentRef string) map[string]string {
	return map[string]string{"payment_ref": paymentRef}
}

func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.Fields(full)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
