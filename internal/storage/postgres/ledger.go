package postgres

import (
	"context"
	"time"

	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger is the single typed boundary the orchestrators talk to. It fronts
// the per-aggregate repositories so callers never see raw query shapes, and
// shares one transaction helper so multi-aggregate mutations commit or roll
// back together.
type Ledger struct {
	pool      *pgxpool.Pool
	bookings  *BookingRepository
	customers *CustomerRepository
	payments  *PaymentRepository
	discounts *DiscountRepository
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{
		pool:      pool,
		bookings:  NewBookingRepository(pool),
		customers: NewCustomerRepository(pool),
		payments:  NewPaymentRepository(pool),
		discounts: NewDiscountRepository(pool),
	}
}

func (l *Ledger) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, l.pool, fn)
}

// Bookings.

func (l *Ledger) UpsertBookingByHoldID(ctx context.Context, holdID string, up domain.BookingUpsert) (string, error) {
	return l.bookings.UpsertByHoldID(ctx, holdID, up)
}

func (l *Ledger) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	return l.bookings.GetByID(ctx, id)
}

func (l *Ledger) GetBookingByHoldID(ctx context.Context, holdID string) (domain.Booking, error) {
	return l.bookings.GetByHoldID(ctx, holdID)
}

func (l *Ledger) GetBookingByPaymentRef(ctx context.Context, ref string) (domain.Booking, error) {
	return l.bookings.GetByPaymentRef(ctx, ref)
}

func (l *Ledger) SetBookingCustomer(ctx context.Context, bookingID, customerID string) error {
	return l.bookings.SetCustomer(ctx, bookingID, customerID)
}

func (l *Ledger) SetBookingStatus(ctx context.Context, bookingID string, status domain.PaymentStatus) error {
	return l.bookings.SetStatus(ctx, bookingID, status)
}

func (l *Ledger) SetScheduledStart(ctx context.Context, bookingID string, start time.Time) error {
	return l.bookings.SetScheduledStart(ctx, bookingID, start)
}

func (l *Ledger) SetSchedulingSync(ctx context.Context, bookingID string, state domain.SchedulingSyncState) error {
	return l.bookings.SetSchedulingSync(ctx, bookingID, state)
}

func (l *Ledger) InsertBookingEvent(ctx context.Context, ev domain.BookingEvent) error {
	return l.bookings.InsertEvent(ctx, ev)
}

func (l *Ledger) ListBookingEvents(ctx context.Context, bookingID string) ([]domain.BookingEvent, error) {
	return l.bookings.ListEvents(ctx, bookingID)
}

// Customers.

func (l *Ledger) UpsertCustomerByEmail(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	return l.customers.UpsertByEmail(ctx, c)
}

func (l *Ledger) MarkWelcomeOfferUsed(ctx context.Context, customerID string) error {
	return l.customers.MarkWelcomeOfferUsed(ctx, customerID)
}

// Payments and refunds.

func (l *Ledger) LockPaymentRows(ctx context.Context, bookingID string) ([]domain.Payment, domain.LedgerTotals, error) {
	return l.payments.LockPaymentRows(ctx, bookingID)
}

func (l *Ledger) FindPaymentByBookingAndCharge(ctx context.Context, bookingID, chargeRef string) (*domain.Payment, error) {
	return l.payments.FindByBookingAndCharge(ctx, bookingID, chargeRef)
}

func (l *Ledger) CreatePayment(ctx context.Context, p domain.Payment) error {
	return l.payments.Create(ctx, p)
}

func (l *Ledger) AddRefundedCents(ctx context.Context, paymentID string, delta int64) error {
	return l.payments.AddRefundedCents(ctx, paymentID, delta)
}

func (l *Ledger) CreateRefund(ctx context.Context, ref domain.Refund) error {
	return l.payments.CreateRefund(ctx, ref)
}

func (l *Ledger) ListPayments(ctx context.Context, bookingID string) ([]domain.Payment, error) {
	return l.payments.ListByBooking(ctx, bookingID)
}

func (l *Ledger) ListRefunds(ctx context.Context, bookingID string) ([]domain.Refund, error) {
	return l.payments.ListRefundsByBooking(ctx, bookingID)
}

// Discount codes.

func (l *Ledger) GetDiscountForUpdate(ctx context.Context, code string) (domain.DiscountCode, error) {
	return l.discounts.GetByCodeForUpdate(ctx, code)
}

func (l *Ledger) MarkDiscountUsed(ctx context.Context, id string) error {
	return l.discounts.MarkUsed(ctx, id)
}

func (l *Ledger) IncrementDiscountUsage(ctx context.Context, id string) error {
	return l.discounts.IncrementUsage(ctx, id)
}
