package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
	"github.com/arielskeren/Auraesthetics-sub002/internal/gateway"
)

// fakeLedger is an in-memory stand-in for the Postgres ledger, shared by
// the service tests. It mirrors the repository semantics the services rely
// on: merge-on-upsert, the duplicate-charge gate and the refund cap.
type fakeLedger struct {
	// mu serializes transactions the way row locks do in Postgres:
	// concurrent WithTx callers run one after the other.
	mu sync.Mutex

	bookings  map[string]domain.Booking
	customers map[string]domain.Customer
	payments  []domain.Payment
	refunds   []domain.Refund
	events    []domain.BookingEvent
	discounts map[string]domain.DiscountCode

	seq int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		bookings:  map[string]domain.Booking{},
		customers: map[string]domain.Customer{},
		discounts: map[string]domain.DiscountCode{},
	}
}

func (f *fakeLedger) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeLedger) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx)
}

func (f *fakeLedger) UpsertBookingByHoldID(_ context.Context, holdID string, up domain.BookingUpsert) (string, error) {
	for id, b := range f.bookings {
		if b.SchedulingHoldID != holdID {
			continue
		}
		if b.ClientName == "" {
			b.ClientName = up.ClientName
		}
		if b.ClientEmail == "" {
			b.ClientEmail = up.ClientEmail
		}
		if b.PaymentRef == "" {
			b.PaymentRef = up.PaymentRef
		}
		if up.Breakdown.AmountCents > b.Breakdown.AmountCents {
			b.Breakdown = up.Breakdown
		}
		if up.ScheduledStart != nil && b.ScheduledStart.IsZero() {
			b.ScheduledStart = *up.ScheduledStart
		}
		f.bookings[id] = b
		return id, nil
	}

	b := domain.Booking{
		ID:               f.nextID("booking"),
		SchedulingHoldID: holdID,
		ServiceRef:       up.ServiceRef,
		ClientName:       up.ClientName,
		ClientEmail:      up.ClientEmail,
		ClientPhone:      up.ClientPhone,
		PaymentStatus:    domain.PaymentStatusPending,
		PaymentType:      up.PaymentType,
		Breakdown:        up.Breakdown,
		DiscountCode:     up.DiscountCode,
		PaymentRef:       up.PaymentRef,
	}
	if up.ScheduledStart != nil {
		b.ScheduledStart = *up.ScheduledStart
	}
	f.bookings[b.ID] = b
	return b.ID, nil
}

func (f *fakeLedger) GetBooking(_ context.Context, id string) (domain.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return b, nil
}

func (f *fakeLedger) GetBookingByHoldID(_ context.Context, holdID string) (domain.Booking, error) {
	for _, b := range f.bookings {
		if b.SchedulingHoldID == holdID {
			return b, nil
		}
	}
	return domain.Booking{}, domain.ErrBookingNotFound
}

func (f *fakeLedger) GetBookingByPaymentRef(_ context.Context, ref string) (domain.Booking, error) {
	for _, b := range f.bookings {
		if b.PaymentRef == ref {
			return b, nil
		}
	}
	return domain.Booking{}, domain.ErrBookingNotFound
}

func (f *fakeLedger) SetBookingCustomer(_ context.Context, bookingID, customerID string) error {
	b, ok := f.bookings[bookingID]
	if !ok {
		return domain.ErrBookingNotFound
	}
	b.CustomerID = customerID
	f.bookings[bookingID] = b
	return nil
}

func (f *fakeLedger) SetBookingStatus(_ context.Context, bookingID string, status domain.PaymentStatus) error {
	b, ok := f.bookings[bookingID]
	if !ok {
		return domain.ErrBookingNotFound
	}
	b.PaymentStatus = status
	f.bookings[bookingID] = b
	return nil
}

func (f *fakeLedger) SetScheduledStart(_ context.Context, bookingID string, start time.Time) error {
	b, ok := f.bookings[bookingID]
	if !ok {
		return domain.ErrBookingNotFound
	}
	b.ScheduledStart = start
	f.bookings[bookingID] = b
	return nil
}

func (f *fakeLedger) SetSchedulingSync(_ context.Context, bookingID string, state domain.SchedulingSyncState) error {
	b, ok := f.bookings[bookingID]
	if !ok {
		return domain.ErrBookingNotFound
	}
	b.SchedulingSync = state
	f.bookings[bookingID] = b
	return nil
}

func (f *fakeLedger) UpsertCustomerByEmail(_ context.Context, c domain.Customer) (domain.Customer, error) {
	existing, ok := f.customers[c.Email]
	if !ok {
		c.ID = f.nextID("customer")
		f.customers[c.Email] = c
		return c, nil
	}
	if c.FirstName != "" {
		existing.FirstName = c.FirstName
	}
	if c.LastName != "" {
		existing.LastName = c.LastName
	}
	if c.Phone != "" {
		existing.Phone = c.Phone
	}
	if c.CRMClientRef != "" {
		existing.CRMClientRef = c.CRMClientRef
	}
	existing.Marketing = existing.Marketing || c.Marketing
	existing.UsedWelcomeOffer = existing.UsedWelcomeOffer || c.UsedWelcomeOffer
	f.customers[c.Email] = existing
	return existing, nil
}

func (f *fakeLedger) MarkWelcomeOfferUsed(_ context.Context, customerID string) error {
	for email, c := range f.customers {
		if c.ID == customerID {
			c.UsedWelcomeOffer = true
			f.customers[email] = c
			return nil
		}
	}
	return domain.ErrCustomerNotFound
}

func (f *fakeLedger) FindPaymentByBookingAndCharge(_ context.Context, bookingID, chargeRef string) (*domain.Payment, error) {
	for i := range f.payments {
		if f.payments[i].BookingID == bookingID && f.payments[i].ChargeRef == chargeRef {
			p := f.payments[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) CreatePayment(_ context.Context, p domain.Payment) error {
	for i := range f.payments {
		if f.payments[i].BookingID == p.BookingID && f.payments[i].ChargeRef == p.ChargeRef {
			return domain.ErrPaymentNotFound
		}
	}
	f.payments = append(f.payments, p)
	return nil
}

func (f *fakeLedger) LockPaymentRows(_ context.Context, bookingID string) ([]domain.Payment, domain.LedgerTotals, error) {
	var (
		rows   []domain.Payment
		totals domain.LedgerTotals
	)
	for _, p := range f.payments {
		if p.BookingID == bookingID {
			rows = append(rows, p)
			totals.TotalAmountCents += p.AmountCents
		}
	}
	for _, r := range f.refunds {
		if r.BookingID == bookingID {
			totals.TotalRefundedCents += r.AmountCents
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return rows, totals, nil
}

func (f *fakeLedger) AddRefundedCents(_ context.Context, paymentID string, delta int64) error {
	for i := range f.payments {
		if f.payments[i].ID != paymentID {
			continue
		}
		if f.payments[i].RefundedCents+delta > f.payments[i].AmountCents {
			return domain.ErrLedgerConsistency
		}
		f.payments[i].RefundedCents += delta
		return nil
	}
	return domain.ErrPaymentNotFound
}

func (f *fakeLedger) CreateRefund(_ context.Context, ref domain.Refund) error {
	f.refunds = append(f.refunds, ref)
	return nil
}

func (f *fakeLedger) InsertBookingEvent(_ context.Context, ev domain.BookingEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeLedger) ListPayments(_ context.Context, bookingID string) ([]domain.Payment, error) {
	var out []domain.Payment
	for _, p := range f.payments {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeLedger) ListRefunds(_ context.Context, bookingID string) ([]domain.Refund, error) {
	var out []domain.Refund
	for _, r := range f.refunds {
		if r.BookingID == bookingID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeLedger) ListBookingEvents(_ context.Context, bookingID string) ([]domain.BookingEvent, error) {
	var out []domain.BookingEvent
	for _, ev := range f.events {
		if ev.BookingID == bookingID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeLedger) GetDiscountForUpdate(_ context.Context, code string) (domain.DiscountCode, error) {
	d, ok := f.discounts[code]
	if !ok {
		return domain.DiscountCode{}, domain.ErrDiscountNotFound
	}
	return d, nil
}

func (f *fakeLedger) MarkDiscountUsed(_ context.Context, id string) error {
	for code, d := range f.discounts {
		if d.ID != id {
			continue
		}
		if d.Used {
			return domain.ErrDiscountNotFound
		}
		d.Used = true
		f.discounts[code] = d
		return nil
	}
	return domain.ErrDiscountNotFound
}

func (f *fakeLedger) IncrementDiscountUsage(_ context.Context, id string) error {
	for code, d := range f.discounts {
		if d.ID != id {
			continue
		}
		if !d.Active {
			return domain.ErrDiscountNotFound
		}
		d.UsageCount++
		if d.MaxUses > 0 && d.UsageCount >= d.MaxUses {
			d.Active = false
		}
		f.discounts[code] = d
		return nil
	}
	return domain.ErrDiscountNotFound
}

func (f *fakeLedger) eventsOfType(typ domain.BookingEventType) []domain.BookingEvent {
	var out []domain.BookingEvent
	for _, ev := range f.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type refundCall struct {
	ChargeRef   string
	AmountCents int64
}

// fakeGateway serves fixed payment infos and grants refunds as requested
// unless grantOverride is set.
type fakeGateway struct {
	infos map[string]gateway.PaymentInfo

	refundCalls   []refundCall
	refundErr     error
	grantOverride int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{infos: map[string]gateway.PaymentInfo{}}
}

func (f *fakeGateway) Charge(context.Context, gateway.ChargeInput) (gateway.ChargeResult, error) {
	return gateway.ChargeResult{}, errors.New("not used")
}

func (f *fakeGateway) Refund(_ context.Context, chargeRef string, amountCents int64, _ string) (gateway.RefundResult, error) {
	f.refundCalls = append(f.refundCalls, refundCall{ChargeRef: chargeRef, AmountCents: amountCents})
	if f.refundErr != nil {
		return gateway.RefundResult{}, f.refundErr
	}
	granted := amountCents
	if f.grantOverride != 0 {
		granted = f.grantOverride
	}
	return gateway.RefundResult{
		RefundRef:          fmt.Sprintf("re-%d", len(f.refundCalls)),
		GrantedAmountCents: granted,
	}, nil
}

func (f *fakeGateway) RetrieveStatus(_ context.Context, paymentRef string) (gateway.PaymentInfo, error) {
	info, ok := f.infos[paymentRef]
	if !ok {
		return gateway.PaymentInfo{}, domain.ErrPaymentNotFound
	}
	return info, nil
}

type fakeScheduling struct {
	confirmed   map[string]int
	cancelled   map[string]int
	rescheduled map[string]time.Time

	confirmErr    error
	rescheduleErr error
}

func newFakeScheduling() *fakeScheduling {
	return &fakeScheduling{
		confirmed:   map[string]int{},
		cancelled:   map[string]int{},
		rescheduled: map[string]time.Time{},
	}
}

func (f *fakeScheduling) ConfirmHold(_ context.Context, holdID string, _ map[string]string) error {
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmed[holdID]++
	return nil
}

func (f *fakeScheduling) CancelHold(_ context.Context, holdID string) error {
	f.cancelled[holdID]++
	return nil
}

func (f *fakeScheduling) Reschedule(_ context.Context, holdID string, newStart, _ time.Time) error {
	if f.rescheduleErr != nil {
		return f.rescheduleErr
	}
	f.rescheduled[holdID] = newStart
	return nil
}
