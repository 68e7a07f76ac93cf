package domain

import "time"

// Payment is one successful charge against a booking. AmountCents is
// immutable; RefundedCents only ever grows, and only under the booking's
// payment-row lock.
type Payment struct {
	ID            string
	BookingID     string
	ChargeRef     string
	AmountCents   int64
	RefundedCents int64
	Currency      string
	Status        string
	CreatedAt     time.Time
}

// Refund rows are append-only. A booking's total refunded amount is always
// sum(rows), never a cached column.
type Refund struct {
	ID                   string
	PaymentID            string
	BookingID            string
	RefundRef            string
	AmountCents          int64
	RequestedAmountCents int64
	Reason               string
	Status               string
	CreatedAt            time.Time
}

// LedgerTotals is the fresh per-booking sum computed under row lock.
type LedgerTotals struct {
	TotalAmountCents   int64
	TotalRefundedCents int64
}

// Remaining is the refundable balance: charged minus already granted.
func (t LedgerTotals) Remaining() int64 {
	return t.TotalAmountCents - t.TotalRefundedCents
}
