package domain

import (
	"encoding/json"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusProcessing  PaymentStatus = "processing"
	PaymentStatusAuthorized  PaymentStatus = "authorized"
	PaymentStatusPaid        PaymentStatus = "paid"
	PaymentStatusDepositPaid PaymentStatus = "deposit_paid"
	PaymentStatusRefunded    PaymentStatus = "refunded"
	PaymentStatusCancelled   PaymentStatus = "cancelled"
	PaymentStatusFailed      PaymentStatus = "failed"
)

type PaymentType string

const (
	PaymentTypeFull    PaymentType = "full"
	PaymentTypeDeposit PaymentType = "deposit"
)

type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusOK      SyncStatus = "ok"
	SyncStatusError   SyncStatus = "error"
)

// SchedulingSyncState tracks the non-authoritative outcome of pushing a
// booking to the scheduling provider and calendar. It never influences
// payment state.
type SchedulingSyncState struct {
	Status          SyncStatus `json:"status"`
	Error           string     `json:"error,omitempty"`
	CalendarEventID string     `json:"calendar_event_id,omitempty"`
	SyncedAt        *time.Time `json:"synced_at,omitempty"`
}

// PaymentBreakdown records how the charged total decomposes. Amounts are
// integer cents; the ledger never stores floats.
type PaymentBreakdown struct {
	AmountCents         int64 `json:"amount_cents"`
	DepositAmountCents  int64 `json:"deposit_amount_cents,omitempty"`
	FinalAmountCents    int64 `json:"final_amount_cents"`
	DiscountAmountCents int64 `json:"discount_amount_cents,omitempty"`
}

// Booking is the canonical record for a paid (or paying) appointment. The
// scheduling provider owns the calendar slot; this row owns the money.
type Booking struct {
	ID               string
	SchedulingHoldID string
	ServiceRef       string
	CustomerID       string

	// Denormalized contact snapshot taken at finalization time.
	ClientName  string
	ClientEmail string
	ClientPhone string

	ScheduledStart time.Time
	PaymentStatus  PaymentStatus
	PaymentType    PaymentType

	Breakdown    PaymentBreakdown
	DiscountCode string

	PaymentRef string

	SchedulingSync SchedulingSyncState

	// ProviderPayload keeps genuinely opaque provider data only.
	ProviderPayload json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BookingUpsert carries the fields merged onto a booking at finalization.
// Empty strings and zero values never overwrite existing data.
type BookingUpsert struct {
	ServiceRef     string
	ClientName     string
	ClientEmail    string
	ClientPhone    string
	ScheduledStart *time.Time
	PaymentType    PaymentType
	Breakdown      PaymentBreakdown
	DiscountCode   string
	PaymentRef     string
}

// Cancelled reports whether the booking reached a terminal cancelled state.
func (b Booking) Cancelled() bool {
	return b.PaymentStatus == PaymentStatusCancelled
}

// Refunded reports whether the booking has been fully refunded.
func (b Booking) Refunded() bool {
	return b.PaymentStatus == PaymentStatusRefunded
}
