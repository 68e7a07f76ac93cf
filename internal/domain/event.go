package domain

import (
	"encoding/json"
	"time"
)

type BookingEventType string

const (
	BookingEventFinalized   BookingEventType = "finalized"
	BookingEventCancelled   BookingEventType = "cancelled"
	BookingEventRefund      BookingEventType = "refund"
	BookingEventRescheduled BookingEventType = "rescheduled"
	BookingEventEmailSent   BookingEventType = "email_sent"
	BookingEventFailed      BookingEventType = "payment_failed"
)

// BookingEvent is an append-only audit record.
type BookingEvent struct {
	ID        string
	BookingID string
	Type      BookingEventType
	Data      json.RawMessage
	CreatedAt time.Time
}
