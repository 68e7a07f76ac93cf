package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/arielskeren/Auraesthetics-sub002/internal/calendar"
	"github.com/arielskeren/Auraesthetics-sub002/internal/clock"
	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
	"github.com/arielskeren/Auraesthetics-sub002/internal/notify"
	"github.com/arielskeren/Auraesthetics-sub002/internal/scheduling"
)

// CalendarAPI is the slice of the calendar side-channel the dispatcher uses.
type CalendarAPI interface {
	CreateEvent(ctx context.Context, ev calendar.Event) (string, error)
	UpdateEvent(ctx context.Context, eventID string, ev calendar.Event) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// ClientSync pushes customers into the scheduling provider's client book.
type ClientSync interface {
	SyncClient(ctx context.Context, rec scheduling.ClientRecord) (string, error)
}

// EventPublisher emits post-commit domain events for the notify worker.
type EventPublisher interface {
	Publish(ctx context.Context, key string, ev notify.Event) error
}

type sideEffectLedger interface {
	SetSchedulingSync(ctx context.Context, bookingID string, state domain.SchedulingSyncState) error
	UpsertCustomerByEmail(ctx context.Context, c domain.Customer) (domain.Customer, error)
}

// SideEffects runs everything that happens after commit and must never
// change the result of the request that triggered it: calendar mirroring,
// CRM client sync, notification events. Failures are logged and recorded
// only in non-authoritative fields.
type SideEffects struct {
	ledger    sideEffectLedger
	calendar  CalendarAPI
	crm       ClientSync
	publisher EventPublisher
	clock     clock.Clock
}

func NewSideEffects(ledger sideEffectLedger, cal CalendarAPI, crm ClientSync, pub EventPublisher, clk clock.Clock) *SideEffects {
	return &SideEffects{ledger: ledger, calendar: cal, crm: crm, publisher: pub, clock: clk}
}

func (s *SideEffects) BookingFinalized(ctx context.Context, b domain.Booking, c domain.Customer) {
	s.syncCalendar(ctx, b)
	s.syncCRM(ctx, c)
	s.publish(ctx, notify.RouteFinalized, b, 0)
}

func (s *SideEffects) BookingCancelled(ctx context.Context, b domain.Booking, refundedCents int64, cancelHold func(context.Context, string) error) {
	if cancelHold != nil && b.SchedulingHoldID != "" {
		if err := cancelHold(ctx, b.SchedulingHoldID); err != nil {
			logrus.Errorf("side effects: cancel hold %s for booking %s: %v", b.SchedulingHoldID, b.ID, err)
		}
	}
	if s.calendar != nil && b.SchedulingSync.CalendarEventID != "" {
		if err := s.calendar.DeleteEvent(ctx, b.SchedulingSync.CalendarEventID); err != nil {
			logrus.Errorf("side effects: delete calendar event for booking %s: %v", b.ID, err)
		}
	}
	s.publish(ctx, notify.RouteCancelled, b, refundedCents)
}

func (s *SideEffects) BookingRefunded(ctx context.Context, b domain.Booking, refundedCents int64) {
	s.publish(ctx, notify.RouteRefunded, b, refundedCents)
}

func (s *SideEffects) BookingRescheduled(ctx context.Context, b domain.Booking, newStart, newEnd time.Time) {
	if s.calendar == nil || b.SchedulingSync.CalendarEventID == "" {
		return
	}
	err := s.calendar.UpdateEvent(ctx, b.SchedulingSync.CalendarEventID, calendar.Event{
		Title:     b.ServiceRef + " — " + b.ClientName,
		Start:     newStart,
		End:       newEnd,
		BookingID: b.ID,
	})
	if err != nil {
		logrus.Errorf("side effects: update calendar event for booking %s: %v", b.ID, err)
	}
}

func (s *SideEffects) syncCalendar(ctx context.Context, b domain.Booking) {
	if s.calendar == nil || b.ScheduledStart.IsZero() {
		return
	}

	now := s.clock.Now()
	state := domain.SchedulingSyncState{Status: domain.SyncStatusOK, SyncedAt: &now}

	eventID, err := s.calendar.CreateEvent(ctx, calendar.Event{
		Title:     b.ServiceRef + " — " + b.ClientName,
		Start:     b.ScheduledStart,
		End:       b.ScheduledStart.Add(time.Hour),
		BookingID: b.ID,
	})
	if err != nil {
		logrus.Errorf("side effects: create calendar event for booking %s: %v", b.ID, err)
		state = domain.SchedulingSyncState{Status: domain.SyncStatusError, Error: err.Error(), SyncedAt: &now}
	} else {
		state.CalendarEventID = eventID
	}

	if err := s.ledger.SetSchedulingSync(ctx, b.ID, state); err != nil {
		logrus.Errorf("side effects: record sync state for booking %s: %v", b.ID, err)
	}
}

func (s *SideEffects) syncCRM(ctx context.Context, c domain.Customer) {
	if s.crm == nil || c.Email == "" {
		return
	}

	ref, err := s.crm.SyncClient(ctx, scheduling.ClientRecord{
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Phone:     c.Phone,
		Marketing: c.Marketing,
	})
	if err != nil {
		logrus.Errorf("side effects: crm sync for customer %s: %v", c.ID, err)
		return
	}
	if ref == "" || ref == c.CRMClientRef {
		return
	}

	c.CRMClientRef = ref
	if _, err := s.ledger.UpsertCustomerByEmail(ctx, c); err != nil {
		logrus.Errorf("side effects: store crm ref for customer %s: %v", c.ID, err)
	}
}

func (s *SideEffects) publish(ctx context.Context, key string, b domain.Booking, refundedCents int64) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, key, notify.Event{
		Kind:           key,
		BookingID:      b.ID,
		ClientName:     b.ClientName,
		ClientEmail:    b.ClientEmail,
		ServiceRef:     b.ServiceRef,
		ScheduledStart: b.ScheduledStart,
		AmountCents:    b.Breakdown.AmountCents,
		RefundedCents:  refundedCents,
		OccurredAt:     s.clock.Now(),
	})
	if err != nil {
		logrus.Errorf("side effects: publish %s for booking %s: %v", key, b.ID, err)
	}
}
