package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const bookingColumns = `
id, scheduling_hold_id, service_ref, COALESCE(customer_id::text, ''),
client_name, client_email, client_phone,
COALESCE(scheduled_start, 'epoch'::timestamptz),
payment_status, payment_type,
amount_cents, deposit_amount_cents, final_amount_cents, discount_amount_cents,
discount_code, payment_ref,
sync_status, sync_error, calendar_event_id, synced_at,
provider_payload, created_at, updated_at`

// UpsertByHoldID creates or merges the booking keyed on the external
// scheduling hold id and returns its id. Conflicting rows keep their
// existing values wherever the new ones are empty. The denormalized
// amount columns hold the largest single charge seen, so a redelivered
// webhook can never shrink them; the payments table is authoritative
// for totals and BookingDetail sums it.
func (r *BookingRepository) UpsertByHoldID(ctx context.Context, holdID string, up domain.BookingUpsert) (string, error) {
	const stmt = `
INSERT INTO bookings (
	scheduling_hold_id, service_ref, client_name, client_email, client_phone,
	scheduled_start, payment_type,
	amount_cents, deposit_amount_cents, final_amount_cents, discount_amount_cents,
	discount_code, payment_ref, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
ON CONFLICT (scheduling_hold_id) DO UPDATE SET
	service_ref = COALESCE(NULLIF(EXCLUDED.service_ref, ''), bookings.service_ref),
	client_name = COALESCE(NULLIF(EXCLUDED.client_name, ''), bookings.client_name),
	client_email = COALESCE(NULLIF(EXCLUDED.client_email, ''), bookings.client_email),
	client_phone = COALESCE(NULLIF(EXCLUDED.client_phone, ''), bookings.client_phone),
	scheduled_start = COALESCE(EXCLUDED.scheduled_start, bookings.scheduled_start),
	payment_type = COALESCE(NULLIF(EXCLUDED.payment_type, ''), bookings.payment_type),
	amount_cents = GREATEST(EXCLUDED.amount_cents, bookings.amount_cents),
	deposit_amount_cents = GREATEST(EXCLUDED.deposit_amount_cents, bookings.deposit_amount_cents),
	final_amount_cents = GREATEST(EXCLUDED.final_amount_cents, bookings.final_amount_cents),
	discount_amount_cents = GREATEST(EXCLUDED.discount_amount_cents, bookings.discount_amount_cents),
	discount_code = COALESCE(NULLIF(EXCLUDED.discount_code, ''), bookings.discount_code),
	payment_ref = COALESCE(NULLIF(EXCLUDED.payment_ref, ''), bookings.payment_ref),
	updated_at = NOW()
RETURNING id`

	var start *time.Time
	if up.ScheduledStart != nil && !up.ScheduledStart.IsZero() {
		start = up.ScheduledStart
	}

	var id string
	err := r.queryRow(ctx, stmt,
		holdID,
		up.ServiceRef,
		up.ClientName,
		up.ClientEmail,
		up.ClientPhone,
		start,
		string(up.PaymentType),
		up.Breakdown.AmountCents,
		up.Breakdown.DepositAmountCents,
		up.Breakdown.FinalAmountCents,
		up.Breakdown.DiscountAmountCents,
		up.DiscountCode,
		up.PaymentRef,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert booking: %w", err)
	}
	return id, nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (domain.Booking, error) {
	return r.getBy(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *BookingRepository) GetByHoldID(ctx context.Context, holdID string) (domain.Booking, error) {
	return r.getBy(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE scheduling_hold_id = $1`, holdID)
}

func (r *BookingRepository) GetByPaymentRef(ctx context.Context, ref string) (domain.Booking, error) {
	return r.getBy(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE payment_ref = $1 ORDER BY created_at DESC LIMIT 1`, ref)
}

func (r *BookingRepository) getBy(ctx context.Context, query, arg string) (domain.Booking, error) {
	var (
		b        domain.Booking
		status   string
		ptype    string
		sync     string
		start    time.Time
		syncedAt *time.Time
	)
	err := r.queryRow(ctx, query, arg).Scan(
		&b.ID, &b.SchedulingHoldID, &b.ServiceRef, &b.CustomerID,
		&b.ClientName, &b.ClientEmail, &b.ClientPhone,
		&start,
		&status, &ptype,
		&b.Breakdown.AmountCents, &b.Breakdown.DepositAmountCents,
		&b.Breakdown.FinalAmountCents, &b.Breakdown.DiscountAmountCents,
		&b.DiscountCode, &b.PaymentRef,
		&sync, &b.SchedulingSync.Error, &b.SchedulingSync.CalendarEventID, &syncedAt,
		&b.ProviderPayload, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Booking{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Booking{}, domain.ErrBookingNotFound
		}
		return domain.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	if start.Unix() != 0 {
		b.ScheduledStart = start
	}
	b.PaymentStatus = domain.PaymentStatus(status)
	b.PaymentType = domain.PaymentType(ptype)
	b.SchedulingSync.Status = domain.SyncStatus(sync)
	b.SchedulingSync.SyncedAt = syncedAt
	return b, nil
}

func (r *BookingRepository) SetCustomer(ctx context.Context, bookingID, customerID string) error {
	const stmt = `UPDATE bookings SET customer_id = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.exec(ctx, stmt, bookingID, customerID)
	if err != nil {
		return fmt.Errorf("set booking customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepository) SetStatus(ctx context.Context, bookingID string, status domain.PaymentStatus) error {
	const stmt = `UPDATE bookings SET payment_status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.exec(ctx, stmt, bookingID, string(status))
	if err != nil {
		return fmt.Errorf("set booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepository) SetScheduledStart(ctx context.Context, bookingID string, start time.Time) error {
	const stmt = `UPDATE bookings SET scheduled_start = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.exec(ctx, stmt, bookingID, start)
	if err != nil {
		return fmt.Errorf("set scheduled start: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

// SetSchedulingSync records the non-authoritative sync outcome. Callers on
// best-effort paths ignore the returned error after logging it.
func (r *BookingRepository) SetSchedulingSync(ctx context.Context, bookingID string, state domain.SchedulingSyncState) error {
	const stmt = `
UPDATE bookings
SET sync_status = $2, sync_error = $3, calendar_event_id = COALESCE(NULLIF($4, ''), calendar_event_id),
	synced_at = $5, updated_at = NOW()
WHERE id = $1`
	tag, err := r.exec(ctx, stmt, bookingID, string(state.Status), state.Error, state.CalendarEventID, state.SyncedAt)
	if err != nil {
		return fmt.Errorf("set scheduling sync: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

// InsertEvent appends to the booking audit trail.
func (r *BookingRepository) InsertEvent(ctx context.Context, ev domain.BookingEvent) error {
	const stmt = `
INSERT INTO booking_events (id, booking_id, type, data, created_at)
VALUES ($1, $2, $3, $4, $5)`
	data := ev.Data
	if data == nil {
		data = json.RawMessage(`{}`)
	}
	if _, err := r.exec(ctx, stmt, ev.ID, ev.BookingID, string(ev.Type), data, ev.CreatedAt); err != nil {
		return fmt.Errorf("insert booking event: %w", err)
	}
	return nil
}

func (r *BookingRepository) ListEvents(ctx context.Context, bookingID string) ([]domain.BookingEvent, error) {
	const query = `
SELECT id, booking_id, type, COALESCE(data, '{}'::jsonb), created_at
FROM booking_events
WHERE booking_id = $1
ORDER BY created_at`

	rows, err := r.query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list booking events: %w", err)
	}
	defer rows.Close()

	var events []domain.BookingEvent
	for rows.Next() {
		var (
			ev  domain.BookingEvent
			typ string
		)
		if err := rows.Scan(&ev.ID, &ev.BookingID, &typ, &ev.Data, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking event: %w", err)
		}
		ev.Type = domain.BookingEventType(typ)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *BookingRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *BookingRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *BookingRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
