package postgres

import (
	"context"
	"fmt"

	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// LockPaymentRows takes an exclusive lock on every payment row of the
// booking and returns the rows plus totals computed fresh from the payments
// and refunds tables. Must run inside an open transaction; concurrent
// refund attempts on the same booking serialize here.
func (r *PaymentRepository) LockPaymentRows(ctx context.Context, bookingID string) ([]domain.Payment, domain.LedgerTotals, error) {
	const lockQuery = `
SELECT id, booking_id, charge_ref, amount_cents, refunded_cents, currency, status, created_at
FROM payments
WHERE booking_id = $1
ORDER BY created_at
FOR UPDATE`

	rows, err := r.query(ctx, lockQuery, bookingID)
	if err != nil {
		return nil, domain.LedgerTotals{}, fmt.Errorf("lock payment rows: %w", err)
	}
	defer rows.Close()

	var (
		payments []domain.Payment
		totals   domain.LedgerTotals
	)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.BookingID, &p.ChargeRef, &p.AmountCents, &p.RefundedCents, &p.Currency, &p.Status, &p.CreatedAt); err != nil {
			return nil, domain.LedgerTotals{}, fmt.Errorf("scan payment: %w", err)
		}
		totals.TotalAmountCents += p.AmountCents
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.LedgerTotals{}, fmt.Errorf("lock payment rows: %w", err)
	}

	const refundedQuery = `SELECT COALESCE(SUM(amount_cents), 0) FROM refunds WHERE booking_id = $1`
	if err := r.queryRow(ctx, refundedQuery, bookingID).Scan(&totals.TotalRefundedCents); err != nil {
		return nil, domain.LedgerTotals{}, fmt.Errorf("sum refunds: %w", err)
	}
	return payments, totals, nil
}

// FindByBookingAndCharge is the finalization idempotency gate: one payment
// row per (booking, external charge reference).
func (r *PaymentRepository) FindByBookingAndCharge(ctx context.Context, bookingID, chargeRef string) (*domain.Payment, error) {
	const query = `
SELECT id, booking_id, charge_ref, amount_cents, refunded_cents, currency, status, created_at
FROM payments
WHERE booking_id = $1 AND charge_ref = $2`

	var p domain.Payment
	err := r.queryRow(ctx, query, bookingID, chargeRef).
		Scan(&p.ID, &p.BookingID, &p.ChargeRef, &p.AmountCents, &p.RefundedCents, &p.Currency, &p.Status, &p.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &p, nil
}

func (r *PaymentRepository) Create(ctx context.Context, p domain.Payment) error {
	const stmt = `
INSERT INTO payments (id, booking_id, charge_ref, amount_cents, refunded_cents, currency, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt, p.ID, p.BookingID, p.ChargeRef, p.AmountCents, p.RefundedCents, p.Currency, p.Status, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent finalization won the race; callers re-read.
			return domain.ErrPaymentNotFound
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// AddRefundedCents bumps the monotonically non-decreasing refunded total.
// The WHERE clause re-checks the cap against the row itself so the invariant
// holds even if a caller computed from a stale read.
func (r *PaymentRepository) AddRefundedCents(ctx context.Context, paymentID string, delta int64) error {
	const stmt = `
UPDATE payments
SET refunded_cents = refunded_cents + $2
WHERE id = $1 AND refunded_cents + $2 <= amount_cents`

	tag, err := r.exec(ctx, stmt, paymentID, delta)
	if err != nil {
		return fmt.Errorf("add refunded cents: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLedgerConsistency
	}
	return nil
}

func (r *PaymentRepository) CreateRefund(ctx context.Context, ref domain.Refund) error {
	const stmt = `
INSERT INTO refunds (id, payment_id, booking_id, refund_ref, amount_cents, requested_amount_cents, reason, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.exec(ctx, stmt,
		ref.ID, ref.PaymentID, ref.BookingID, ref.RefundRef,
		ref.AmountCents, ref.RequestedAmountCents, ref.Reason, ref.Status, ref.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create refund: %w", err)
	}
	return nil
}

func (r *PaymentRepository) ListByBooking(ctx context.Context, bookingID string) ([]domain.Payment, error) {
	const query = `
SELECT id, booking_id, charge_ref, amount_cents, refunded_cents, currency, status, created_at
FROM payments
WHERE booking_id = $1
ORDER BY created_at`

	rows, err := r.query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.BookingID, &p.ChargeRef, &p.AmountCents, &p.RefundedCents, &p.Currency, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *PaymentRepository) ListRefundsByBooking(ctx context.Context, bookingID string) ([]domain.Refund, error) {
	const query = `
SELECT id, payment_id, booking_id, refund_ref, amount_cents, requested_amount_cents, reason, status, created_at
FROM refunds
WHERE booking_id = $1
ORDER BY created_at`

	rows, err := r.query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []domain.Refund
	for rows.Next() {
		var ref domain.Refund
		if err := rows.Scan(&ref.ID, &ref.PaymentID, &ref.BookingID, &ref.RefundRef, &ref.AmountCents, &ref.RequestedAmountCents, &ref.Reason, &ref.Status, &ref.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan refund: %w", err)
		}
		refunds = append(refunds, ref)
	}
	return refunds, rows.Err()
}

func (r *PaymentRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *PaymentRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *PaymentRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
