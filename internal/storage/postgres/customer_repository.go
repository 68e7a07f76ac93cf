package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CustomerRepository struct {
	pool *pgxpool.Pool
}

func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// NormalizeEmail is the e-mail identity used for the unique index.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UpsertByEmail merges the customer onto any existing row with the same
// normalized email. New non-empty values win; used_welcome_offer is sticky
// and accumulates with OR, never reverting to false.
func (r *CustomerRepository) UpsertByEmail(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	const stmt = `
INSERT INTO customers (email, first_name, last_name, phone, marketing, gateway_ref, crm_client_ref, used_welcome_offer, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
ON CONFLICT (email) DO UPDATE SET
	first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), customers.first_name),
	last_name = COALESCE(NULLIF(EXCLUDED.last_name, ''), customers.last_name),
	phone = COALESCE(NULLIF(EXCLUDED.phone, ''), customers.phone),
	marketing = customers.marketing OR EXCLUDED.marketing,
	gateway_ref = COALESCE(NULLIF(EXCLUDED.gateway_ref, ''), customers.gateway_ref),
	crm_client_ref = COALESCE(NULLIF(EXCLUDED.crm_client_ref, ''), customers.crm_client_ref),
	used_welcome_offer = customers.used_welcome_offer OR EXCLUDED.used_welcome_offer,
	updated_at = NOW()
RETURNING id, email, first_name, last_name, phone, marketing, gateway_ref, crm_client_ref, used_welcome_offer, created_at, updated_at`

	var out domain.Customer
	err := r.queryRow(ctx, stmt,
		NormalizeEmail(c.Email),
		c.FirstName, c.LastName, c.Phone, c.Marketing,
		c.GatewayRef, c.CRMClientRef, c.UsedWelcomeOffer,
	).Scan(
		&out.ID, &out.Email, &out.FirstName, &out.LastName, &out.Phone,
		&out.Marketing, &out.GatewayRef, &out.CRMClientRef, &out.UsedWelcomeOffer,
		&out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("upsert customer: %w", err)
	}
	return out, nil
}

func (r *CustomerRepository) GetByEmail(ctx context.Context, email string) (domain.Customer, error) {
	const query = `
SELECT id, email, first_name, last_name, phone, marketing, gateway_ref, crm_client_ref, used_welcome_offer, created_at, updated_at
FROM customers
WHERE email = $1`

	var c domain.Customer
	err := r.queryRow(ctx, query, NormalizeEmail(email)).Scan(
		&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Phone,
		&c.Marketing, &c.GatewayRef, &c.CRMClientRef, &c.UsedWelcomeOffer,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// MarkWelcomeOfferUsed flips the sticky flag; it never needs undoing.
func (r *CustomerRepository) MarkWelcomeOfferUsed(ctx context.Context, customerID string) error {
	const stmt = `UPDATE customers SET used_welcome_offer = TRUE, updated_at = NOW() WHERE id = $1`
	tag, err := r.exec(ctx, stmt, customerID)
	if err != nil {
		return fmt.Errorf("mark welcome offer used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

func (r *CustomerRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *CustomerRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
