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

type DiscountRepository struct {
	pool *pgxpool.Pool
}

func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

func (r *DiscountRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// GetByCodeForUpdate locks the code row for the rest of the transaction so
// concurrent finalizations serialize on it.
func (r *DiscountRepository) GetByCodeForUpdate(ctx context.Context, code string) (domain.DiscountCode, error) {
	const query = `
SELECT id, code, scope, COALESCE(customer_id::text, ''), kind, value, used, usage_count, max_uses, active, expires_at, created_at
FROM discount_codes
WHERE code = $1
FOR UPDATE`

	var (
		d     domain.DiscountCode
		scope string
		kind  string
	)
	err := r.queryRow(ctx, query, strings.ToLower(strings.TrimSpace(code))).Scan(
		&d.ID, &d.Code, &scope, &d.CustomerID, &kind, &d.Value,
		&d.Used, &d.UsageCount, &d.MaxUses, &d.Active, &d.ExpiresAt, &d.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.DiscountCode{}, domain.ErrDiscountNotFound
		}
		return domain.DiscountCode{}, fmt.Errorf("get discount code: %w", err)
	}
	d.Scope = domain.DiscountScope(scope)
	d.Kind = domain.DiscountKind(kind)
	return d, nil
}

// MarkUsed flips a one-time code exactly once. Zero rows affected means a
// concurrent transaction already consumed it.
func (r *DiscountRepository) MarkUsed(ctx context.Context, id string) error {
	const stmt = `UPDATE discount_codes SET used = TRUE WHERE id = $1 AND used = FALSE`
	tag, err := r.exec(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("mark discount used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDiscountNotFound
	}
	return nil
}

// IncrementUsage bumps a global code's counter and deactivates it once the
// cap is reached. max_uses = 0 means uncapped.
func (r *DiscountRepository) IncrementUsage(ctx context.Context, id string) error {
	const stmt = `
UPDATE discount_codes
SET usage_count = usage_count + 1,
	active = (max_uses = 0 OR usage_count + 1 < max_uses)
WHERE id = $1 AND active = TRUE`

	tag, err := r.exec(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("increment discount usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDiscountNotFound
	}
	return nil
}

func (r *DiscountRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *DiscountRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
