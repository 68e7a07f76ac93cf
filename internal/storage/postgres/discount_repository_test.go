package postgres

import (
	"context"
	"testing"

	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
	"github.com/arielskeren/Auraesthetics-sub002/internal/testutil"
)

func TestDiscountRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewDiscountRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("GetByCodeForUpdate normalizes the code", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		custID := testutil.InsertCustomer(t, ctx, pool, "ava@example.com")
		testutil.InsertDiscount(t, ctx, pool, "welcome10", "customer", &custID)

		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			d, err := repo.GetByCodeForUpdate(txCtx, "  WELCOME10 ")
			if err != nil {
				return err
			}
			if d.Scope != domain.DiscountScopeCustomer {
				t.Fatalf("expected customer scope, got %s", d.Scope)
			}
			if d.CustomerID != custID {
				t.Fatalf("expected owner %s, got %s", custID, d.CustomerID)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("tx: %v", err)
		}

		if _, err := repo.GetByCodeForUpdate(ctx, "nope"); err != domain.ErrDiscountNotFound {
			t.Fatalf("expected ErrDiscountNotFound, got %v", err)
		}
	})

	t.Run("MarkUsed consumes a one-time code exactly once", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		custID := testutil.InsertCustomer(t, ctx, pool, "ava@example.com")
		id := testutil.InsertDiscount(t, ctx, pool, "welcome10", "customer", &custID)

		if err := repo.MarkUsed(ctx, id); err != nil {
			t.Fatalf("first mark: %v", err)
		}
		if err := repo.MarkUsed(ctx, id); err != domain.ErrDiscountNotFound {
			t.Fatalf("expected second mark rejected, got %v", err)
		}
	})

	t.Run("IncrementUsage deactivates at the cap", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		id := testutil.InsertDiscount(t, ctx, pool, "summer25", "global", nil)
		if _, err := pool.Exec(ctx, `UPDATE discount_codes SET max_uses = 2 WHERE id = $1`, id); err != nil {
			t.Fatalf("set max_uses: %v", err)
		}

		if err := repo.IncrementUsage(ctx, id); err != nil {
			t.Fatalf("first use: %v", err)
		}
		if err := repo.IncrementUsage(ctx, id); err != nil {
			t.Fatalf("second use: %v", err)
		}
		if err := repo.IncrementUsage(ctx, id); err != domain.ErrDiscountNotFound {
			t.Fatalf("expected deactivated code rejected, got %v", err)
		}

		var active bool
		var count int
		if err := pool.QueryRow(ctx, `SELECT active, usage_count FROM discount_codes WHERE id = $1`, id).Scan(&active, &count); err != nil {
			t.Fatalf("query: %v", err)
		}
		if active || count != 2 {
			t.Fatalf("expected inactive at usage_count 2, got active=%v count=%d", active, count)
		}
	})

	t.Run("uncapped codes keep counting", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		id := testutil.InsertDiscount(t, ctx, pool, "forever5", "global", nil)

		for i := 0; i < 3; i++ {
			if err := repo.IncrementUsage(ctx, id); err != nil {
				t.Fatalf("use %d: %v", i+1, err)
			}
		}
	})
}
