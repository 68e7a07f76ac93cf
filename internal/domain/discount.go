package domain

import "time"

type DiscountScope string

const (
	// DiscountScopeCustomer is a one-time code minted for a single customer.
	DiscountScopeCustomer DiscountScope = "customer"
	// DiscountScopeGlobal is a shared code with a usage cap.
	DiscountScopeGlobal DiscountScope = "global"
)

type DiscountKind string

const (
	DiscountKindPercent DiscountKind = "percent"
	DiscountKindFixed   DiscountKind = "fixed"
)

// DiscountCode row. Catalog CRUD is owned elsewhere; this core only locks,
// verifies and consumes codes inside the finalization transaction.
type DiscountCode struct {
	ID         string
	Code       string
	Scope      DiscountScope
	CustomerID string

	Kind  DiscountKind
	Value int64

	Used       bool
	UsageCount int
	MaxUses    int
	Active     bool
	ExpiresAt  *time.Time

	CreatedAt time.Time
}

// Expired reports whether the code is past its expiry at the given instant.
func (d DiscountCode) Expired(now time.Time) bool {
	return d.ExpiresAt != nil && !d.ExpiresAt.After(now)
}
