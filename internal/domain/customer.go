package domain

import "time"

// Customer is keyed by normalized email. Upserts merge non-empty fields and
// never revert UsedWelcomeOffer once set.
type Customer struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Phone        string
	Marketing    bool
	GatewayRef   string
	CRMClientRef string

	UsedWelcomeOffer bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
