// Package gateway abstracts the payment processors behind one capability
// surface so the orchestrators are written once. Two concrete processors
// exist: Stripe (intent-based, asynchronous confirmation) and Omise
// (vault-based, synchronous charge results).
package gateway

import "context"

type Status string

const (
	StatusSucceeded  Status = "succeeded"
	StatusProcessing Status = "processing"
	StatusAuthorized Status = "authorized"
	StatusPending    Status = "pending"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Chargeable reports whether a payment in this state may finalize a booking.
func (s Status) Chargeable() bool {
	switch s {
	case StatusSucceeded, StatusProcessing, StatusAuthorized:
		return true
	}
	return false
}

// BillingDetails is the contact snapshot the processor holds for a payment.
type BillingDetails struct {
	Email string
	Name  string
	Phone string
}

type ChargeInput struct {
	Token       string
	VaultRef    string
	AmountCents int64
	Currency    string
	OrderRef    string
	Billing     BillingDetails
	Metadata    map[string]string
}

type ChargeResult struct {
	Succeeded bool
	ChargeRef string
	AuthCode  string
	VaultRef  string
}

// RefundResult reports what the processor actually granted. Granted is
// authoritative over whatever was requested; orchestrators validate it
// against the ledger and never clamp it silently.
type RefundResult struct {
	RefundRef          string
	GrantedAmountCents int64
}

// PaymentInfo is the authoritative view of a payment retrieved from the
// processor, including the billing details used to upsert the customer and
// the correlation metadata set at charge time.
type PaymentInfo struct {
	Status      Status
	ChargeRef   string
	AmountCents int64
	Currency    string
	Billing     BillingDetails
	Metadata    map[string]string
}

type Gateway interface {
	Charge(ctx context.Context, in ChargeInput) (ChargeResult, error)
	Refund(ctx context.Context, chargeRef string, amountCents int64, reason string) (RefundResult, error)
	RetrieveStatus(ctx context.Context, paymentRef string) (PaymentInfo, error)
}
