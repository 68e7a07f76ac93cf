package gateway

import (
	"context"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeGateway drives the intent-based processor. A charge creates and
// confirms a PaymentIntent; final settlement may arrive later over webhook.
type StripeGateway struct {
	api *client.API
}

// NewStripe builds a client bound to the given secret key. One instance is
// constructed at process start and injected; no package-global key is set.
func NewStripe(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) Charge(ctx context.Context, in ChargeInput) (ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(in.AmountCents),
		Currency:      stripe.String(in.Currency),
		PaymentMethod: stripe.String(in.Token),
		Confirm:       stripe.Bool(true),
		ReceiptEmail:  stripe.String(in.Billing.Email),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.AddMetadata("order_ref", in.OrderRef)
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("stripe create intent: %w", err)
	}

	res := ChargeResult{
		Succeeded: pi.Status == stripe.PaymentIntentStatusSucceeded ||
			pi.Status == stripe.PaymentIntentStatusProcessing,
		ChargeRef: pi.ID,
	}
	if pi.LatestCharge != nil {
		res.AuthCode = pi.LatestCharge.AuthorizationCode
	}
	return res, nil
}

func (g *StripeGateway) Refund(ctx context.Context, chargeRef string, amountCents int64, reason string) (RefundResult, error) {
	params := &stripe.RefundParams{
		Params: stripe.Params{Context: ctx},
		Amount: stripe.Int64(amountCents),
		Reason: stripe.String(stripeRefundReason(reason)),
	}
	if strings.HasPrefix(chargeRef, "pi_") {
		params.PaymentIntent = stripe.String(chargeRef)
	} else {
		params.Charge = stripe.String(chargeRef)
	}

	ref, err := g.api.Refunds.New(params)
	if err != nil {
		return RefundResult{}, fmt.Errorf("stripe refund: %w", err)
	}
	return RefundResult{
		RefundRef:          ref.ID,
		GrantedAmountCents: ref.Amount,
	}, nil
}

func (g *StripeGateway) RetrieveStatus(ctx context.Context, paymentRef string) (PaymentInfo, error) {
	params := &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}}
	params.AddExpand("latest_charge")

	pi, err := g.api.PaymentIntents.Get(paymentRef, params)
	if err != nil {
		return PaymentInfo{}, fmt.Errorf("stripe retrieve intent: %w", err)
	}

	info := PaymentInfo{
		Status:      mapStripeStatus(pi.Status),
		ChargeRef:   pi.ID,
		AmountCents: pi.Amount,
		Currency:    string(pi.Currency),
		Metadata:    pi.Metadata,
	}
	if pi.LatestCharge != nil && pi.LatestCharge.BillingDetails != nil {
		bd := pi.LatestCharge.BillingDetails
		info.Billing = BillingDetails{
			Email: bd.Email,
			Name:  bd.Name,
			Phone: bd.Phone,
		}
	}
	if info.Billing.Email == "" {
		info.Billing.Email = pi.ReceiptEmail
	}
	return info, nil
}

func mapStripeStatus(s stripe.PaymentIntentStatus) Status {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusProcessing:
		return StatusProcessing
	case stripe.PaymentIntentStatusRequiresCapture:
		return StatusAuthorized
	case stripe.PaymentIntentStatusCanceled:
		return StatusCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction:
		return StatusPending
	}
	return StatusFailed
}

func stripeRefundReason(reason string) string {
	switch reason {
	case "duplicate", "fraudulent":
		return reason
	}
	return string(stripe.RefundReasonRequestedByCustomer)
}
