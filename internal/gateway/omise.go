package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
)

// OmiseGateway drives the vault-based processor. Charges settle
// synchronously: the result of CreateCharge already carries the final
// status for card payments.
type OmiseGateway struct {
	client *omise.Client
}

func NewOmise(publicKey, secretKey string) (*OmiseGateway, error) {
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("omise client: %w", err)
	}
	return &OmiseGateway{client: c}, nil
}

func (g *OmiseGateway) Charge(ctx context.Context, in ChargeInput) (ChargeResult, error) {
	meta := map[string]any{"order_ref": in.OrderRef}
	for k, v := range in.Metadata {
		meta[k] = v
	}
	if in.Billing.Email != "" {
		meta["email"] = in.Billing.Email
	}
	if in.Billing.Name != "" {
		meta["name"] = in.Billing.Name
	}
	if in.Billing.Phone != "" {
		meta["phone"] = in.Billing.Phone
	}

	req := &operations.CreateCharge{
		Amount:   in.AmountCents,
		Currency: in.Currency,
		Metadata: meta,
	}
	if in.VaultRef != "" {
		req.Customer = in.VaultRef
		req.Card = in.Token
	} else {
		req.Card = in.Token
	}

	ch := &omise.Charge{}
	if err := g.client.Do(ch, req); err != nil {
		return ChargeResult{}, fmt.Errorf("omise create charge: %w", err)
	}

	return ChargeResult{
		Succeeded: string(ch.Status) == "successful",
		ChargeRef: ch.ID,
		VaultRef:  ch.CustomerID,
	}, nil
}

func (g *OmiseGateway) Refund(ctx context.Context, chargeRef string, amountCents int64, reason string) (RefundResult, error) {
	ref := &omise.Refund{}
	err := g.client.Do(ref, &operations.CreateRefund{
		ChargeID: chargeRef,
		Amount:   amountCents,
		Metadata: map[string]any{"reason": reason},
	})
	if err != nil {
		return RefundResult{}, fmt.Errorf("omise refund: %w", err)
	}
	return RefundResult{
		RefundRef:          ref.ID,
		GrantedAmountCents: ref.Amount,
	}, nil
}

func (g *OmiseGateway) RetrieveStatus(ctx context.Context, paymentRef string) (PaymentInfo, error) {
	ch := &omise.Charge{}
	if err := g.client.Do(ch, &operations.RetrieveCharge{ChargeID: paymentRef}); err != nil {
		return PaymentInfo{}, fmt.Errorf("omise retrieve charge: %w", err)
	}

	info := PaymentInfo{
		Status:      mapOmiseStatus(string(ch.Status)),
		ChargeRef:   ch.ID,
		AmountCents: ch.Amount,
		Currency:    ch.Currency,
		Metadata:    make(map[string]string, len(ch.Metadata)),
	}
	for k, v := range ch.Metadata {
		if s, ok := v.(string); ok {
			info.Metadata[k] = s
		}
	}
	info.Billing = BillingDetails{
		Email: info.Metadata["email"],
		Name:  info.Metadata["name"],
		Phone: info.Metadata["phone"],
	}
	return info, nil
}

// RetrieveEvent re-fetches a webhook event by id so the transport never
// trusts an unauthenticated payload. Returns the event key and the raw
// event data.
func (g *OmiseGateway) RetrieveEvent(ctx context.Context, eventID string) (string, json.RawMessage, error) {
	ev := &omise.Event{}
	if err := g.client.Do(ev, &operations.RetrieveEvent{EventID: eventID}); err != nil {
		return "", nil, fmt.Errorf("omise retrieve event: %w", err)
	}
	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return "", nil, fmt.Errorf("omise event data: %w", err)
	}
	return ev.Key, raw, nil
}

func mapOmiseStatus(s string) Status {
	switch s {
	case "successful":
		return StatusSucceeded
	case "pending":
		return StatusProcessing
	case "reversed", "expired":
		return StatusCanceled
	case "failed":
		return StatusFailed
	}
	return StatusPending
}
