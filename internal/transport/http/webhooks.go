package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/arielskeren/Auraesthetics-sub002/internal/app"
)

const maxWebhookBody = 1 << 16

// WebhookApplier is the reconciliation surface webhook handlers drive.
type WebhookApplier interface {
	PaymentSucceeded(ctx context.Context, ev app.WebhookEvent) error
	PaymentFailed(ctx context.Context, ev app.WebhookEvent) error
	ChargeRefunded(ctx context.Context, ev app.WebhookEvent) error
}

// HandleStripeWebhook verifies the event signature and applies it. Handlers
// return 200 for events this core does not reconcile so the gateway stops
// redelivering them.
func HandleStripeWebhook(svc WebhookApplier, signingSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "unreadable body")
			return
		}

		event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), signingSecret)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidSignature, "signature verification failed")
			return
		}

		switch event.Type {
		case "payment_intent.succeeded":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "bad event payload")
				return
			}
			err = svc.PaymentSucceeded(r.Context(), app.WebhookEvent{
				PaymentRef:   pi.ID,
				HoldID:       pi.Metadata["hold_id"],
				DiscountCode: pi.Metadata["discount_code"],
			})
		case "payment_intent.payment_failed", "payment_intent.canceled":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "bad event payload")
				return
			}
			reason := ""
			if pi.LastPaymentError != nil {
				reason = string(pi.LastPaymentError.Code)
			}
			err = svc.PaymentFailed(r.Context(), app.WebhookEvent{
				PaymentRef: pi.ID,
				HoldID:     pi.Metadata["hold_id"],
				Reason:     reason,
			})
		case "charge.refunded":
			var ch stripe.Charge
			if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "bad event payload")
				return
			}
			ref := ch.ID
			if ch.PaymentIntent != nil {
				ref = ch.PaymentIntent.ID
			}
			err = svc.ChargeRefunded(r.Context(), app.WebhookEvent{
				PaymentRef: ref,
				HoldID:     ch.Metadata["hold_id"],
			})
		default:
			w.WriteHeader(http.StatusOK)
			return
		}

		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// OmiseEventVerifier re-retrieves an event from the gateway by id, which
// authenticates the delivery without a shared signing secret.
type OmiseEventVerifier interface {
	RetrieveEvent(ctx context.Context, eventID string) (key string, data json.RawMessage, err error)
}

type omiseChargeData struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
	Failure  *string           `json:"failure_code"`
}

type omiseRefundData struct {
	ChargeID string `json:"charge"`
}

func HandleOmiseWebhook(svc WebhookApplier, verifier OmiseEventVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var incoming struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&incoming); err != nil || incoming.ID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "bad event body")
			return
		}

		key, data, err := verifier.RetrieveEvent(r.Context(), incoming.ID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, codeInvalidSignature, "event verification failed")
			return
		}

		switch key {
		case "charge.complete", "charge.create":
			var ch omiseChargeData
			if err := json.Unmarshal(data, &ch); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "bad event payload")
				return
			}
			ev := app.WebhookEvent{
				PaymentRef:   ch.ID,
				HoldID:       ch.Metadata["hold_id"],
				DiscountCode: ch.Metadata["discount_code"],
			}
			if ch.Status == "successful" {
				err = svc.PaymentSucceeded(r.Context(), ev)
			} else if ch.Status == "failed" || ch.Status == "expired" {
				if ch.Failure != nil {
					ev.Reason = *ch.Failure
				}
				err = svc.PaymentFailed(r.Context(), ev)
			}
		case "refund.create":
			var ref omiseRefundData
			if err := json.Unmarshal(data, &ref); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "bad event payload")
				return
			}
			err = svc.ChargeRefunded(r.Context(), app.WebhookEvent{PaymentRef: ref.ChargeID})
		default:
			// Other event keys are not reconciled by this core.
		}

		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
