package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/arielskeren/Auraesthetics-sub002/internal/app"
	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
)

// BookingGetter is the minimal interface needed to read one booking.
type BookingGetter interface {
	GetBooking(ctx context.Context, id string) (app.BookingDetail, error)
}

// BookingRefunder covers the staff-initiated money operations.
type BookingRefunder interface {
	CancelBooking(ctx context.Context, req app.RefundRequest) (app.RefundResult, error)
	RefundBooking(ctx context.Context, req app.RefundRequest) (app.RefundResult, error)
}

// BookingRescheduler moves a booking to a new slot.
type BookingRescheduler interface {
	Reschedule(ctx context.Context, bookingID string, newStart, newEnd time.Time) error
}

// HandleBookings dispatches /bookings/{id} and its action sub-paths.
func HandleBookings(reader BookingGetter, refunder BookingRefunder, rescheduler BookingRescheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, action, ok := parseBookingPath(r.URL.Path)
		if !ok {
			NotFoundHandler().ServeHTTP(w, r)
			return
		}

		switch action {
		case "":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			handleGetBooking(w, r, reader, id)
		case "cancel":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			handleCancelBooking(w, r, refunder, id)
		case "refund":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			handleRefundBooking(w, r, refunder, id)
		case "reschedule":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			handleReschedule(w, r, rescheduler, id)
		default:
			NotFoundHandler().ServeHTTP(w, r)
		}
	}
}

func parseBookingPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 {
		return "", "", false
	}
	if parts[0] != "bookings" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		return parts[1], "", true
	}
	return parts[1], parts[2], true
}

type paymentResponse struct {
	ID            string    `json:"id"`
	ChargeRef     string    `json:"charge_ref"`
	AmountCents   int64     `json:"amount_cents"`
	RefundedCents int64     `json:"refunded_cents"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
}

type refundResponse struct {
	ID                   string    `json:"id"`
	PaymentID            string    `json:"payment_id"`
	RefundRef            string    `json:"refund_ref"`
	RequestedAmountCents int64     `json:"requested_amount_cents"`
	AmountCents          int64     `json:"amount_cents"`
	Reason               string    `json:"reason"`
	CreatedAt            time.Time `json:"created_at"`
}

type eventResponse struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type bookingResponse struct {
	ID                 string            `json:"id"`
	SchedulingHoldID   string            `json:"scheduling_hold_id"`
	Status             string            `json:"status"`
	ClientName         string            `json:"client_name"`
	ClientEmail        string            `json:"client_email"`
	ServiceRef         string            `json:"service_ref"`
	ScheduledStart     *time.Time        `json:"scheduled_start,omitempty"`
	TotalAmountCents   int64             `json:"total_amount_cents"`
	TotalRefundedCents int64             `json:"total_refunded_cents"`
	Payments           []paymentResponse `json:"payments"`
	Refunds            []refundResponse  `json:"refunds"`
	Events             []eventResponse   `json:"events"`
	CreatedAt          time.Time         `json:"created_at"`
}

func handleGetBooking(w http.ResponseWriter, r *http.Request, reader BookingGetter, id string) {
	detail, err := reader.GetBooking(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := bookingResponse{
		ID:                 detail.Booking.ID,
		SchedulingHoldID:   detail.Booking.SchedulingHoldID,
		Status:             string(detail.Booking.PaymentStatus),
		ClientName:         detail.Booking.ClientName,
		ClientEmail:        detail.Booking.ClientEmail,
		ServiceRef:         detail.Booking.ServiceRef,
		TotalAmountCents:   detail.TotalAmountCents,
		TotalRefundedCents: detail.TotalRefundedCents,
		Payments:           make([]paymentResponse, 0, len(detail.Payments)),
		Refunds:            make([]refundResponse, 0, len(detail.Refunds)),
		Events:             make([]eventResponse, 0, len(detail.Events)),
		CreatedAt:          detail.Booking.CreatedAt,
	}
	if !detail.Booking.ScheduledStart.IsZero() {
		start := detail.Booking.ScheduledStart
		resp.ScheduledStart = &start
	}
	for _, p := range detail.Payments {
		resp.Payments = append(resp.Payments, paymentResponse{
			ID:            p.ID,
			ChargeRef:     p.ChargeRef,
			AmountCents:   p.AmountCents,
			RefundedCents: p.RefundedCents,
			Currency:      p.Currency,
			CreatedAt:     p.CreatedAt,
		})
	}
	for _, ref := range detail.Refunds {
		resp.Refunds = append(resp.Refunds, refundResponse{
			ID:                   ref.ID,
			PaymentID:            ref.PaymentID,
			RefundRef:            ref.RefundRef,
			RequestedAmountCents: ref.RequestedAmountCents,
			AmountCents:          ref.AmountCents,
			Reason:               ref.Reason,
			CreatedAt:            ref.CreatedAt,
		})
	}
	for _, ev := range detail.Events {
		resp.Events = append(resp.Events, eventResponse{
			Type:      string(ev.Type),
			Payload:   ev.Data,
			CreatedAt: ev.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

type refundRequestBody struct {
	AmountCents int64  `json:"amount_cents"`
	Percent     int    `json:"percent"`
	Reason      string `json:"reason"`
}

type refundResultResponse struct {
	BookingID      string `json:"booking_id"`
	RefundedCents  int64  `json:"refunded_cents"`
	RemainingCents int64  `json:"remaining_cents"`
	Status         string `json:"status"`
}

func handleCancelBooking(w http.ResponseWriter, r *http.Request, refunder BookingRefunder, id string) {
	var body refundRequestBody
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
	}

	res, err := refunder.CancelBooking(r.Context(), app.RefundRequest{
		BookingID:   id,
		AmountCents: body.AmountCents,
		Percent:     body.Percent,
		Reason:      body.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeRefundResult(w, res, domain.PaymentStatusCancelled)
}

func handleRefundBooking(w http.ResponseWriter, r *http.Request, refunder BookingRefunder, id string) {
	var body refundRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	res, err := refunder.RefundBooking(r.Context(), app.RefundRequest{
		BookingID:   id,
		AmountCents: body.AmountCents,
		Percent:     body.Percent,
		Reason:      body.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeRefundResult(w, res, domain.PaymentStatusRefunded)
}

func writeRefundResult(w http.ResponseWriter, res app.RefundResult, status domain.PaymentStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(refundResultResponse{
		BookingID:      res.BookingID,
		RefundedCents:  res.GrantedCents,
		RemainingCents: res.RemainingAfter,
		Status:         string(status),
	})
}

type rescheduleRequestBody struct {
	NewStart time.Time `json:"new_start"`
	NewEnd   time.Time `json:"new_end"`
}

func handleReschedule(w http.ResponseWriter, r *http.Request, rescheduler BookingRescheduler, id string) {
	var body rescheduleRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if body.NewStart.IsZero() {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "new_start is required")
		return
	}

	if err := rescheduler.Reschedule(r.Context(), id, body.NewStart, body.NewEnd); err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"booking_id": id,
		"status":     "rescheduled",
	})
}
