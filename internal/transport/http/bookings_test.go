package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arielskeren/Auraesthetics-sub002/internal/app"
	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
)

type fakeBookingReader struct {
	detail app.BookingDetail
	err    error
}

func (f *fakeBookingReader) GetBooking(context.Context, string) (app.BookingDetail, error) {
	return f.detail, f.err
}

type fakeRefunder struct {
	cancelReq *app.RefundRequest
	refundReq *app.RefundRequest
	result    app.RefundResult
	err       error
}

func (f *fakeRefunder) CancelBooking(_ context.Context, req app.RefundRequest) (app.RefundResult, error) {
	f.cancelReq = &req
	return f.result, f.err
}

func (f *fakeRefunder) RefundBooking(_ context.Context, req app.RefundRequest) (app.RefundResult, error) {
	f.refundReq = &req
	return f.result, f.err
}

type fakeRescheduler struct {
	bookingID string
	newStart  time.Time
	err       error
}

func (f *fakeRescheduler) Reschedule(_ context.Context, bookingID string, newStart, _ time.Time) error {
	f.bookingID = bookingID
	f.newStart = newStart
	return f.err
}

func TestHandleBookings_Get(t *testing.T) {
	t.Parallel()

	t.Run("returns the booking detail", func(t *testing.T) {
		reader := &fakeBookingReader{detail: app.BookingDetail{
			Booking: domain.Booking{
				ID:               "booking-1",
				SchedulingHoldID: "hold-1",
				PaymentStatus:    domain.PaymentStatusPaid,
				ClientName:       "Ava Stone",
			},
			Payments:         []domain.Payment{{ID: "payment-1", AmountCents: 15000}},
			TotalAmountCents: 15000,
		}}

		req := httptest.NewRequest(http.MethodGet, "/bookings/booking-1", nil)
		rec := httptest.NewRecorder()

		HandleBookings(reader, &fakeRefunder{}, &fakeRescheduler{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Total  int64  `json:"total_amount_cents"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.ID != "booking-1" || resp.Status != "paid" || resp.Total != 15000 {
			t.Fatalf("unexpected response %+v", resp)
		}
	})

	t.Run("unknown booking maps to 404", func(t *testing.T) {
		reader := &fakeBookingReader{err: domain.ErrBookingNotFound}

		req := httptest.NewRequest(http.MethodGet, "/bookings/nope", nil)
		rec := httptest.NewRecorder()

		HandleBookings(reader, &fakeRefunder{}, &fakeRescheduler{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("post to the detail path is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/bookings/booking-1", nil)
		rec := httptest.NewRecorder()

		HandleBookings(&fakeBookingReader{}, &fakeRefunder{}, &fakeRescheduler{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("unknown action is a 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/bookings/booking-1/archive", nil)
		rec := httptest.NewRecorder()

		HandleBookings(&fakeBookingReader{}, &fakeRefunder{}, &fakeRescheduler{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestHandleBookings_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("cancels with an empty body", func(t *testing.T) {
		refunder := &fakeRefunder{result: app.RefundResult{BookingID: "booking-1", GrantedCents: 15000}}

		req := httptest.NewRequest(http.MethodPost, "/bookings/booking-1/cancel", nil)
		rec := httptest.NewRecorder()

		HandleBookings(&fakeBookingReader{}, refunder, &fakeRescheduler{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if refunder.cancelReq == nil || refunder.cancelReq.BookingID != "booking-1" {
			t.Fatalf("expected cancel invoked for booking-1, got %+v", refunder.cancelReq)
		}
		var resp struct {
			Refunded int64  `json:"refunded_cents"`
			Status   string `json:"status"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Refunded != 15000 || resp.Status != "cancelled" {
			t.Fatalf("unexpected response %+v", resp)
		}
	})

	t.Run("double cancel maps to 409", func(t *testing.T) {
		refunder := &fakeRefunder{err: domain.ErrBookingCancelled}

		req := httptest.NewRequest(http.MethodPost, "/bookings/booking-1/cancel", nil)
		rec := httptest.NewRecorder()

		HandleBookings(&fakeBookingReader{}, refunder, &fakeRescheduler{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestHandleBookings_Refund(t *testing.T) {
	t.Parallel()

	t.Run("forwards amount and reason", func(t *testing.T) {
		refunder := &fakeRefunder{result: app.RefundResult{BookingID: "booking-1", GrantedCents: 3000, RemainingAfter: 12000}}

		body := `{"amount_cents":3000,"reason":"late arrival"}`
		req := httptest.NewRequest(http.MethodPost, "/bookings/booking-1/refund", strings.NewReader(body))
		rec := httptest.NewRecorder()

		HandleBookings(&fakeBookingReader{}, refunder, &fakeRescheduler{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if refunder.refundReq == nil || refunder.refundReq.AmountCents != 3000 || refunder.refundReq.Reason != "late arrival" {
			t.Fatalf("expected request forwarded, got %+v", refunder.refundReq)
		}
	})

	t.Run("missing reason maps to 422", func(t *testing.T) {
		refunder := &fakeRefunder{err: domain.ErrRefundReasonRequired}

		req := httptest.NewRequest(http.MethodPost, "/bookings/booking-1/refund", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		HandleBookings(&fakeBookingReader{}, refunder, &fakeRescheduler{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("over-refund maps to 422", func(t *testing.T) {
		refunder := &fakeRefunder{err: domain.ErrInvalidRefundAmount}

		req := httptest.NewRequest(http.MethodPost, "/bookings/booking-1/refund", strings.NewReader(`{"amount_cents":99999,"reason":"x"}`))
		rec := httptest.NewRecorder()

		HandleBookings(&fakeBookingReader{}, refunder, &fakeRescheduler{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("bad body is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/bookings/booking-1/refund", strings.NewReader("not json"))
		rec := httptest.NewRecorder()

		HandleBookings(&fakeBookingReader{}, &fakeRefunder{}, &fakeRescheduler{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestHandleBookings_Reschedule(t *testing.T) {
	t.Parallel()

	t.Run("forwards the new slot", func(t *testing.T) {
		rescheduler := &fakeRescheduler{}
		body := `{"new_start":"2026-04-01T14:00:00Z","new_end":"2026-04-01T15:00:00Z"}`

		req := httptest.NewRequest(http.MethodPost, "/bookings/booking-1/reschedule", strings.NewReader(body))
		rec := httptest.NewRecorder()

		HandleBookings(&fakeBookingReader{}, &fakeRefunder{}, rescheduler).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		want := time.Date(2026, 4, 1, 14, 0, 0, 0, time.UTC)
		if rescheduler.bookingID != "booking-1" || !rescheduler.newStart.Equal(want) {
			t.Fatalf("expected reschedule forwarded, got %s at %s", rescheduler.bookingID, rescheduler.newStart)
		}
	})

	t.Run("missing new_start is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/bookings/booking-1/reschedule", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		HandleBookings(&fakeBookingReader{}, &fakeRefunder{}, &fakeRescheduler{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("cancelled booking maps to 409", func(t *testing.T) {
		rescheduler := &fakeRescheduler{err: domain.ErrBookingCancelled}
		body := `{"new_start":"2026-04-01T14:00:00Z"}`

		req := httptest.NewRequest(http.MethodPost, "/bookings/booking-1/reschedule", strings.NewReader(body))
		rec := httptest.NewRecorder()

		HandleBookings(&fakeBookingReader{}, &fakeRefunder{}, rescheduler).ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}
