package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arielskeren/Auraesthetics-sub002/internal/domain"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeInvalidSignature    = "invalid_signature"
	codeInvalidAmount       = "invalid_amount"
	codeInvalidRefund       = "invalid_refund_amount"
	codeRefundReasonMissing = "refund_reason_required"
	codeNotChargeable       = "payment_not_chargeable"
	codeBookingNotFound     = "booking_not_found"
	codePaymentNotFound     = "payment_not_found"
	codeBookingCancelled    = "booking_already_cancelled"
	codeDiscountNotFound    = "discount_not_found"
	codeHoldRequired        = "hold_id_required"
	codeForbidden           = "forbidden"
	codeLedgerConsistency   = "ledger_consistency"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps domain sentinels to HTTP status codes. Unknown
// errors surface as 500 without leaking internals.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, codeBookingNotFound, err.Error())
	case errors.Is(err, domain.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, codePaymentNotFound, err.Error())
	case errors.Is(err, domain.ErrDiscountNotFound):
		writeError(w, http.StatusNotFound, codeDiscountNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, codeInvalidAmount, err.Error())
	case errors.Is(err, domain.ErrInvalidRefundAmount):
		writeError(w, http.StatusUnprocessableEntity, codeInvalidRefund, err.Error())
	case errors.Is(err, domain.ErrRefundReasonRequired):
		writeError(w, http.StatusUnprocessableEntity, codeRefundReasonMissing, err.Error())
	case errors.Is(err, domain.ErrBookingCancelled):
		writeError(w, http.StatusConflict, codeBookingCancelled, err.Error())
	case errors.Is(err, domain.ErrNotChargeable):
		writeError(w, http.StatusConflict, codeNotChargeable, err.Error())
	case errors.Is(err, domain.ErrHoldRequired):
		writeError(w, http.StatusUnprocessableEntity, codeHoldRequired, err.Error())
	case errors.Is(err, domain.ErrLedgerConsistency):
		writeError(w, http.StatusConflict, codeLedgerConsistency, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
