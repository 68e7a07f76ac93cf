package domain

import "errors"

var (
	ErrNotChargeable        = errors.New("payment is not in a chargeable state")
	ErrInvalidRefundAmount  = errors.New("invalid refund amount")
	ErrLedgerConsistency    = errors.New("gateway granted more than remaining refundable")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrDiscountNotFound     = errors.New("discount code not found")
	ErrBookingCancelled     = errors.New("booking already cancelled")
	ErrRefundReasonRequired = errors.New("refund reason required")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidID            = errors.New("invalid id")
	ErrHoldRequired         = errors.New("scheduling hold id required")
)
