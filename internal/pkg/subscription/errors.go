package subscription

import "errors"

// Closed error set for the subscription engine. Controllers map these onto
// HTTP statuses; everything else is treated as an internal failure.
var (
	ErrStudentNotFound          = errors.New("student not found")
	ErrPlanNotFound             = errors.New("plan not found or inactive")
	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrPaymentNotFound          = errors.New("payment not found")
	ErrActiveSubscriptionExists = errors.New("student already has an open subscription")
	ErrInvalidStateTransition   = errors.New("invalid subscription state transition")
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
	ErrInvalidStatusFilter      = errors.New("unknown subscription status filter")
)
