package domain

import "errors"

var (
	ErrCheckoutNotFound        = errors.New("checkout not found")
	ErrProductNotInCheckout    = errors.New("product not in checkout")
	ErrInvalidQuantity         = errors.New("quantity must be greater than zero")
	ErrEmptyCheckout           = errors.New("checkout is empty")
	ErrMissingCustomerEmail    = errors.New("customer email required")
	ErrCheckoutNotReady        = errors.New("checkout not ready for completion")
	ErrCheckoutCompleted       = errors.New("checkout is completed and can no longer be modified")
	ErrIllegalTransition       = errors.New("illegal transition of checkout status")
	ErrProductUnavailable      = errors.New("product unavailable")
	ErrPricingUnavailable      = errors.New("pricing temporarily unavailable")
	ErrInvalidMandateSignature = errors.New("invalid mandate signature")
	ErrSettlementDeclined      = errors.New("payment declined by issuing bank")
	ErrOTPMismatch             = errors.New("otp code does not match")
	ErrOTPNotFound             = errors.New("no outstanding otp for mandate")
	ErrChallengeRejected       = errors.New("challenge rejected")
	ErrMandateMismatch         = errors.New("mandate does not match checkout")
)
