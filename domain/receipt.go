package domain

import "time"

type ReceiptKind string

const (
	ReceiptKindSuccess ReceiptKind = "success"
	ReceiptKindFailure ReceiptKind = "failure"
	ReceiptKindError   ReceiptKind = "error"
)

// ReceiptStatus is the closed set of settlement outcomes. Only the three types
// in this package implement it.
type ReceiptStatus interface {
	Kind() ReceiptKind
	isReceiptStatus()
}

// ReceiptSuccess means funds moved.
type ReceiptSuccess struct {
	MerchantConfirmationID string `json:"merchant_confirmation_id"`
	PSPConfirmationID      string `json:"psp_confirmation_id"`
	NetworkConfirmationID  string `json:"network_confirmation_id"`
}

// ReceiptFailure means settlement was attempted and declined. The payer has to
// present a new mandate.
type ReceiptFailure struct {
	Reason string `json:"failure_message"`
}

// ReceiptError means the engine refused to attempt settlement.
type ReceiptError struct {
	Reason string `json:"error_message"`
}

func (ReceiptSuccess) Kind() ReceiptKind { return ReceiptKindSuccess }
func (ReceiptFailure) Kind() ReceiptKind { return ReceiptKindFailure }
func (ReceiptError) Kind() ReceiptKind   { return ReceiptKindError }

func (ReceiptSuccess) isReceiptStatus() {}
func (ReceiptFailure) isReceiptStatus() {}
func (ReceiptError) isReceiptStatus()   {}

type PaymentMethodDetails struct {
	Method     string `json:"method"`
	PayerEmail string `json:"payer_email"`
}

type PaymentReceipt struct {
	PaymentMandateID     string                `json:"payment_mandate_id"`
	PaymentID            string                `json:"payment_id"`
	Timestamp            time.Time             `json:"timestamp"`
	Amount               CurrencyAmount        `json:"amount"`
	Status               ReceiptStatus         `json:"payment_status"`
	PaymentMethodDetails *PaymentMethodDetails `json:"payment_method_details,omitempty"`
}

func (r *PaymentReceipt) IsSuccess() bool {
	_, ok := r.Status.(ReceiptSuccess)
	return ok
}

// Err maps the receipt onto the error taxonomy: nil for success,
// ErrSettlementDeclined for a failure and ErrInvalidMandateSignature for an error.
func (r *PaymentReceipt) Err() error {
	switch r.Status.(type) {
	case ReceiptSuccess:
		return nil
	case ReceiptFailure:
		return ErrSettlementDeclined
	case ReceiptError:
		return ErrInvalidMandateSignature
	default:
		panic("domain: receipt without status")
	}
}
