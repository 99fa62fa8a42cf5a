package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CurrencyAmount struct {
	Currency string          `json:"currency"`
	Value    decimal.Decimal `json:"value"`
}

type PaymentDetailsTotal struct {
	Label  string         `json:"label"`
	Amount CurrencyAmount `json:"amount"`
}

type PaymentResponse struct {
	MethodName string `json:"method_name"`
	PayerEmail string `json:"payer_email"`
}

type PaymentMandateContents struct {
	PaymentMandateID    string              `json:"payment_mandate_id"`
	PaymentDetailsID    string              `json:"payment_details_id"`
	PaymentDetailsTotal PaymentDetailsTotal `json:"payment_details_total"`
	PaymentResponse     PaymentResponse     `json:"payment_response"`
	MerchantAgent       string              `json:"merchant_agent"`
	Timestamp           time.Time           `json:"timestamp"`
}

// PaymentMandate is a signed instruction to pay. UserAuthorization is an opaque
// signature blob over the contents.
type PaymentMandate struct {
	Contents          PaymentMandateContents `json:"payment_mandate_contents"`
	UserAuthorization string                 `json:"user_authorization,omitempty"`
}

func (m PaymentMandate) ID() string {
	return m.Contents.PaymentMandateID
}

func (m PaymentMandate) Amount() CurrencyAmount {
	return m.Contents.PaymentDetailsTotal.Amount
}

// CheckoutID is the checkout the mandate pays for.
func (m PaymentMandate) CheckoutID() string {
	return m.Contents.PaymentDetailsID
}

func (m PaymentMandate) PayerEmail() string {
	return m.Contents.PaymentResponse.PayerEmail
}

// OTPChallenge is what the payer sees when step-up authentication is required.
// The code itself is delivered out of band and is never part of this value.
type OTPChallenge struct {
	PaymentMandateID string     `json:"payment_mandate_id"`
	Message          string     `json:"message"`
	Destination      string     `json:"otp_sent_to"`
	IssuedAt         time.Time  `json:"issued_at"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	DeliveryWarning  string     `json:"delivery_warning,omitempty"`
}
