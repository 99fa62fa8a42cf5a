package http

import (
	"fmt"
	"time"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/shopspring/decimal"
)

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type SetCustomerRequestDTO struct {
	Email           string          `json:"email"`
	ShippingAddress *domain.Address `json:"shipping_address,omitempty"`
}

type BuildMandateRequestDTO struct {
	MethodName string `json:"method_name"`
}

type ConfirmOTPRequestDTO struct {
	Code string `json:"code"`
}

type LineItemDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type TotalsDTO struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Shipping string `json:"shipping"`
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type CheckoutDTO struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	Status      string          `json:"status"`
	Currency    string          `json:"currency"`
	LineItems   []LineItemDTO   `json:"line_items"`
	Customer    domain.Customer `json:"customer"`
	Totals      TotalsDTO       `json:"totals"`
	PaymentID   string          `json:"payment_id,omitempty"`
	OrderID     string          `json:"order_id,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type AmountDTO struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type ReceiptDTO struct {
	PaymentMandateID       string    `json:"payment_mandate_id"`
	PaymentID              string    `json:"payment_id"`
	Timestamp              time.Time `json:"timestamp"`
	Amount                 AmountDTO `json:"amount"`
	Status                 string    `json:"status"`
	MerchantConfirmationID string    `json:"merchant_confirmation_id,omitempty"`
	PSPConfirmationID      string    `json:"psp_confirmation_id,omitempty"`
	NetworkConfirmationID  string    `json:"network_confirmation_id,omitempty"`
	FailureMessage         string    `json:"failure_message,omitempty"`
	ErrorMessage           string    `json:"error_message,omitempty"`
	PaymentMethod          string    `json:"payment_method,omitempty"`
}

type ChallengeDTO struct {
	PaymentMandateID string     `json:"payment_mandate_id"`
	Message          string     `json:"message"`
	OTPSentTo        string     `json:"otp_sent_to"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	DeliveryWarning  string     `json:"delivery_warning,omitempty"`
}

type OrderDTO struct {
	ID         string        `json:"id"`
	CheckoutID string        `json:"checkout_id"`
	SessionID  string        `json:"session_id"`
	PaymentID  string        `json:"payment_id"`
	Status     string        `json:"status"`
	Items      []LineItemDTO `json:"items"`
	Totals     TotalsDTO     `json:"totals"`
	CreatedAt  time.Time     `json:"created_at"`
}

// PaymentResponseDTO carries Error only when money moved but the checkout
// could not be completed.
type PaymentResponseDTO struct {
	State     string         `json:"state"`
	Receipt   *ReceiptDTO    `json:"receipt,omitempty"`
	Challenge *ChallengeDTO  `json:"challenge,omitempty"`
	Order     *OrderDTO      `json:"order,omitempty"`
	Error     *ErrorResponse `json:"error,omitempty"`
}

type ProductDTO struct {
	ID           string `json:"id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Price        string `json:"price"`
	Currency     string `json:"currency"`
	Category     string `json:"category,omitempty"`
	Brand        string `json:"brand,omitempty"`
	Availability string `json:"availability"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func convertLineItems(items []domain.LineItem) []LineItemDTO {
	out := make([]LineItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, LineItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: money(item.UnitPrice),
			LineTotal: money(item.LineTotal),
		})
	}
	return out
}

func convertTotals(t domain.Totals) TotalsDTO {
	return TotalsDTO{
		Subtotal: money(t.Subtotal),
		Tax:      money(t.Tax),
		Shipping: money(t.Shipping),
		Total:    money(t.Total),
		Currency: t.Currency,
	}
}

func convertCheckout(c *domain.Checkout) CheckoutDTO {
	return CheckoutDTO{
		ID:          c.ID,
		SessionID:   c.SessionID,
		Status:      c.Status.String(),
		Currency:    c.Currency,
		LineItems:   convertLineItems(c.LineItems),
		Customer:    c.Customer,
		Totals:      convertTotals(c.Totals),
		PaymentID:   c.PaymentID,
		OrderID:     c.OrderID,
		CompletedAt: c.CompletedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func convertAmount(a domain.CurrencyAmount) AmountDTO {
	return AmountDTO{Currency: a.Currency, Value: money(a.Value)}
}

func convertReceipt(r *domain.PaymentReceipt) *ReceiptDTO {
	if r == nil {
		return nil
	}
	dto := &ReceiptDTO{
		PaymentMandateID: r.PaymentMandateID,
		PaymentID:        r.PaymentID,
		Timestamp:        r.Timestamp,
		Amount:           convertAmount(r.Amount),
	}
	switch s := r.Status.(type) {
	case domain.ReceiptSuccess:
		dto.MerchantConfirmationID = s.MerchantConfirmationID
		dto.PSPConfirmationID = s.PSPConfirmationID
		dto.NetworkConfirmationID = s.NetworkConfirmationID
	case domain.ReceiptFailure:
		dto.FailureMessage = s.Reason
	case domain.ReceiptError:
		dto.ErrorMessage = s.Reason
	default:
		panic(fmt.Sprintf("http: unknown receipt status %T", s))
	}
	dto.Status = string(r.Status.Kind())
	if r.PaymentMethodDetails != nil {
		dto.PaymentMethod = r.PaymentMethodDetails.Method
	}
	return dto
}

func convertChallenge(c *domain.OTPChallenge) *ChallengeDTO {
	if c == nil {
		return nil
	}
	return &ChallengeDTO{
		PaymentMandateID: c.PaymentMandateID,
		Message:          c.Message,
		OTPSentTo:        c.Destination,
		ExpiresAt:        c.ExpiresAt,
		DeliveryWarning:  c.DeliveryWarning,
	}
}

func convertOrder(o *domain.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	return &OrderDTO{
		ID:         o.ID,
		CheckoutID: o.CheckoutID,
		SessionID:  o.SessionID,
		PaymentID:  o.PaymentID,
		Status:     string(o.Status),
		Items:      convertLineItems(o.Items),
		Totals:     convertTotals(o.Totals),
		CreatedAt:  o.CreatedAt,
	}
}

func convertProduct(p *domain.Product) ProductDTO {
	return ProductDTO{
		ID:           p.ID,
		SKU:          p.SKU,
		Name:         p.Name,
		Description:  p.Description,
		Price:        money(p.Price),
		Currency:     p.Currency,
		Category:     p.Category,
		Brand:        p.Brand,
		Availability: p.Availability,
	}
}
