package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultSessionID = "default"

type LineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

type Customer struct {
	Email           string   `json:"email,omitempty"`
	ShippingAddress *Address `json:"shipping_address,omitempty"`
}

// Totals is always derived from the line items. Values keep full precision;
// use Rounded for presentation.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// Rounded returns the totals rounded to two decimal places.
func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal: t.Subtotal.Round(2),
		Tax:      t.Tax.Round(2),
		Shipping: t.Shipping.Round(2),
		Total:    t.Total.Round(2),
		Currency: t.Currency,
	}
}

// Checkout is the cart aggregate. Version is bumped by the store on every write.
type Checkout struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	LineItems []LineItem     `json:"line_items"`
	Currency  string         `json:"currency"`
	Status    CheckoutStatus `json:"status"`
	Customer  Customer       `json:"customer"`
	Totals    Totals         `json:"totals"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	// Audit fields, written once on completion.
	PaymentID   string     `json:"payment_id,omitempty"`
	OrderID     string     `json:"order_id,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func NewCheckout(id, sessionID, currency string, now time.Time) *Checkout {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	return &Checkout{
		ID:        id,
		SessionID: sessionID,
		LineItems: []LineItem{},
		Currency:  currency,
		Status:    CheckoutStatusIncomplete,
		Totals: Totals{
			Subtotal: decimal.Zero,
			Tax:      decimal.Zero,
			Shipping: decimal.Zero,
			Total:    decimal.Zero,
			Currency: currency,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FindItem returns the index of the line item for productID, or -1.
func (c *Checkout) FindItem(productID string) int {
	for i, item := range c.LineItems {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// ProductIDs returns the product ids in line item order.
func (c *Checkout) ProductIDs() []string {
	ids := make([]string, 0, len(c.LineItems))
	for _, item := range c.LineItems {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (c *Checkout) Clone() *Checkout {
	if c == nil {
		return nil
	}
	cp := *c
	cp.LineItems = make([]LineItem, len(c.LineItems))
	copy(cp.LineItems, c.LineItems)
	if c.Customer.ShippingAddress != nil {
		addr := *c.Customer.ShippingAddress
		cp.Customer.ShippingAddress = &addr
	}
	if c.CompletedAt != nil {
		at := *c.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}
