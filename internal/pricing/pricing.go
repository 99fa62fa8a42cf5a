// Package pricing computes checkout totals from line items and authoritative
// unit prices. It performs no I/O.
package pricing

import (
	"errors"
	"fmt"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/shopspring/decimal"
)

var ErrPriceMissing = errors.New("pricing: no price for product")

var (
	DefaultTaxRate     = decimal.RequireFromString("0.10")
	DefaultShippingFee = decimal.RequireFromString("5.00")
)

// PriceFunc returns the current unit price for a product.
type PriceFunc func(productID string) (decimal.Decimal, bool)

type Engine struct {
	taxRate     decimal.Decimal
	shippingFee decimal.Decimal
	currency    string
}

func New(taxRate, shippingFee decimal.Decimal, currency string) *Engine {
	return &Engine{
		taxRate:     taxRate,
		shippingFee: shippingFee,
		currency:    currency,
	}
}

func NewDefault() *Engine {
	return New(DefaultTaxRate, DefaultShippingFee, "USD")
}

func (e *Engine) Currency() string {
	return e.currency
}

// Recalculate reprices every line item from lookup and returns the repriced
// items together with the totals. The input slice is left untouched.
func (e *Engine) Recalculate(items []domain.LineItem, lookup PriceFunc) ([]domain.LineItem, domain.Totals, error) {
	priced := make([]domain.LineItem, len(items))
	subtotal := decimal.Zero

	for i, item := range items {
		price, ok := lookup(item.ProductID)
		if !ok {
			return nil, domain.Totals{}, fmt.Errorf("%w %s", ErrPriceMissing, item.ProductID)
		}
		lineTotal := price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		priced[i] = domain.LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: price,
			LineTotal: lineTotal,
		}
		subtotal = subtotal.Add(lineTotal)
	}

	return priced, e.totals(subtotal), nil
}

func (e *Engine) totals(subtotal decimal.Decimal) domain.Totals {
	tax := subtotal.Mul(e.taxRate)
	shipping := decimal.Zero
	if subtotal.IsPositive() {
		shipping = e.shippingFee
	}
	return domain.Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
		Currency: e.currency,
	}
}

// StoredPrices prices items with the unit prices already recorded on them.
func StoredPrices(items []domain.LineItem) PriceFunc {
	prices := make(map[string]decimal.Decimal, len(items))
	for _, item := range items {
		prices[item.ProductID] = item.UnitPrice
	}
	return MapPrices(prices)
}

func MapPrices(prices map[string]decimal.Decimal) PriceFunc {
	return func(productID string) (decimal.Decimal, bool) {
		p, ok := prices[productID]
		return p, ok
	}
}
