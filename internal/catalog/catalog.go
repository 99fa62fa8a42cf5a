package catalog

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/checkout-engine/domain"
)

var ErrProductNotFound = errors.New("product not found")

// PriceLookup answers get_price(product_id) for the checkout engine.
type PriceLookup interface {
	GetPrice(ctx context.Context, productID string) (*domain.PriceQuote, error)
}
