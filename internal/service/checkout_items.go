package service

import (
	"context"
	"slices"

	"github.com/fjod/go_cart/checkout-engine/domain"
)

// AddItem creates the checkout on first use. Adding a product that is already
// in the checkout adds to its quantity.
func (s *CheckoutService) AddItem(ctx context.Context, checkoutID, productID string, quantity int, sessionID string) (*domain.Checkout, error) {
	if quantity <= 0 {
		s.recorder.ObserveCheckout("add_item", domain.ErrInvalidQuantity)
		return nil, domain.ErrInvalidQuantity
	}
	return s.mutate(ctx, "add_item", checkoutID, sessionID, true, func(c *domain.Checkout) error {
		if i := c.FindItem(productID); i >= 0 {
			c.LineItems[i].Quantity += quantity
		} else {
			c.LineItems = append(c.LineItems, domain.LineItem{ProductID: productID, Quantity: quantity})
		}
		return s.reprice(ctx, c)
	})
}

// RemoveItem is a no-op for a product that is not in the checkout.
func (s *CheckoutService) RemoveItem(ctx context.Context, checkoutID, productID string) (*domain.Checkout, error) {
	return s.mutate(ctx, "remove_item", checkoutID, "", false, func(c *domain.Checkout) error {
		return s.removeLocked(ctx, c, productID)
	})
}

// UpdateItem replaces the quantity. Zero removes the line item.
func (s *CheckoutService) UpdateItem(ctx context.Context, checkoutID, productID string, quantity int) (*domain.Checkout, error) {
	if quantity < 0 {
		s.recorder.ObserveCheckout("update_item", domain.ErrInvalidQuantity)
		return nil, domain.ErrInvalidQuantity
	}
	return s.mutate(ctx, "update_item", checkoutID, "", false, func(c *domain.Checkout) error {
		i := c.FindItem(productID)
		if i < 0 {
			return domain.ErrProductNotInCheckout
		}
		if quantity == 0 {
			return s.removeLocked(ctx, c, productID)
		}
		c.LineItems[i].Quantity = quantity
		return s.reprice(ctx, c)
	})
}

// removeLocked keeps a checkout that is ready for payment from becoming empty.
func (s *CheckoutService) removeLocked(ctx context.Context, c *domain.Checkout, productID string) error {
	items := slices.DeleteFunc(slices.Clone(c.LineItems), func(it domain.LineItem) bool {
		return it.ProductID == productID
	})
	if len(items) == 0 && c.Status == domain.CheckoutStatusReadyForPayment {
		return domain.ErrEmptyCheckout
	}
	c.LineItems = items
	return s.reprice(ctx, c)
}
