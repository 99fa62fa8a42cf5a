package service

import (
	"context"

	"github.com/fjod/go_cart/checkout-engine/domain"
)

// SetCustomer merges the given details into the checkout. Empty values leave
// the stored ones untouched. Email format is not checked here.
func (s *CheckoutService) SetCustomer(ctx context.Context, checkoutID, email string, address *domain.Address) (*domain.Checkout, error) {
	return s.mutate(ctx, "set_customer", checkoutID, "", false, func(c *domain.Checkout) error {
		if email != "" {
			c.Customer.Email = email
		}
		if address != nil {
			addr := *address
			c.Customer.ShippingAddress = &addr
		}
		return nil
	})
}

// BeginPayment moves the checkout to ready_for_payment. Calling it again while
// already ready is a no-op.
func (s *CheckoutService) BeginPayment(ctx context.Context, checkoutID string) (*domain.Checkout, error) {
	return s.mutate(ctx, "begin_payment", checkoutID, "", false, func(c *domain.Checkout) error {
		if len(c.LineItems) == 0 {
			return domain.ErrEmptyCheckout
		}
		if c.Customer.Email == "" {
			return domain.ErrMissingCustomerEmail
		}
		if c.Status == domain.CheckoutStatusReadyForPayment {
			return nil
		}
		if !domain.CanTransitionTo(c.Status, domain.CheckoutStatusReadyForPayment) {
			return domain.ErrIllegalTransition
		}
		c.Status = domain.CheckoutStatusReadyForPayment
		return nil
	})
}
