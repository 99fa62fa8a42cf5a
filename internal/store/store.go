package store

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/checkout-engine/domain"
)

// Common errors returned by the store
var (
	ErrVersionConflict = errors.New("checkout was modified concurrently")
	ErrStatusConflict  = errors.New("checkout status changed concurrently")
)

// CheckoutRepository defines the interface for checkout storage operations.
// Implementations hand out copies: mutating a returned checkout never changes
// stored state until it is written back.
type CheckoutRepository interface {
	// Get returns the checkout or domain.ErrCheckoutNotFound
	Get(ctx context.Context, id string) (*domain.Checkout, error)

	// Put creates (Version == 0) or replaces the checkout. The stored version must
	// equal checkout.Version, otherwise ErrVersionConflict. A status regression is
	// rejected with domain.ErrIllegalTransition. On success checkout.Version is bumped.
	Put(ctx context.Context, checkout *domain.Checkout) error

	// CompareAndSwapStatus writes the checkout only if the stored status equals
	// expected and expected -> checkout.Status is a legal transition.
	// Returns ErrStatusConflict when the stored status differs.
	CompareAndSwapStatus(ctx context.Context, checkout *domain.Checkout, expected domain.CheckoutStatus) error

	// Close shuts down the store and any background processes
	Close() error
}
