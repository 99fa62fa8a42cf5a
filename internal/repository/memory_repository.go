package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/fjod/go_cart/checkout-engine/domain"
)

type MemoryRepository struct {
	mu         sync.RWMutex
	orders     map[string]*domain.Order
	byCheckout map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:     make(map[string]*domain.Order),
		byCheckout: make(map[string]string),
	}
}

func (r *MemoryRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byCheckout[order.CheckoutID]; ok {
		return ErrDuplicateCheckout
	}
	if _, ok := r.orders[order.ID]; ok {
		return ErrDuplicateCheckout
	}
	r.orders[order.ID] = cloneOrder(order)
	r.byCheckout[order.CheckoutID] = order.ID
	return nil
}

func (r *MemoryRepository) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *MemoryRepository) GetOrderByCheckoutID(ctx context.Context, checkoutID string) (*domain.Order, error) {
	r.mu.RLock()
	id, ok := r.byCheckout[checkoutID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrOrderNotFound
	}
	return r.GetOrderByID(ctx, id)
}

// ListOrdersBySession returns newest first.
func (r *MemoryRepository) ListOrdersBySession(_ context.Context, sessionID string) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var orders []*domain.Order
	for _, o := range r.orders {
		if o.SessionID == sessionID {
			orders = append(orders, cloneOrder(o))
		}
	}
	slices.SortFunc(orders, func(a, b *domain.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return orders, nil
}

func (r *MemoryRepository) Close() error {
	return nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	if o.Customer.ShippingAddress != nil {
		addr := *o.Customer.ShippingAddress
		c.Customer.ShippingAddress = &addr
	}
	return &c
}
