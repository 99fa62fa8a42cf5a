package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/go-chi/chi/v5"
)

type OrderReader interface {
	Order(ctx context.Context, orderID string) (*domain.Order, error)
	Orders(ctx context.Context, sessionID string) ([]*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderReader
	timeout time.Duration
}

func NewOrdersHandler(orders OrderReader, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id is required")
		return
	}

	order, err := h.orders.Order(ctx, orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrder(order))
}

// GET /api/v1/orders?session_id=
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = getSessionID(r.Context())
	}

	orders, err := h.orders.Orders(ctx, sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	out := make([]*OrderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, convertOrder(o))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"orders": out,
		"count":  len(out),
	})
}
