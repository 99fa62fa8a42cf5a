package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/go-chi/chi/v5"
)

// CheckoutAPI is the part of the checkout service the HTTP layer drives.
type CheckoutAPI interface {
	Get(ctx context.Context, checkoutID string) (*domain.Checkout, error)
	AddItem(ctx context.Context, checkoutID, productID string, quantity int, sessionID string) (*domain.Checkout, error)
	RemoveItem(ctx context.Context, checkoutID, productID string) (*domain.Checkout, error)
	UpdateItem(ctx context.Context, checkoutID, productID string, quantity int) (*domain.Checkout, error)
	SetCustomer(ctx context.Context, checkoutID, email string, address *domain.Address) (*domain.Checkout, error)
	BeginPayment(ctx context.Context, checkoutID string) (*domain.Checkout, error)
}

type CheckoutHandler struct {
	checkouts CheckoutAPI
	timeout   time.Duration
}

func NewCheckoutHandler(checkouts CheckoutAPI, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkouts: checkouts,
		timeout:   timeout,
	}
}

// GET /api/v1/checkouts/{checkout_id}
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.checkouts.Get(ctx, chi.URLParam(r, "checkout_id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCheckout(c))
}

// POST /api/v1/checkouts/{checkout_id}/items
func (h *CheckoutHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be greater than 0")
		return
	}

	c, err := h.checkouts.AddItem(ctx, chi.URLParam(r, "checkout_id"), req.ProductID, req.Quantity, getSessionID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCheckout(c))
}

// PUT /api/v1/checkouts/{checkout_id}/items/{product_id}
func (h *CheckoutHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must not be negative")
		return
	}

	c, err := h.checkouts.UpdateItem(ctx, chi.URLParam(r, "checkout_id"), chi.URLParam(r, "product_id"), req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCheckout(c))
}

// DELETE /api/v1/checkouts/{checkout_id}/items/{product_id}
func (h *CheckoutHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.checkouts.RemoveItem(ctx, chi.URLParam(r, "checkout_id"), chi.URLParam(r, "product_id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCheckout(c))
}

// PUT /api/v1/checkouts/{checkout_id}/customer
func (h *CheckoutHandler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetCustomerRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		respondError(w, http.StatusBadRequest, "invalid_email", "email address is malformed")
		return
	}

	c, err := h.checkouts.SetCustomer(ctx, chi.URLParam(r, "checkout_id"), email, req.ShippingAddress)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCheckout(c))
}

// POST /api/v1/checkouts/{checkout_id}/payment
func (h *CheckoutHandler) BeginPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.checkouts.BeginPayment(ctx, chi.URLParam(r, "checkout_id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCheckout(c))
}
