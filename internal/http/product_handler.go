package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/checkout-engine/domain"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

type ProductSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]*domain.Product, error)
}

type ProductHandler struct {
	products ProductSearcher
	timeout  time.Duration
}

func NewProductHandler(products ProductSearcher, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		products: products,
		timeout:  timeout,
	}
}

// GET /api/v1/products?q=&limit=
func (h *ProductHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}

	products, err := h.products.Search(ctx, r.URL.Query().Get("q"), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	out := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		out = append(out, convertProduct(p))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"products": out,
		"count":    len(out),
	})
}
