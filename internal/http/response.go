package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/catalog"
	"github.com/fjod/go_cart/checkout-engine/internal/repository"
	"github.com/fjod/go_cart/checkout-engine/internal/service"
	"github.com/fjod/go_cart/checkout-engine/internal/store"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// errorStatus maps the engine's error taxonomy onto HTTP. Order matters where
// one error wraps another.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found"
	case errors.Is(err, domain.ErrCheckoutNotFound):
		return http.StatusNotFound, "checkout_not_found"
	case errors.Is(err, domain.ErrProductNotInCheckout):
		return http.StatusNotFound, "product_not_in_checkout"
	case errors.Is(err, repository.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, domain.ErrEmptyCheckout):
		return http.StatusConflict, "empty_checkout"
	case errors.Is(err, domain.ErrMissingCustomerEmail):
		return http.StatusConflict, "missing_customer_email"
	case errors.Is(err, domain.ErrCheckoutNotReady):
		return http.StatusConflict, "checkout_not_ready"
	case errors.Is(err, domain.ErrCheckoutCompleted):
		return http.StatusConflict, "checkout_completed"
	case errors.Is(err, domain.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, store.ErrVersionConflict), errors.Is(err, store.ErrStatusConflict):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, service.ErrPaymentNotSettled):
		return http.StatusConflict, "payment_not_settled"
	case errors.Is(err, domain.ErrProductUnavailable):
		return http.StatusUnprocessableEntity, "product_unavailable"
	case errors.Is(err, domain.ErrMandateMismatch):
		return http.StatusUnprocessableEntity, "mandate_mismatch"
	case errors.Is(err, domain.ErrOTPMismatch):
		return http.StatusUnprocessableEntity, "otp_mismatch"
	case errors.Is(err, domain.ErrOTPNotFound):
		return http.StatusUnprocessableEntity, "otp_not_found"
	case errors.Is(err, domain.ErrPricingUnavailable):
		return http.StatusServiceUnavailable, "pricing_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorBody(r, err)
	respondJSON(w, status, body)
}

// errorBody logs server side failures and keeps their details out of the body.
func errorBody(r *http.Request, err error) (int, ErrorResponse) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "request_id", getRequestID(r.Context()), "error", err)
		return status, ErrorResponse{Error: "internal server error", Code: code}
	}
	return status, ErrorResponse{Error: err.Error(), Code: code}
}
