package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/challenge"
	"github.com/fjod/go_cart/checkout-engine/internal/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	ts := setupServer(t, challenge.Never, settlement.AlwaysApprove)

	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestID_IsEchoed(t *testing.T) {
	ts := setupServer(t, challenge.Never, settlement.AlwaysApprove)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-abc", rec.Header().Get("X-Request-ID"))
}

func TestAddItem_RendersTotals(t *testing.T) {
	ts := setupServer(t, challenge.Never, settlement.AlwaysApprove)

	rec := ts.do(t, http.MethodPost, "/api/v1/checkouts/C1/items", AddItemRequestDTO{ProductID: "P1", Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	c := decode[CheckoutDTO](t, rec)
	assert.Equal(t, "C1", c.ID)
	assert.Equal(t, "s1", c.SessionID)
	assert.Equal(t, "incomplete", c.Status)
	require.Len(t, c.LineItems, 1)
	assert.Equal(t, "5.00", c.LineItems[0].UnitPrice)
	assert.Equal(t, "10.00", c.LineItems[0].LineTotal)
	assert.Equal(t, TotalsDTO{Subtotal: "10.00", Tax: "1.00", Shipping: "5.00", Total: "16.00", Currency: "USD"}, c.Totals)

	rec = ts.do(t, http.MethodGet, "/api/v1/checkouts/C1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "16.00", decode[CheckoutDTO](t, rec).Totals.Total)
}

func TestAddItem_Validation(t *testing.T) {
	ts := setupServer(t, challenge.Never, settlement.AlwaysApprove)

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{"zero quantity", AddItemRequestDTO{ProductID: "P1", Quantity: 0}, http.StatusBadRequest, "invalid_quantity"},
		{"missing product", AddItemRequestDTO{Quantity: 1}, http.StatusBadRequest, "invalid_product_id"},
		{"unknown product", AddItemRequestDTO{ProductID: "nope", Quantity: 1}, http.StatusNotFound, "product_not_found"},
		{"out of stock", AddItemRequestDTO{ProductID: "OOS", Quantity: 1}, http.StatusUnprocessableEntity, "product_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/checkouts/C1/items", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, rec).Code)
		})
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/checkouts/C1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "rejected adds must not create the checkout")
}

func TestAddItem_InvalidJSON(t *testing.T) {
	ts := setupServer(t, challenge.Never, settlement.AlwaysApprove)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkouts/C1/items", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decode[ErrorResponse](t, rec).Code)
}

func TestUpdateAndRemoveItem(t *testing.T) {
	ts := setupServer(t, challenge.Never, settlement.AlwaysApprove)
	ts.do(t, http.MethodPost, "/api/v1/checkouts/C1/items", AddItemRequestDTO{ProductID: "P1", Quantity: 2})

	rec := ts.do(t, http.MethodPut, "/api/v1/checkouts/C1/items/P1", UpdateQuantityRequestDTO{Quantity: 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "25.00", decode[CheckoutDTO](t, rec).Totals.Subtotal)

	rec = ts.do(t, http.MethodPut, "/api/v1/checkouts/C1/items/P2", UpdateQuantityRequestDTO{Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "product_not_in_checkout", decode[ErrorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodPut, "/api/v1/checkouts/C1/items/P1", UpdateQuantityRequestDTO{Quantity: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/checkouts/C1/items/P1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[CheckoutDTO](t, rec)
	assert.Empty(t, c.LineItems)
	assert.Equal(t, TotalsDTO{Subtotal: "0.00", Tax: "0.00", Shipping: "0.00", Total: "0.00", Currency: "USD"}, c.Totals)
}

func TestSetCustomer_RejectsMalformedEmail(t *testing.T) {
	ts := setupServer(t, challenge.Never, settlement.AlwaysApprove)
	ts.do(t, http.MethodPost, "/api/v1/checkouts/C1/items", AddItemRequestDTO{ProductID: "P1", Quantity: 1})

	rec := ts.do(t, http.MethodPut, "/api/v1/checkouts/C1/customer", SetCustomerRequestDTO{Email: "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/v1/checkouts/C1/customer", SetCustomerRequestDTO{
		Email:           "ann@example.com",
		ShippingAddress: &domain.Address{City: "Berlin", Country: "DE"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[CheckoutDTO](t, rec)
	assert.Equal(t, "ann@example.com", c.Customer.Email)
	require.NotNil(t, c.Customer.ShippingAddress)
	assert.Equal(t, "Berlin", c.Customer.ShippingAddress.City)
}

func TestBeginPayment_Preconditions(t *testing.T) {
	ts := setupServer(t, challenge.Never, settlement.AlwaysApprove)

	rec := ts.do(t, http.MethodPost, "/api/v1/checkouts/C1/payment", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.do(t, http.MethodPost, "/api/v1/checkouts/C1/items", AddItemRequestDTO{ProductID: "P1", Quantity: 1})
	rec = ts.do(t, http.MethodPost, "/api/v1/checkouts/C1/payment", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "missing_customer_email", decode[ErrorResponse](t, rec).Code)

	ts.do(t, http.MethodPut, "/api/v1/checkouts/C1/customer", SetCustomerRequestDTO{Email: "ann@example.com"})
	rec = ts.do(t, http.MethodPost, "/api/v1/checkouts/C1/payment", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready_for_payment", decode[CheckoutDTO](t, rec).Status)
}

func TestGetCheckout_DirectHandler(t *testing.T) {
	ts := setupServer(t, challenge.Never, settlement.AlwaysApprove)
	ts.do(t, http.MethodPost, "/api/v1/checkouts/C9/items", AddItemRequestDTO{ProductID: "P2", Quantity: 1})

	rec := httptest.NewRecorder()
	req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/v1/checkouts/C9", nil), "checkout_id", "C9")
	ts.handlers.Checkouts.GetCheckout(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "19.99", decode[CheckoutDTO](t, rec).Totals.Subtotal)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantErr  string
	}{
		{domain.ErrCheckoutNotFound, http.StatusNotFound, "checkout_not_found"},
		{domain.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
		{domain.ErrEmptyCheckout, http.StatusConflict, "empty_checkout"},
		{domain.ErrCheckoutCompleted, http.StatusConflict, "checkout_completed"},
		{domain.ErrPricingUnavailable, http.StatusServiceUnavailable, "pricing_unavailable"},
		{domain.ErrMandateMismatch, http.StatusUnprocessableEntity, "mandate_mismatch"},
		{errors.Join(domain.ErrChallengeRejected, domain.ErrOTPMismatch), http.StatusUnprocessableEntity, "otp_mismatch"},
		{errors.Join(domain.ErrChallengeRejected, domain.ErrOTPNotFound), http.StatusUnprocessableEntity, "otp_not_found"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.wantErr, func(t *testing.T) {
			code, name := errorStatus(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantErr, name)
		})
	}
}

func TestPricingOutage_Returns503(t *testing.T) {
	ts := setupServer(t, challenge.Never, settlement.AlwaysApprove)
	ts.catalog.err = domain.ErrPricingUnavailable

	rec := ts.do(t, http.MethodPost, "/api/v1/checkouts/C1/items", AddItemRequestDTO{ProductID: "P1", Quantity: 1})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	handleServiceError(rec, req, errors.New("dial tcp 10.0.0.1:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")
}
