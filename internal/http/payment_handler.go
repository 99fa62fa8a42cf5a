package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/service"
	"github.com/fjod/go_cart/checkout-engine/internal/settlement"
	"github.com/go-chi/chi/v5"
)

type PaymentAPI interface {
	BuildMandate(ctx context.Context, checkoutID, methodName string) (*domain.PaymentMandateContents, error)
	Pay(ctx context.Context, mandate domain.PaymentMandate) (*service.PaymentOutcome, error)
	ConfirmChallenge(ctx context.Context, mandateID, code string) (*service.PaymentOutcome, error)
}

type PaymentHandler struct {
	payments PaymentAPI
	timeout  time.Duration
}

func NewPaymentHandler(payments PaymentAPI, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		timeout:  timeout,
	}
}

// POST /api/v1/checkouts/{checkout_id}/mandate
func (h *PaymentHandler) BuildMandate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req BuildMandateRequestDTO
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	contents, err := h.payments.BuildMandate(ctx, chi.URLParam(r, "checkout_id"), req.MethodName)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, contents)
}

// POST /api/v1/mandates
//
// Responds 202 when the payer has to pass an OTP challenge first.
func (h *PaymentHandler) SubmitMandate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var mandate domain.PaymentMandate
	if err := json.NewDecoder(r.Body).Decode(&mandate); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if mandate.ID() == "" || mandate.CheckoutID() == "" {
		respondError(w, http.StatusBadRequest, "invalid_mandate", "payment_mandate_id and payment_details_id are required")
		return
	}

	out, err := h.payments.Pay(ctx, mandate)
	if err != nil {
		respondPaymentError(w, r, out, err)
		return
	}
	respondOutcome(w, out)
}

// POST /api/v1/mandates/{mandate_id}/otp
func (h *PaymentHandler) ConfirmOTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ConfirmOTPRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		respondError(w, http.StatusBadRequest, "invalid_code", "code is required")
		return
	}

	out, err := h.payments.ConfirmChallenge(ctx, chi.URLParam(r, "mandate_id"), code)
	if err != nil {
		respondPaymentError(w, r, out, err)
		return
	}
	respondOutcome(w, out)
}

func respondOutcome(w http.ResponseWriter, out *service.PaymentOutcome) {
	status := http.StatusOK
	if out.State == settlement.StateChallenging {
		status = http.StatusAccepted
	}
	respondJSON(w, status, PaymentResponseDTO{
		State:     string(out.State),
		Receipt:   convertReceipt(out.Receipt),
		Challenge: convertChallenge(out.Challenge),
		Order:     convertOrder(out.Order),
	})
}

// respondPaymentError keeps the receipt in the body when the payment settled
// but completing the checkout failed, so the payer still learns the payment id.
func respondPaymentError(w http.ResponseWriter, r *http.Request, out *service.PaymentOutcome, err error) {
	if out == nil || out.Receipt == nil {
		handleServiceError(w, r, err)
		return
	}

	status, body := errorBody(r, err)
	slog.ErrorContext(r.Context(), "payment settled without an order",
		"payment_id", out.Receipt.PaymentID,
		"payment_mandate_id", out.Receipt.PaymentMandateID,
		"request_id", getRequestID(r.Context()),
		"error", err,
	)
	respondJSON(w, status, PaymentResponseDTO{
		State:   string(out.State),
		Receipt: convertReceipt(out.Receipt),
		Error:   &body,
	})
}
