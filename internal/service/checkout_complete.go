package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/repository"
	"github.com/fjod/go_cart/checkout-engine/internal/store"
)

// Complete records the order for a settled checkout and moves it to
// completed. A checkout that is not ready_for_payment, including one that is
// already completed, fails with domain.ErrCheckoutNotReady, so at most one
// order exists per checkout.
func (s *CheckoutService) Complete(ctx context.Context, checkoutID string, receipt *domain.PaymentReceipt) (order *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Complete", trace.WithAttributes(
		attribute.String("checkout_id", checkoutID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.recorder.ObserveCheckout("complete", err)
	}()

	if receipt == nil || receipt.Status == nil {
		return nil, ErrPaymentNotSettled
	}
	if rerr := receipt.Err(); rerr != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymentNotSettled, rerr)
	}

	unlock := s.locks.Lock(checkoutID)
	defer unlock()

	c, err := s.repo.Get(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CheckoutStatusReadyForPayment {
		return nil, domain.ErrCheckoutNotReady
	}
	if len(c.LineItems) == 0 {
		return nil, domain.ErrEmptyCheckout
	}

	now := s.now().UTC()
	order = &domain.Order{
		ID:         s.orderID(),
		CheckoutID: c.ID,
		SessionID:  c.SessionID,
		Items:      c.LineItems,
		Customer:   c.Customer,
		Totals:     c.Totals,
		PaymentID:  receipt.PaymentID,
		Status:     domain.OrderStatusCompleted,
		CreatedAt:  now,
	}

	// The ledger write comes first. If a previous attempt recorded the order
	// but failed to flip the status, that order is reused.
	if err := s.ledger.CreateOrder(ctx, order); err != nil {
		if !errors.Is(err, repository.ErrDuplicateCheckout) {
			return nil, fmt.Errorf("record order: %w", err)
		}
		existing, gerr := s.ledger.GetOrderByCheckoutID(ctx, c.ID)
		if gerr != nil {
			return nil, fmt.Errorf("load recorded order: %w", gerr)
		}
		s.logger.WarnContext(ctx, "reusing order recorded by an earlier attempt",
			"checkout_id", c.ID, "order_id", existing.ID)
		order = existing
	}

	c.Status = domain.CheckoutStatusCompleted
	c.PaymentID = order.PaymentID
	c.OrderID = order.ID
	c.CompletedAt = &now
	c.UpdatedAt = now
	if err := s.repo.CompareAndSwapStatus(ctx, c, domain.CheckoutStatusReadyForPayment); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return nil, domain.ErrCheckoutNotReady
		}
		return nil, fmt.Errorf("complete checkout %s: %w", c.ID, err)
	}

	if err := s.publisher.Enqueue(order); err != nil {
		s.logger.WarnContext(ctx, "failed to enqueue checkout completed event", "order_id", order.ID, "error", err)
	}

	span.SetAttributes(attribute.String("order_id", order.ID))
	s.logger.InfoContext(ctx, "order created",
		"checkout_id", c.ID,
		"order_id", order.ID,
		"payment_id", order.PaymentID,
		"total", order.Totals.Total.StringFixed(2),
	)
	return order, nil
}
