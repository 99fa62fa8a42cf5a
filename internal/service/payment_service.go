package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/settlement"
)

const (
	DefaultPaymentMethod = "CARD"
	merchantAgent        = "checkout-engine"
	totalLabel           = "Total"
)

type Settler interface {
	Settle(ctx context.Context, mandate domain.PaymentMandate) (*settlement.Result, error)
	ConfirmChallenge(ctx context.Context, mandateID, code string) (*settlement.Result, error)
	PendingMandate(ctx context.Context, mandateID string) (domain.PaymentMandate, bool, error)
	Abandon(ctx context.Context, mandateID string) error
}

// PaymentOutcome is what a payer sees after presenting a mandate or an OTP.
// Order is set only when the payment settled and the checkout completed.
type PaymentOutcome struct {
	State     settlement.State
	Receipt   *domain.PaymentReceipt
	Challenge *domain.OTPChallenge
	Order     *domain.Order
}

type PaymentService struct {
	checkouts *CheckoutService
	settler   Settler
	now       func() time.Time
	logger    *slog.Logger
}

func NewPaymentService(checkouts *CheckoutService, settler Settler, logger *slog.Logger) *PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentService{checkouts: checkouts, settler: settler, now: time.Now, logger: logger}
}

// BuildMandate returns the unsigned contents the payer signs to pay for the
// checkout.
func (p *PaymentService) BuildMandate(ctx context.Context, checkoutID, methodName string) (*domain.PaymentMandateContents, error) {
	c, err := p.checkouts.Get(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CheckoutStatusReadyForPayment {
		return nil, domain.ErrCheckoutNotReady
	}
	if methodName == "" {
		methodName = DefaultPaymentMethod
	}

	return &domain.PaymentMandateContents{
		PaymentMandateID: "PM-" + uuid.NewString(),
		PaymentDetailsID: c.ID,
		PaymentDetailsTotal: domain.PaymentDetailsTotal{
			Label: totalLabel,
			Amount: domain.CurrencyAmount{
				Currency: c.Totals.Currency,
				Value:    c.Totals.Total.Round(2),
			},
		},
		PaymentResponse: domain.PaymentResponse{
			MethodName: methodName,
			PayerEmail: c.Customer.Email,
		},
		MerchantAgent: merchantAgent,
		Timestamp:     p.now().UTC(),
	}, nil
}

// Pay settles a signed mandate. Rejected and declined payments come back as
// receipts, not errors. The checkout must still be ready for payment and the
// mandate must cover exactly its current total.
func (p *PaymentService) Pay(ctx context.Context, mandate domain.PaymentMandate) (*PaymentOutcome, error) {
	if err := p.checkMandate(ctx, mandate); err != nil {
		return nil, err
	}

	res, err := p.settler.Settle(ctx, mandate)
	if err != nil {
		return nil, err
	}
	return p.finish(ctx, res)
}

// ConfirmChallenge submits the OTP for a suspended mandate. The checkout is
// checked again as in Pay, since it may have been edited or paid by another
// mandate while the code was outstanding. A mandate that no longer matches is
// abandoned and has to be rebuilt.
func (p *PaymentService) ConfirmChallenge(ctx context.Context, mandateID, code string) (*PaymentOutcome, error) {
	mandate, ok, err := p.settler.PendingMandate(ctx, mandateID)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := p.checkMandate(ctx, mandate); err != nil {
			if isStale(err) {
				p.abandon(ctx, mandate, err)
			}
			return nil, err
		}
	}

	res, err := p.settler.ConfirmChallenge(ctx, mandateID, code)
	if err != nil {
		return nil, err
	}
	return p.finish(ctx, res)
}

func (p *PaymentService) checkMandate(ctx context.Context, mandate domain.PaymentMandate) error {
	c, err := p.checkouts.Get(ctx, mandate.CheckoutID())
	if err != nil {
		return err
	}
	if c.Status != domain.CheckoutStatusReadyForPayment {
		return domain.ErrCheckoutNotReady
	}
	amount := mandate.Amount()
	if amount.Currency != c.Totals.Currency || !amount.Value.Equal(c.Totals.Total.Round(2)) {
		return fmt.Errorf("%w: mandate covers %s %s, checkout total is %s %s", domain.ErrMandateMismatch,
			amount.Value.StringFixed(2), amount.Currency, c.Totals.Total.StringFixed(2), c.Totals.Currency)
	}
	return nil
}

// isStale reports whether the mandate can never settle against its checkout.
func isStale(err error) bool {
	return errors.Is(err, domain.ErrCheckoutNotReady) ||
		errors.Is(err, domain.ErrMandateMismatch) ||
		errors.Is(err, domain.ErrCheckoutNotFound)
}

func (p *PaymentService) abandon(ctx context.Context, mandate domain.PaymentMandate, reason error) {
	p.logger.WarnContext(ctx, "suspended mandate no longer matches its checkout",
		"payment_mandate_id", mandate.ID(),
		"checkout_id", mandate.CheckoutID(),
		"reason", reason,
	)
	if err := p.settler.Abandon(ctx, mandate.ID()); err != nil {
		p.logger.ErrorContext(ctx, "failed to abandon suspended mandate",
			"payment_mandate_id", mandate.ID(), "error", err)
	}
}

// finish completes the checkout after a successful settlement. If completion
// fails the receipt is still returned alongside the error.
func (p *PaymentService) finish(ctx context.Context, res *settlement.Result) (*PaymentOutcome, error) {
	out := &PaymentOutcome{State: res.State, Receipt: res.Receipt, Challenge: res.Challenge}
	if res.State != settlement.StateSucceeded {
		return out, nil
	}

	order, err := p.checkouts.Complete(ctx, res.Mandate.CheckoutID(), res.Receipt)
	if err != nil {
		p.logger.ErrorContext(ctx, "payment settled but checkout not completed",
			"checkout_id", res.Mandate.CheckoutID(),
			"payment_id", res.Receipt.PaymentID,
			"error", err,
		)
		return out, err
	}
	out.Order = order
	return out, nil
}
