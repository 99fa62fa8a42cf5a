// Package settlement drives a payment mandate from receipt to a final
// Success, Failure or Error receipt, with an optional OTP step in between.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/mandate"
)

const (
	reasonInvalidSignature = "invalid mandate signature"
	reasonDeclined         = "payment declined by issuing bank"
)

type State string

const (
	StateReceived    State = "received"
	StateValidating  State = "validating"
	StateChallenging State = "challenging"
	StateSettling    State = "settling"
	StateSucceeded   State = "succeeded"
	StateDeclined    State = "declined"
	StateRejected    State = "rejected"
)

func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateDeclined || s == StateRejected
}

// Result carries either a receipt (terminal state) or a challenge
// (StateChallenging), never both.
type Result struct {
	State     State
	Mandate   domain.PaymentMandate
	Receipt   *domain.PaymentReceipt
	Challenge *domain.OTPChallenge
}

// Challenger is the step-up authentication the processor relies on.
type Challenger interface {
	ShouldChallenge(mandate domain.PaymentMandate) bool
	IssueChallenge(ctx context.Context, mandate domain.PaymentMandate) (*domain.OTPChallenge, error)
	Verify(ctx context.Context, mandateID, code string) error
	Pending(ctx context.Context, mandateID string) (domain.PaymentMandate, bool, error)
	Discard(ctx context.Context, mandateID string) error
}

type Recorder interface {
	ObserveSettlement(state string)
	ObserveChallenge(result string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSettlement(string) {}
func (nopRecorder) ObserveChallenge(string)  {}

type Processor struct {
	validator  mandate.Validator
	challenger Challenger
	policy     Policy
	ids        IDSource
	recorder   Recorder
	tracer     trace.Tracer
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Processor)

func WithPolicy(p Policy) Option { return func(pr *Processor) { pr.policy = p } }

func WithIDSource(ids IDSource) Option { return func(pr *Processor) { pr.ids = ids } }

func WithRecorder(r Recorder) Option { return func(pr *Processor) { pr.recorder = r } }

func WithClock(now func() time.Time) Option { return func(pr *Processor) { pr.now = now } }

func WithLogger(l *slog.Logger) Option { return func(pr *Processor) { pr.logger = l } }

func NewProcessor(validator mandate.Validator, challenger Challenger, opts ...Option) *Processor {
	p := &Processor{
		validator:  validator,
		challenger: challenger,
		policy:     RandomPolicy{},
		ids:        uuidIDs{},
		recorder:   nopRecorder{},
		tracer:     otel.Tracer("checkout-engine/settlement"),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Settle validates the mandate and either settles it or suspends it behind
// an OTP challenge. Declined and rejected payments are reported through the
// receipt; the error return is reserved for infrastructure failures.
func (p *Processor) Settle(ctx context.Context, m domain.PaymentMandate) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "settlement.Settle", trace.WithAttributes(
		attribute.String("payment_mandate_id", m.ID()),
		attribute.String("checkout_id", m.CheckoutID()),
	))
	defer span.End()

	if err := p.validator.Validate(ctx, m); err != nil {
		if !errors.Is(err, domain.ErrInvalidMandateSignature) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("validate mandate: %w", err)
		}
		return p.finish(span, StateRejected, m, p.rejectedReceipt(m)), nil
	}

	if p.challenger.ShouldChallenge(m) {
		challenge, err := p.challenger.IssueChallenge(ctx, m)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("issue challenge: %w", err)
		}

		p.recorder.ObserveChallenge("issued")
		span.SetAttributes(attribute.String("settlement.state", string(StateChallenging)))
		return &Result{State: StateChallenging, Mandate: m, Challenge: challenge}, nil
	}

	return p.settle(ctx, span, m), nil
}

// ConfirmChallenge resumes a suspended mandate once its code verifies. A wrong
// or missing code returns domain.ErrChallengeRejected and leaves the mandate
// suspended while a code is still outstanding.
func (p *Processor) ConfirmChallenge(ctx context.Context, mandateID, code string) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "settlement.ConfirmChallenge", trace.WithAttributes(
		attribute.String("payment_mandate_id", mandateID),
	))
	defer span.End()

	m, ok, err := p.challenger.Pending(ctx, mandateID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !ok {
		p.recorder.ObserveChallenge("not_found")
		return nil, fmt.Errorf("%w: %w", domain.ErrChallengeRejected, domain.ErrOTPNotFound)
	}

	// Verify is single-use, so only one caller gets past it per code.
	if err := p.challenger.Verify(ctx, mandateID, code); err != nil {
		switch {
		case errors.Is(err, domain.ErrOTPMismatch):
			p.recorder.ObserveChallenge("mismatch")
		case errors.Is(err, domain.ErrOTPNotFound):
			p.recorder.ObserveChallenge("not_found")
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrChallengeRejected, err)
	}

	p.recorder.ObserveChallenge("verified")
	return p.settle(ctx, span, m), nil
}

// PendingMandate returns the mandate waiting on its OTP, if any. The mandate
// lives exactly as long as its code.
func (p *Processor) PendingMandate(ctx context.Context, mandateID string) (domain.PaymentMandate, bool, error) {
	return p.challenger.Pending(ctx, mandateID)
}

// Abandon drops a suspended mandate together with its code. Confirming it
// afterwards fails with domain.ErrOTPNotFound.
func (p *Processor) Abandon(ctx context.Context, mandateID string) error {
	if err := p.challenger.Discard(ctx, mandateID); err != nil {
		return err
	}
	p.recorder.ObserveChallenge("abandoned")
	p.logger.InfoContext(ctx, "suspended mandate abandoned", "payment_mandate_id", mandateID)
	return nil
}

func (p *Processor) settle(ctx context.Context, span trace.Span, m domain.PaymentMandate) *Result {
	decision := p.policy.Decide(ctx, m)
	span.SetAttributes(attribute.String("settlement.decision", decision.String()))

	if decision != Approve {
		p.logger.WarnContext(ctx, "settlement declined",
			"payment_mandate_id", m.ID(),
			"checkout_id", m.CheckoutID(),
		)
		receipt := &domain.PaymentReceipt{
			PaymentMandateID: m.ID(),
			PaymentID:        p.ids.PaymentID(),
			Timestamp:        p.now().UTC(),
			Amount:           m.Amount(),
			Status:           domain.ReceiptFailure{Reason: reasonDeclined},
		}
		return p.finish(span, StateDeclined, m, receipt)
	}

	merchant, psp, network := p.ids.Confirmations()
	receipt := &domain.PaymentReceipt{
		PaymentMandateID: m.ID(),
		PaymentID:        p.ids.PaymentID(),
		Timestamp:        p.now().UTC(),
		Amount:           m.Amount(),
		Status: domain.ReceiptSuccess{
			MerchantConfirmationID: merchant,
			PSPConfirmationID:      psp,
			NetworkConfirmationID:  network,
		},
		PaymentMethodDetails: &domain.PaymentMethodDetails{
			Method:     m.Contents.PaymentResponse.MethodName,
			PayerEmail: m.PayerEmail(),
		},
	}
	p.logger.InfoContext(ctx, "settlement succeeded",
		"payment_mandate_id", m.ID(),
		"payment_id", receipt.PaymentID,
		"amount", m.Amount().Value.StringFixed(2),
	)
	return p.finish(span, StateSucceeded, m, receipt)
}

func (p *Processor) rejectedReceipt(m domain.PaymentMandate) *domain.PaymentReceipt {
	return &domain.PaymentReceipt{
		PaymentMandateID: m.ID(),
		PaymentID:        p.ids.RejectedPaymentID(),
		Timestamp:        p.now().UTC(),
		Amount:           m.Amount(),
		Status:           domain.ReceiptError{Reason: reasonInvalidSignature},
	}
}

func (p *Processor) finish(span trace.Span, state State, m domain.PaymentMandate, receipt *domain.PaymentReceipt) *Result {
	span.SetAttributes(
		attribute.String("settlement.state", string(state)),
		attribute.String("payment_id", receipt.PaymentID),
	)
	p.recorder.ObserveSettlement(string(state))
	return &Result{State: state, Mandate: m, Receipt: receipt}
}
