// Package challenge decides when a payment needs step-up authentication and
// owns the lifecycle of the one-time codes used for it.
package challenge

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/notify"
)

const (
	codeDigits             = 6
	DefaultDeliveryTimeout = 5 * time.Second
)

var codeSpace = big.NewInt(1_000_000)

type Manager struct {
	policy          Policy
	random          Random
	codes           CodeStore
	notifier        notify.Notifier
	codeTTL         time.Duration
	deliveryTimeout time.Duration
	generate        func() (string, error)
	now             func() time.Time
	logger          *slog.Logger
}

type Option func(*Manager)

func WithPolicy(p Policy) Option { return func(m *Manager) { m.policy = p } }

func WithRandom(r Random) Option { return func(m *Manager) { m.random = r } }

// WithCodeTTL makes issued codes expire. Without it codes live until used or replaced.
func WithCodeTTL(ttl time.Duration) Option { return func(m *Manager) { m.codeTTL = ttl } }

func WithDeliveryTimeout(d time.Duration) Option {
	return func(m *Manager) { m.deliveryTimeout = d }
}

func WithCodeGenerator(gen func() (string, error)) Option {
	return func(m *Manager) { m.generate = gen }
}

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

func NewManager(codes CodeStore, notifier notify.Notifier, opts ...Option) *Manager {
	m := &Manager{
		policy:          DefaultPolicy,
		random:          globalRandom{},
		codes:           codes,
		notifier:        notifier,
		deliveryTimeout: DefaultDeliveryTimeout,
		generate:        GenerateCode,
		now:             time.Now,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ShouldChallenge draws a fresh decision on every call.
func (m *Manager) ShouldChallenge(mandate domain.PaymentMandate) bool {
	return m.random.Float64() < m.policy(mandate.Amount().Value)
}

// IssueChallenge stores a new code for the mandate, superseding any earlier
// one, and sends it to the payer. A delivery failure does not invalidate the
// code; it is reported through DeliveryWarning.
func (m *Manager) IssueChallenge(ctx context.Context, mandate domain.PaymentMandate) (*domain.OTPChallenge, error) {
	mandateID := mandate.ID()
	destination := mandate.PayerEmail()

	code, err := m.generate()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	if err := m.codes.Put(ctx, mandate, code, m.codeTTL); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}

	issuedAt := m.now()
	challenge := &domain.OTPChallenge{
		PaymentMandateID: mandateID,
		Message:          fmt.Sprintf("OTP verification required. Code sent to %s", destination),
		Destination:      destination,
		IssuedAt:         issuedAt,
	}
	if m.codeTTL > 0 {
		expires := issuedAt.Add(m.codeTTL)
		challenge.ExpiresAt = &expires
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.deliveryTimeout)
	defer cancel()
	if err := m.notifier.SendCode(sendCtx, destination, code); err != nil {
		m.logger.WarnContext(ctx, "otp delivery failed", "payment_mandate_id", mandateID, "error", err)
		challenge.DeliveryWarning = fmt.Sprintf("code delivery failed: %v", err)
	}

	m.logger.InfoContext(ctx, "otp challenge issued", "payment_mandate_id", mandateID)
	return challenge, nil
}

// Verify consumes the outstanding code for mandateID. It returns
// domain.ErrOTPNotFound when nothing is outstanding (never issued, already used
// or expired) and domain.ErrOTPMismatch when the code differs.
func (m *Manager) Verify(ctx context.Context, mandateID, code string) error {
	res, err := m.codes.CompareAndDelete(ctx, mandateID, code)
	if err != nil {
		return fmt.Errorf("verify otp: %w", err)
	}

	switch res {
	case Matched:
		m.logger.InfoContext(ctx, "otp verified", "payment_mandate_id", mandateID)
		return nil
	case Mismatch:
		m.logger.WarnContext(ctx, "invalid otp", "payment_mandate_id", mandateID)
		return domain.ErrOTPMismatch
	default:
		m.logger.WarnContext(ctx, "no otp found", "payment_mandate_id", mandateID)
		return domain.ErrOTPNotFound
	}
}

// Pending returns the mandate waiting on an outstanding code. Nothing is
// returned once the code has been used, has expired or was discarded.
func (m *Manager) Pending(ctx context.Context, mandateID string) (domain.PaymentMandate, bool, error) {
	mandate, ok, err := m.codes.Mandate(ctx, mandateID)
	if err != nil {
		return domain.PaymentMandate{}, false, fmt.Errorf("load pending mandate: %w", err)
	}
	return mandate, ok, nil
}

// Discard drops the outstanding code and its mandate.
func (m *Manager) Discard(ctx context.Context, mandateID string) error {
	if err := m.codes.Delete(ctx, mandateID); err != nil {
		return fmt.Errorf("discard otp: %w", err)
	}
	m.logger.InfoContext(ctx, "otp challenge discarded", "payment_mandate_id", mandateID)
	return nil
}

// GenerateCode returns a uniformly random six digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
