package mandate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fjod/go_cart/checkout-engine/domain"
)

// MinSignatureLength is the shortest user authorization accepted as plausible.
const MinSignatureLength = 10

// Validator checks that a mandate is authentic before any money moves.
// A cryptographic implementation can replace StructuralValidator without
// changing callers.
type Validator interface {
	Validate(ctx context.Context, m domain.PaymentMandate) error
}

// StructuralValidator rejects mandates whose signature is missing or too short
// to be a real signature.
type StructuralValidator struct {
	minLength int
	logger    *slog.Logger
}

func NewStructuralValidator(logger *slog.Logger) *StructuralValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &StructuralValidator{minLength: MinSignatureLength, logger: logger}
}

func (v *StructuralValidator) Validate(ctx context.Context, m domain.PaymentMandate) error {
	switch {
	case m.UserAuthorization == "":
		v.logger.WarnContext(ctx, "mandate missing signature", "payment_mandate_id", m.ID())
		return fmt.Errorf("%w: missing signature", domain.ErrInvalidMandateSignature)
	case len(m.UserAuthorization) < v.minLength:
		v.logger.WarnContext(ctx, "mandate has invalid signature", "payment_mandate_id", m.ID())
		return fmt.Errorf("%w: signature too short", domain.ErrInvalidMandateSignature)
	}
	return nil
}
