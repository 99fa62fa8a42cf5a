package settlement

import (
	"context"
	"math/rand/v2"

	"github.com/fjod/go_cart/checkout-engine/domain"
)

// approvalThreshold out of 100 draws is approved.
const approvalThreshold = 95

type Decision int

const (
	Approve Decision = iota
	Decline
)

func (d Decision) String() string {
	if d == Approve {
		return "approve"
	}
	return "decline"
}

// Policy stands in for the payment network.
type Policy interface {
	Decide(ctx context.Context, mandate domain.PaymentMandate) Decision
}

type PolicyFunc func(ctx context.Context, mandate domain.PaymentMandate) Decision

func (f PolicyFunc) Decide(ctx context.Context, mandate domain.PaymentMandate) Decision {
	return f(ctx, mandate)
}

// AlwaysApprove and AlwaysDecline are fixed policies.
var (
	AlwaysApprove = PolicyFunc(func(context.Context, domain.PaymentMandate) Decision { return Approve })
	AlwaysDecline = PolicyFunc(func(context.Context, domain.PaymentMandate) Decision { return Decline })
)

// RandomPolicy approves 95% of settlements.
type RandomPolicy struct{}

func (RandomPolicy) Decide(context.Context, domain.PaymentMandate) Decision {
	return decide(rand.IntN(100))
}

func decide(n int) Decision {
	if n < approvalThreshold {
		return Approve
	}
	return Decline
}
