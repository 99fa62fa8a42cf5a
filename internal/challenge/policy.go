package challenge

import (
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

var highValueThreshold = decimal.NewFromInt(100)

// Policy maps a mandate amount to the probability that step-up authentication
// is required. Swap it for a real risk engine without touching the flow.
type Policy func(amount decimal.Decimal) float64

// DefaultPolicy challenges 30% of payments above 100 and 10% of the rest.
func DefaultPolicy(amount decimal.Decimal) float64 {
	if amount.GreaterThan(highValueThreshold) {
		return 0.3
	}
	return 0.1
}

// Always and Never are fixed policies, handy for tests and demos.
func Always(decimal.Decimal) float64 { return 1 }
func Never(decimal.Decimal) float64  { return 0 }

// Random is the source of randomness behind a policy decision.
type Random interface {
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }
