package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
)

const DefaultLookupTimeout = 2 * time.Second

// GuardedLookup bounds every catalog call with a timeout, collapses concurrent
// lookups of the same product and stops calling a failing catalog for a while.
type GuardedLookup struct {
	next    PriceLookup
	timeout time.Duration
	sfg     singleflight.Group
	cb      *gobreaker.CircuitBreaker[*domain.PriceQuote]
	logger  *slog.Logger
}

func NewGuardedLookup(next PriceLookup, timeout time.Duration, logger *slog.Logger) *GuardedLookup {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &GuardedLookup{
		next:    next,
		timeout: timeout,
		logger:  logger,
	}
	g.cb = gobreaker.NewCircuitBreaker[*domain.PriceQuote](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// an unknown product is an answer, not a catalog failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrProductNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return g
}

// GetPrice shares one lookup between concurrent callers of the same product.
// The shared lookup is detached from the caller that started it and bounded
// by the lookup timeout; each caller stops waiting when its own ctx ends.
func (g *GuardedLookup) GetPrice(ctx context.Context, productID string) (*domain.PriceQuote, error) {
	flight := g.sfg.DoChan(productID, func() (interface{}, error) {
		return g.cb.Execute(func() (*domain.PriceQuote, error) {
			lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
			defer cancel()
			return g.next.GetPrice(lookupCtx, productID)
		})
	})

	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: product %s: %w", domain.ErrPricingUnavailable, productID, ctx.Err())
	}

	v, err := res.Val, res.Err
	if err != nil {
		switch {
		case errors.Is(err, ErrProductNotFound):
			return nil, err
		case errors.Is(err, context.DeadlineExceeded),
			errors.Is(err, gobreaker.ErrOpenState),
			errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, fmt.Errorf("%w: product %s: %v", domain.ErrPricingUnavailable, productID, err)
		default:
			return nil, fmt.Errorf("%w: product %s: %w", domain.ErrPricingUnavailable, productID, err)
		}
	}
	return v.(*domain.PriceQuote), nil
}
