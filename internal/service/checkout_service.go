// Package service implements the checkout lifecycle and payment orchestration
// on top of the stores, the pricing engine and the settlement processor.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/catalog"
	"github.com/fjod/go_cart/checkout-engine/internal/pricing"
	"github.com/fjod/go_cart/checkout-engine/internal/publisher"
	"github.com/fjod/go_cart/checkout-engine/internal/repository"
	"github.com/fjod/go_cart/checkout-engine/internal/store"
)

const maxConcurrentLookups = 8

type Recorder interface {
	ObserveCheckout(operation string, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCheckout(string, error) {}

type CheckoutService struct {
	repo      store.CheckoutRepository
	prices    catalog.PriceLookup
	engine    *pricing.Engine
	ledger    repository.OrderRepository
	publisher publisher.OrderEventPublisher
	recorder  Recorder
	tracer    trace.Tracer
	locks     *keyedMutex
	now       func() time.Time
	orderID   func() string
	logger    *slog.Logger
}

type Option func(*CheckoutService)

func WithPublisher(p publisher.OrderEventPublisher) Option {
	return func(s *CheckoutService) { s.publisher = p }
}

func WithRecorder(r Recorder) Option { return func(s *CheckoutService) { s.recorder = r } }

func WithClock(now func() time.Time) Option { return func(s *CheckoutService) { s.now = now } }

func WithOrderIDs(gen func() string) Option { return func(s *CheckoutService) { s.orderID = gen } }

func WithLogger(l *slog.Logger) Option { return func(s *CheckoutService) { s.logger = l } }

func NewCheckoutService(
	repo store.CheckoutRepository,
	prices catalog.PriceLookup,
	engine *pricing.Engine,
	ledger repository.OrderRepository,
	opts ...Option,
) *CheckoutService {
	s := &CheckoutService{
		repo:      repo,
		prices:    prices,
		engine:    engine,
		ledger:    ledger,
		publisher: publisher.NopPublisher{},
		recorder:  nopRecorder{},
		tracer:    otel.Tracer("checkout-engine/service"),
		locks:     newKeyedMutex(),
		now:       time.Now,
		orderID:   newOrderID,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newOrderID() string {
	return "ORD-" + ulid.Make().String()
}

// Get returns the checkout with totals recomputed from its line items.
func (s *CheckoutService) Get(ctx context.Context, checkoutID string) (*domain.Checkout, error) {
	c, err := s.repo.Get(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	items, totals, err := s.engine.Recalculate(c.LineItems, pricing.StoredPrices(c.LineItems))
	if err != nil {
		return nil, fmt.Errorf("recalculate checkout %s: %w", checkoutID, err)
	}
	c.LineItems = items
	c.Totals = totals
	return c, nil
}

// Order returns a recorded order by id.
func (s *CheckoutService) Order(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.ledger.GetOrderByID(ctx, orderID)
}

func (s *CheckoutService) Orders(ctx context.Context, sessionID string) ([]*domain.Order, error) {
	if sessionID == "" {
		sessionID = domain.DefaultSessionID
	}
	return s.ledger.ListOrdersBySession(ctx, sessionID)
}

// mutate runs fn against the current checkout under the per-checkout lock and
// persists the result. When create is set an absent checkout starts out empty.
func (s *CheckoutService) mutate(
	ctx context.Context,
	operation, checkoutID, sessionID string,
	create bool,
	fn func(c *domain.Checkout) error,
) (c *domain.Checkout, err error) {
	defer func() { s.recorder.ObserveCheckout(operation, err) }()

	unlock := s.locks.Lock(checkoutID)
	defer unlock()

	c, err = s.repo.Get(ctx, checkoutID)
	switch {
	case errors.Is(err, domain.ErrCheckoutNotFound) && create:
		c = domain.NewCheckout(checkoutID, sessionID, s.engine.Currency(), s.now().UTC())
	case err != nil:
		return nil, err
	}

	if c.Status.IsTerminal() {
		return nil, domain.ErrCheckoutCompleted
	}
	if err := fn(c); err != nil {
		return nil, err
	}

	c.UpdatedAt = s.now().UTC()
	if err := s.repo.Put(ctx, c); err != nil {
		return nil, fmt.Errorf("save checkout %s: %w", checkoutID, err)
	}
	return c, nil
}

// reprice fetches authoritative prices for every line item and recomputes
// the totals. Nothing is ever priced at zero for lack of an answer.
func (s *CheckoutService) reprice(ctx context.Context, c *domain.Checkout) error {
	quotes := make([]*domain.PriceQuote, len(c.LineItems))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, item := range c.LineItems {
		g.Go(func() error {
			q, err := s.prices.GetPrice(gctx, item.ProductID)
			if err != nil {
				if errors.Is(err, catalog.ErrProductNotFound) {
					return fmt.Errorf("%w: %w", domain.ErrProductUnavailable, err)
				}
				return err
			}
			if !q.Available {
				return fmt.Errorf("%w: %s", domain.ErrProductUnavailable, item.ProductID)
			}
			if q.Currency != c.Currency {
				return fmt.Errorf("%w: %s is priced in %s", domain.ErrProductUnavailable, item.ProductID, q.Currency)
			}
			quotes[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	prices := make(map[string]decimal.Decimal, len(quotes))
	for i, q := range quotes {
		prices[c.LineItems[i].ProductID] = q.UnitPrice
	}
	items, totals, err := s.engine.Recalculate(c.LineItems, pricing.MapPrices(prices))
	if err != nil {
		return err
	}
	c.LineItems = items
	c.Totals = totals
	return nil
}
