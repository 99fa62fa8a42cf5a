package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/catalog"
	"github.com/fjod/go_cart/checkout-engine/internal/pricing"
	"github.com/fjod/go_cart/checkout-engine/internal/repository"
	"github.com/fjod/go_cart/checkout-engine/internal/store"
	"github.com/shopspring/decimal"
)

// catalogMock implements catalog.PriceLookup
type catalogMock struct {
	mu     sync.Mutex
	quotes map[string]*domain.PriceQuote
	err    error
	calls  int
}

func newCatalogMock() *catalogMock {
	return &catalogMock{quotes: map[string]*domain.PriceQuote{
		"P1": {ProductID: "P1", UnitPrice: decimal.RequireFromString("5.00"), Currency: "USD", Available: true},
		"P2": {ProductID: "P2", UnitPrice: decimal.RequireFromString("19.99"), Currency: "USD", Available: true},
		"P3": {ProductID: "P3", UnitPrice: decimal.RequireFromString("0.333"), Currency: "USD", Available: true},
		"OOS": {ProductID: "OOS", UnitPrice: decimal.RequireFromString("12.00"), Currency: "USD", Available: false},
		"EUR": {ProductID: "EUR", UnitPrice: decimal.RequireFromString("12.00"), Currency: "EUR", Available: true},
	}}
}

func (m *catalogMock) GetPrice(_ context.Context, productID string) (*domain.PriceQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	q, ok := m.quotes[productID]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *catalogMock) setPrice(productID, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[productID].UnitPrice = decimal.RequireFromString(price)
}

func (m *catalogMock) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// publisherMock implements publisher.OrderEventPublisher
type publisherMock struct {
	mu     sync.Mutex
	orders []*domain.Order
}

func (p *publisherMock) Enqueue(order *domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, order)
	return nil
}

func (p *publisherMock) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}

type recorderMock struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *recorderMock) ObserveCheckout(operation string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.calls[operation+"/"+outcome]++
}

type fixture struct {
	svc       *CheckoutService
	catalog   *catalogMock
	ledger    *repository.MemoryRepository
	publisher *publisherMock
	recorder  *recorderMock
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupService(t *testing.T) *fixture {
	t.Helper()

	repo := store.NewMemoryStore()
	t.Cleanup(func() { _ = repo.Close() })

	f := &fixture{
		catalog:   newCatalogMock(),
		ledger:    repository.NewMemoryRepository(),
		publisher: &publisherMock{},
		recorder:  &recorderMock{},
	}
	f.svc = NewCheckoutService(repo, f.catalog, pricing.NewDefault(), f.ledger,
		WithPublisher(f.publisher),
		WithRecorder(f.recorder),
		WithClock(func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }),
		WithLogger(discardLogger()),
	)
	return f
}

func successReceipt(mandateID string) *domain.PaymentReceipt {
	return &domain.PaymentReceipt{
		PaymentMandateID: mandateID,
		PaymentID:        "PAY-000000000001",
		Timestamp:        time.Now(),
		Amount:           domain.CurrencyAmount{Currency: "USD", Value: decimal.RequireFromString("16.00")},
		Status: domain.ReceiptSuccess{
			MerchantConfirmationID: "MCH-1",
			PSPConfirmationID:      "PSP-1",
			NetworkConfirmationID:  "NET-1",
		},
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
