package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/catalog"
	"github.com/fjod/go_cart/checkout-engine/internal/challenge"
	"github.com/fjod/go_cart/checkout-engine/internal/mandate"
	"github.com/fjod/go_cart/checkout-engine/internal/metrics"
	"github.com/fjod/go_cart/checkout-engine/internal/pricing"
	"github.com/fjod/go_cart/checkout-engine/internal/repository"
	"github.com/fjod/go_cart/checkout-engine/internal/service"
	"github.com/fjod/go_cart/checkout-engine/internal/settlement"
	"github.com/fjod/go_cart/checkout-engine/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type catalogMock struct {
	products map[string]*domain.Product
	err      error
}

func newCatalogMock() *catalogMock {
	return &catalogMock{products: map[string]*domain.Product{
		"P1": {ID: "P1", SKU: "TENT-1", Name: "Camping Tent", Price: decimal.RequireFromString("5.00"),
			Currency: "USD", Availability: domain.AvailabilityInStock, IsActive: true},
		"P2": {ID: "P2", SKU: "LAMP-1", Name: "Headlamp", Price: decimal.RequireFromString("19.99"),
			Currency: "USD", Availability: domain.AvailabilityInStock, IsActive: true},
		"OOS": {ID: "OOS", SKU: "GONE-1", Name: "Sold Out", Price: decimal.RequireFromString("1.00"),
			Currency: "USD", Availability: domain.AvailabilityOutOfStock, IsActive: true},
	}}
}

func (m *catalogMock) GetPrice(_ context.Context, productID string) (*domain.PriceQuote, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[productID]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &domain.PriceQuote{ProductID: p.ID, UnitPrice: p.Price, Currency: p.Currency, Available: p.Available()}, nil
}

func (m *catalogMock) Search(_ context.Context, _ string, limit int) ([]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Product
	for _, id := range []string{"P1", "P2", "OOS"} {
		if len(out) == limit {
			break
		}
		out = append(out, m.products[id])
	}
	return out, nil
}

type notifierMock struct {
	mu   sync.Mutex
	code string
}

func (n *notifierMock) SendCode(_ context.Context, _, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.code = code
	return nil
}

func (n *notifierMock) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.code
}

// --- helpers ---

type testServer struct {
	handler  http.Handler
	handlers Handlers
	catalog  *catalogMock
	notifier *notifierMock
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupServer(t *testing.T, challengePolicy challenge.Policy, decision settlement.Policy) *testServer {
	t.Helper()

	checkouts := store.NewMemoryStore()
	t.Cleanup(func() { _ = checkouts.Close() })

	ts := &testServer{catalog: newCatalogMock(), notifier: &notifierMock{}}
	m := metrics.New()
	svc := service.NewCheckoutService(checkouts, ts.catalog, pricing.NewDefault(), repository.NewMemoryRepository(),
		service.WithRecorder(m), service.WithLogger(discardLogger()))
	manager := challenge.NewManager(challenge.NewMemoryCodeStore(), ts.notifier,
		challenge.WithPolicy(challengePolicy), challenge.WithLogger(discardLogger()))
	processor := settlement.NewProcessor(mandate.NewStructuralValidator(discardLogger()), manager,
		settlement.WithPolicy(decision), settlement.WithRecorder(m), settlement.WithLogger(discardLogger()))
	payments := service.NewPaymentService(svc, processor, discardLogger())

	timeout := 5 * time.Second
	ts.handlers = Handlers{
		Checkouts: NewCheckoutHandler(svc, timeout),
		Payments:  NewPaymentHandler(payments, timeout),
		Products:  NewProductHandler(ts.catalog, timeout),
		Orders:    NewOrdersHandler(svc, timeout),
	}
	ts.handler = NewRouter(ts.handlers, m, timeout)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(SessionHeader, "s1")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// readyCheckout fills the checkout with 2 x P1 and moves it to ready_for_payment.
func (ts *testServer) readyCheckout(t *testing.T, id string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/checkouts/"+id+"/items", AddItemRequestDTO{ProductID: "P1", Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPut, "/api/v1/checkouts/"+id+"/customer", SetCustomerRequestDTO{Email: "ann@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, "/api/v1/checkouts/"+id+"/payment", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// signedMandate asks the engine for mandate contents and attaches a signature.
func (ts *testServer) signedMandate(t *testing.T, checkoutID, signature string) domain.PaymentMandate {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/checkouts/"+checkoutID+"/mandate", BuildMandateRequestDTO{MethodName: "CARD"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	contents := decode[domain.PaymentMandateContents](t, rec)
	return domain.PaymentMandate{Contents: contents, UserAuthorization: signature}
}

func withURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
