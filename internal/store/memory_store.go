package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_cart/checkout-engine/domain"
)

const (
	// DefaultCheckoutTTL is how long an untouched incomplete checkout is kept
	DefaultCheckoutTTL = 30 * time.Minute

	// CleanupInterval is how often the background cleanup runs
	CleanupInterval = 30 * time.Second
)

// MemoryStore implements CheckoutRepository with in-memory storage
type MemoryStore struct {
	mu        sync.RWMutex
	checkouts map[string]*domain.Checkout

	ttl         time.Duration
	now         func() time.Time
	logger      *slog.Logger
	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

type MemoryOption func(*MemoryStore)

// WithTTL sets the idle time after which incomplete checkouts are evicted.
// Zero disables eviction.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.ttl = ttl }
}

func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func WithLogger(logger *slog.Logger) MemoryOption {
	return func(s *MemoryStore) { s.logger = logger }
}

// NewMemoryStore creates a new in-memory checkout store
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		checkouts:   make(map[string]*domain.Checkout),
		ttl:         DefaultCheckoutTTL,
		now:         time.Now,
		logger:      slog.Default(),
		stopCleanup: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.ttl > 0 {
		s.wg.Add(1)
		go s.cleanupLoop()
	}

	return s
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

// evictExpired drops incomplete checkouts idle for longer than the TTL.
// Checkouts that reached ready_for_payment or completed are kept.
func (s *MemoryStore) evictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	evicted := 0
	for id, c := range s.checkouts {
		if c.Status == domain.CheckoutStatusIncomplete && c.UpdatedAt.Before(cutoff) {
			delete(s.checkouts, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Info("evicted idle checkouts", "count", evicted)
	}
	return evicted
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Checkout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.checkouts[id]
	if !exists {
		return nil, domain.ErrCheckoutNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, checkout *domain.Checkout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.checkouts[checkout.ID]
	switch {
	case !exists && checkout.Version != 0:
		return domain.ErrCheckoutNotFound
	case exists && current.Version != checkout.Version:
		return ErrVersionConflict
	case exists && domain.IsRegression(current.Status, checkout.Status):
		return domain.ErrIllegalTransition
	}

	checkout.Version++
	s.checkouts[checkout.ID] = checkout.Clone()
	return nil
}

func (s *MemoryStore) CompareAndSwapStatus(_ context.Context, checkout *domain.Checkout, expected domain.CheckoutStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.checkouts[checkout.ID]
	if !exists {
		return domain.ErrCheckoutNotFound
	}
	if current.Status != expected {
		return ErrStatusConflict
	}
	if !domain.CanTransitionTo(expected, checkout.Status) {
		return domain.ErrIllegalTransition
	}

	checkout.Version = current.Version + 1
	s.checkouts[checkout.ID] = checkout.Clone()
	return nil
}

// Len returns the number of stored checkouts
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.checkouts)
}

// Close stops the background cleanup and waits for it to finish
func (s *MemoryStore) Close() error {
	select {
	case <-s.stopCleanup:
	default:
		close(s.stopCleanup)
	}
	s.wg.Wait()
	return nil
}
