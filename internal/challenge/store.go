package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/checkout-engine/domain"
)

type VerifyResult int

const (
	NotFound VerifyResult = iota
	Mismatch
	Matched
)

func (r VerifyResult) String() string {
	switch r {
	case Matched:
		return "matched"
	case Mismatch:
		return "mismatch"
	default:
		return "not_found"
	}
}

// CodeStore holds at most one outstanding code per mandate id, together with
// the mandate waiting on it. Both share one entry and one expiry.
type CodeStore interface {
	// Put stores code and mandate under the mandate id, replacing any earlier
	// entry. A zero ttl keeps the entry until it is consumed, replaced or
	// deleted.
	Put(ctx context.Context, mandate domain.PaymentMandate, code string, ttl time.Duration) error

	// Mandate returns the mandate behind an outstanding code.
	Mandate(ctx context.Context, mandateID string) (domain.PaymentMandate, bool, error)

	// CompareAndDelete deletes the entry if its code equals code. The read, the
	// comparison and the delete happen as one atomic step.
	CompareAndDelete(ctx context.Context, mandateID, code string) (VerifyResult, error)

	Delete(ctx context.Context, mandateID string) error
}

type pendingCode struct {
	code      string
	mandate   domain.PaymentMandate
	expiresAt time.Time
}

func (p pendingCode) expired(now time.Time) bool {
	return !p.expiresAt.IsZero() && !now.Before(p.expiresAt)
}

// MemoryCodeStore is a process local CodeStore. Expired entries are dropped
// when touched and swept on every Put.
type MemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]pendingCode
	now   func() time.Time
}

func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{
		codes: make(map[string]pendingCode),
		now:   time.Now,
	}
}

func (s *MemoryCodeStore) Put(_ context.Context, mandate domain.PaymentMandate, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, p := range s.codes {
		if p.expired(now) {
			delete(s.codes, id)
		}
	}

	p := pendingCode{code: code, mandate: mandate}
	if ttl > 0 {
		p.expiresAt = now.Add(ttl)
	}
	s.codes[mandate.ID()] = p
	return nil
}

func (s *MemoryCodeStore) Mandate(_ context.Context, mandateID string) (domain.PaymentMandate, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.live(mandateID)
	if !ok {
		return domain.PaymentMandate{}, false, nil
	}
	return p.mandate, true, nil
}

func (s *MemoryCodeStore) CompareAndDelete(_ context.Context, mandateID, code string) (VerifyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.live(mandateID)
	if !ok {
		return NotFound, nil
	}
	if p.code != code {
		return Mismatch, nil
	}
	delete(s.codes, mandateID)
	return Matched, nil
}

func (s *MemoryCodeStore) Delete(_ context.Context, mandateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, mandateID)
	return nil
}

// live must be called with s.mu held.
func (s *MemoryCodeStore) live(mandateID string) (pendingCode, bool) {
	p, ok := s.codes[mandateID]
	if !ok {
		return pendingCode{}, false
	}
	if p.expired(s.now()) {
		delete(s.codes, mandateID)
		return pendingCode{}, false
	}
	return p, true
}

func (s *MemoryCodeStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}
