// internal/repository/memory/limit_store.go
package memory

import (
	"context"
	"sync"
	"time"

	"autopay-service/internal/domain/payment"
	xerrors "autopay-service/internal/pkg/errors"
	"autopay-service/internal/pkg/money"

	"github.com/oklog/ulid/v2"
)

// LimitStore is the in-process spending-limit store. Reserving without a
// lock across the check and the write is the classic TOCTOU race: two
// concurrent reservations for the same peer could both observe room under
// the limit and jointly exceed it. Every spending operation therefore runs
// under a per-peer mutex held from load to persist. Operations on
// different peers proceed in parallel.
type LimitStore struct {
	mu      sync.Mutex
	records map[string]*payment.SpendingLimit
	locks   map[string]*sync.Mutex
	now     func() time.Time
}

func NewLimitStore() *LimitStore {
	return &LimitStore{
		records: make(map[string]*payment.SpendingLimit),
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *LimitStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *LimitStore) peerLock(peerKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[peerKey]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[peerKey] = lock
	}
	return lock
}

func (s *LimitStore) load(peerKey string) (*payment.SpendingLimit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[peerKey]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

func (s *LimitStore) persist(rec *payment.SpendingLimit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.PeerKey] = &cp
}

func (s *LimitStore) clock() func() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// ----- payment.LimitRepository -----

func (s *LimitStore) Save(ctx context.Context, limit *payment.SpendingLimit) error {
	lock := s.peerLock(limit.PeerKey)
	lock.Lock()
	defer lock.Unlock()
	s.persist(limit)
	return nil
}

func (s *LimitStore) Get(ctx context.Context, peerKey string) (*payment.SpendingLimit, error) {
	rec, ok := s.load(peerKey)
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return rec, nil
}

func (s *LimitStore) List(ctx context.Context) ([]*payment.SpendingLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*payment.SpendingLimit, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *LimitStore) Delete(ctx context.Context, peerKey string) error {
	lock := s.peerLock(peerKey)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[peerKey]; !ok {
		return xerrors.ErrNotFound
	}
	delete(s.records, peerKey)
	return nil
}

// Reset zeroes the running total and restarts the period immediately.
func (s *LimitStore) Reset(ctx context.Context, peerKey string) error {
	lock := s.peerLock(peerKey)
	lock.Lock()
	defer lock.Unlock()

	rec, ok := s.load(peerKey)
	if !ok {
		return xerrors.ErrNotFound
	}
	now := s.clock()()
	rec.CurrentSpent = 0
	rec.PeriodStart = now
	rec.UpdatedAt = now
	s.persist(rec)
	return nil
}

// TryReserve consumes budget up front, before any payment attempt is made.
// A peer with no configured limit cannot reserve at all.
func (s *LimitStore) TryReserve(ctx context.Context, peerKey string, amount int64) (*payment.ReservationToken, error) {
	if amount <= 0 {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "reservation amount must be positive")
	}

	lock := s.peerLock(peerKey)
	lock.Lock()
	defer lock.Unlock()

	rec, ok := s.load(peerKey)
	if !ok {
		return nil, xerrors.ErrNotFound
	}

	now := s.clock()()
	if rec.ShouldReset(now) {
		rec.CurrentSpent = 0
		rec.PeriodStart = now
	}

	total, err := money.CheckedAdd(rec.CurrentSpent, amount)
	if err != nil {
		return nil, err
	}
	if total > rec.LimitAmount {
		return nil, xerrors.ErrLimitExceeded
	}

	rec.CurrentSpent = total
	rec.UpdatedAt = now
	s.persist(rec)

	return &payment.ReservationToken{
		ID:        ulid.Make().String(),
		PeerKey:   peerKey,
		Amount:    amount,
		CreatedAt: now,
	}, nil
}

// Commit is a no-op: the reservation is already durable. It exists so a
// future two-phase variant can distinguish tentative from permanent spend
// without changing caller control flow.
func (s *LimitStore) Commit(ctx context.Context, token *payment.ReservationToken) error {
	return nil
}

// Rollback releases a reservation after a failed payment. Saturating
// arithmetic keeps the total at zero if a period reset landed in between.
func (s *LimitStore) Rollback(ctx context.Context, token *payment.ReservationToken) error {
	lock := s.peerLock(token.PeerKey)
	lock.Lock()
	defer lock.Unlock()

	rec, ok := s.load(token.PeerKey)
	if !ok {
		return xerrors.ErrNotFound
	}

	now := s.clock()()
	rec.CurrentSpent = money.SaturatingSub(rec.CurrentSpent, token.Amount)
	rec.UpdatedAt = now
	s.persist(rec)
	return nil
}
