// internal/repository/memory/history_store.go
package memory

import (
	"context"

	"autopay-service/internal/domain/subscription"
)

// HistoryStore is the append-only modification audit trail.
type HistoryStore struct {
	store *Store
}

func NewHistoryStore(store *Store) *HistoryStore {
	return &HistoryStore{store: store}
}

func (s *HistoryStore) Append(ctx context.Context, rec *subscription.ModificationRecord) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	cp := *rec
	s.store.history[rec.SubscriptionID] = append(s.store.history[rec.SubscriptionID], &cp)
	return nil
}

func (s *HistoryStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]*subscription.ModificationRecord, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	records := s.store.history[subscriptionID]
	out := make([]*subscription.ModificationRecord, len(records))
	for i, rec := range records {
		cp := *rec
		out[i] = &cp
	}
	return out, nil
}
