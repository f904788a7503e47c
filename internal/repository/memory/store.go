// internal/repository/memory/store.go
package memory

import (
	"context"
	"sync"

	"autopay-service/internal/domain/payment"
	"autopay-service/internal/domain/subscription"
	xerrors "autopay-service/internal/pkg/errors"
)

// Store is the in-process storage backend. It implements every repository
// interface the services consume, so a node can run without Postgres and
// the service tests can exercise real persistence semantics.
type Store struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription.Subscription
	signed        map[string]*subscription.SignedSubscription
	history       map[string][]*subscription.ModificationRecord
	requests      map[string]*payment.Request
	rules         map[string]*payment.AutoPayRule
}

func NewStore() *Store {
	return &Store{
		subscriptions: make(map[string]*subscription.Subscription),
		signed:        make(map[string]*subscription.SignedSubscription),
		history:       make(map[string][]*subscription.ModificationRecord),
		requests:      make(map[string]*payment.Request),
		rules:         make(map[string]*payment.AutoPayRule),
	}
}

// ----- subscription.Repository -----

func (s *Store) Save(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.ID] = sub.Clone()
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return sub.Clone(), nil
}

func (s *Store) List(ctx context.Context, filters subscription.ListFilters) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*subscription.Subscription
	for _, sub := range s.subscriptions {
		if filters.PeerKey != "" && sub.SubscriberKey != filters.PeerKey && sub.ProviderKey != filters.PeerKey {
			continue
		}
		if len(filters.Statuses) > 0 && !containsStatus(filters.Statuses, sub.Status) {
			continue
		}
		out = append(out, sub.Clone())
	}
	return out, nil
}

func containsStatus(statuses []subscription.Status, status subscription.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
