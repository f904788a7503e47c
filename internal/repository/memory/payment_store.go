// internal/repository/memory/payment_store.go
package memory

import (
	"context"

	"autopay-service/internal/domain/payment"
	xerrors "autopay-service/internal/pkg/errors"
)

// RequestStore persists payment requests.
type RequestStore struct {
	store *Store
}

func NewRequestStore(store *Store) *RequestStore {
	return &RequestStore{store: store}
}

func (s *RequestStore) Save(ctx context.Context, req *payment.Request) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	cp := *req
	s.store.requests[req.ID] = &cp
	return nil
}

func (s *RequestStore) Get(ctx context.Context, id string) (*payment.Request, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	req, ok := s.store.requests[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *RequestStore) List(ctx context.Context, filters payment.RequestListFilters) ([]*payment.Request, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	var out []*payment.Request
	for _, req := range s.store.requests {
		if filters.PeerKey != "" && req.PeerKey != filters.PeerKey {
			continue
		}
		if len(filters.Statuses) > 0 && !containsRequestStatus(filters.Statuses, req.Status) {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}
	return out, nil
}

func containsRequestStatus(statuses []payment.RequestStatus, status payment.RequestStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// RuleStore persists auto-pay rules keyed by subscription id.
type RuleStore struct {
	store *Store
}

func NewRuleStore(store *Store) *RuleStore {
	return &RuleStore{store: store}
}

func (s *RuleStore) Save(ctx context.Context, rule *payment.AutoPayRule) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	cp := *rule
	s.store.rules[rule.SubscriptionID] = &cp
	return nil
}

func (s *RuleStore) GetBySubscription(ctx context.Context, subscriptionID string) (*payment.AutoPayRule, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	rule, ok := s.store.rules[subscriptionID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *rule
	return &cp, nil
}
