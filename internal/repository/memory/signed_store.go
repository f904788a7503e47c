// internal/repository/memory/signed_store.go
package memory

import (
	"context"
	"time"

	"autopay-service/internal/domain/subscription"
	xerrors "autopay-service/internal/pkg/errors"
)

// SignedStore holds fully signed agreements.
type SignedStore struct {
	store *Store
}

func NewSignedStore(store *Store) *SignedStore {
	return &SignedStore{store: store}
}

func (s *SignedStore) Save(ctx context.Context, signed *subscription.SignedSubscription) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	cp := *signed
	cp.Subscription = *signed.Subscription.Clone()
	s.store.signed[signed.Subscription.ID] = &cp
	return nil
}

func (s *SignedStore) Get(ctx context.Context, id string) (*subscription.SignedSubscription, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	signed, ok := s.store.signed[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *signed
	cp.Subscription = *signed.Subscription.Clone()
	return &cp, nil
}

// ListActiveByPeer returns active agreements where the peer is on either
// side, skipping those already past their end date.
func (s *SignedStore) ListActiveByPeer(ctx context.Context, peerKey string) ([]*subscription.SignedSubscription, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	now := time.Now()
	var out []*subscription.SignedSubscription
	for _, signed := range s.store.signed {
		sub := signed.Subscription
		if sub.SubscriberKey != peerKey && sub.ProviderKey != peerKey {
			continue
		}
		if sub.Status != subscription.StatusActive {
			continue
		}
		if sub.EndsAt != nil && sub.EndsAt.Before(now) {
			continue
		}
		cp := *signed
		cp.Subscription = *signed.Subscription.Clone()
		out = append(out, &cp)
	}
	return out, nil
}
