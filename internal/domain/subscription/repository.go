// internal/domain/subscription/repository.go
package subscription

import "context"

// ListFilters narrows subscription listings. Empty fields match everything.
type ListFilters struct {
	PeerKey  string
	Statuses []Status
	Limit    int
	Offset   int
}

// Repository persists plain (possibly still unsigned) subscriptions.
type Repository interface {
	Save(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context, filters ListFilters) ([]*Subscription, error)
}

// SignedRepository persists fully signed agreements.
type SignedRepository interface {
	Save(ctx context.Context, signed *SignedSubscription) error
	Get(ctx context.Context, id string) (*SignedSubscription, error)
	ListActiveByPeer(ctx context.Context, peerKey string) ([]*SignedSubscription, error)
}

// HistoryRepository is the append-only modification audit trail.
type HistoryRepository interface {
	Append(ctx context.Context, rec *ModificationRecord) error
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*ModificationRecord, error)
}
