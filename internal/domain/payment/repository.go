// internal/domain/payment/repository.go
package payment

import "context"

// RequestListFilters narrows payment request listings.
type RequestListFilters struct {
	PeerKey  string
	Statuses []RequestStatus
	Limit    int
	Offset   int
}

type RequestRepository interface {
	Save(ctx context.Context, req *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	List(ctx context.Context, filters RequestListFilters) ([]*Request, error)
}

type RuleRepository interface {
	Save(ctx context.Context, rule *AutoPayRule) error
	GetBySubscription(ctx context.Context, subscriptionID string) (*AutoPayRule, error)
}

// LimitRepository is the atomic spending-limit store. TryReserve must hold
// a peer-scoped exclusive lock across the whole check-then-write sequence;
// the lock never spans an external payment call.
type LimitRepository interface {
	Save(ctx context.Context, limit *SpendingLimit) error
	Get(ctx context.Context, peerKey string) (*SpendingLimit, error)
	List(ctx context.Context) ([]*SpendingLimit, error)
	Delete(ctx context.Context, peerKey string) error
	Reset(ctx context.Context, peerKey string) error

	TryReserve(ctx context.Context, peerKey string, amount int64) (*ReservationToken, error)
	Commit(ctx context.Context, token *ReservationToken) error
	Rollback(ctx context.Context, token *ReservationToken) error
}
