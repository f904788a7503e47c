// internal/service/settlement/requests.go
package settlement

import (
	"context"

	"autopay-service/internal/domain/payment"
	xerrors "autopay-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// CreateRequest registers an incoming payment request as pending. Nothing
// is reserved or paid yet; the decision engine and executor act on it
// afterwards.
func (s *SettlementService) CreateRequest(ctx context.Context, input *payment.CreateRequestInput) (*payment.Request, error) {
	if input.Amount <= 0 {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "amount must be positive")
	}
	if input.Currency == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "currency must not be empty")
	}
	if input.Method == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "payment method must not be empty")
	}

	req := &payment.Request{
		ID:          ulid.Make().String(),
		PeerKey:     input.PeerKey,
		Method:      input.Method,
		Currency:    input.Currency,
		Amount:      input.Amount,
		Description: input.Description,
		Status:      payment.RequestPending,
	}
	if err := s.requestRepo.Save(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info("payment request registered",
		zap.String("request_id", req.ID),
		zap.String("peer", req.PeerKey),
		zap.Int64("amount", req.Amount))
	return req, nil
}

func (s *SettlementService) GetRequest(ctx context.Context, id string) (*payment.Request, error) {
	return s.requestRepo.Get(ctx, id)
}

func (s *SettlementService) ListRequests(ctx context.Context, filters payment.RequestListFilters) ([]*payment.Request, error) {
	return s.requestRepo.List(ctx, filters)
}

// AttachSubscription links a matched subscription to a request so the
// audit trail shows which agreement authorized it.
func (s *SettlementService) AttachSubscription(ctx context.Context, requestID, subscriptionID string) error {
	req, err := s.requestRepo.Get(ctx, requestID)
	if err != nil {
		return err
	}
	req.SubscriptionID = subscriptionID
	return s.requestRepo.Save(ctx, req)
}
