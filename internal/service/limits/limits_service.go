// internal/service/limits/limits_service.go
package limits

import (
	"context"
	"time"

	"autopay-service/internal/domain/payment"
	xerrors "autopay-service/internal/pkg/errors"
	"autopay-service/internal/pkg/money"

	"go.uber.org/zap"
)

// LimitsService manages per-peer spending limits. The mutating reservation
// path lives in the repository; this layer adds validation and the
// non-mutating pre-check the decision engine uses.
type LimitsService struct {
	limitRepo payment.LimitRepository
	logger    *zap.Logger
}

func NewLimitsService(limitRepo payment.LimitRepository, logger *zap.Logger) *LimitsService {
	return &LimitsService{limitRepo: limitRepo, logger: logger}
}

// Set creates or replaces a peer's limit. Replacing restarts the period
// with a zero running total.
func (s *LimitsService) Set(ctx context.Context, input *payment.SetLimitInput) (*payment.SpendingLimit, error) {
	if input.PeerKey == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "peer key must not be empty")
	}
	if input.LimitAmount <= 0 {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "limit amount must be positive")
	}
	if !input.ResetPeriod.Valid() {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "unknown reset period")
	}

	limit := &payment.SpendingLimit{
		PeerKey:      input.PeerKey,
		LimitAmount:  input.LimitAmount,
		ResetPeriod:  input.ResetPeriod,
		CurrentSpent: 0,
		PeriodStart:  time.Now(),
	}
	if err := s.limitRepo.Save(ctx, limit); err != nil {
		return nil, err
	}
	s.logger.Info("spending limit set",
		zap.String("peer", input.PeerKey),
		zap.Int64("limit", input.LimitAmount),
		zap.String("period", string(input.ResetPeriod)))
	return limit, nil
}

func (s *LimitsService) Get(ctx context.Context, peerKey string) (*payment.SpendingLimit, error) {
	return s.limitRepo.Get(ctx, peerKey)
}

func (s *LimitsService) List(ctx context.Context) ([]*payment.SpendingLimit, error) {
	return s.limitRepo.List(ctx)
}

func (s *LimitsService) Delete(ctx context.Context, peerKey string) error {
	return s.limitRepo.Delete(ctx, peerKey)
}

func (s *LimitsService) Reset(ctx context.Context, peerKey string) error {
	return s.limitRepo.Reset(ctx, peerKey)
}

// PreCheck reports whether a reservation of `amount` would fit right now,
// without reserving anything. A missing limit blocks auto-pay entirely
// rather than defaulting to unlimited. The answer can go stale the moment
// it is returned; the mutating TryReserve remains the authority.
func (s *LimitsService) PreCheck(ctx context.Context, peerKey string, amount int64) error {
	limit, err := s.limitRepo.Get(ctx, peerKey)
	if err != nil {
		return err
	}

	spent := limit.CurrentSpent
	if limit.ShouldReset(time.Now()) {
		spent = 0
	}
	total, err := money.CheckedAdd(spent, amount)
	if err != nil {
		return err
	}
	if total > limit.LimitAmount {
		return xerrors.ErrLimitExceeded
	}
	return nil
}
