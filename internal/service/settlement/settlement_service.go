// internal/service/settlement/settlement_service.go
package settlement

import (
	"context"
	"fmt"
	"time"

	"autopay-service/internal/domain/payment"
	xerrors "autopay-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// DefaultPaymentTimeout bounds the external payment call. A stuck executor
// is treated as a failed payment, which triggers rollback.
const DefaultPaymentTimeout = 60 * time.Second

// PaymentExecutor is the external collaborator that actually moves funds.
// It receives a provisional receipt and returns the settled one.
type PaymentExecutor interface {
	InitiatePayment(ctx context.Context, channel string, provisional *payment.Receipt) (*payment.Receipt, error)
}

// EventPublisher pushes settlement events to connected UIs.
type EventPublisher interface {
	Publish(event string, payload any)
}

// SettlementService orchestrates reservation, payment and commit-or-
// rollback. The budget is consumed optimistically before the payment
// attempt; a failed payment restores the limit to exactly the state it
// would have had if the attempt never happened. The per-peer lock inside
// TryReserve is released when the reservation persists and never spans the
// payment call, so other reservations for the same peer proceed while a
// payment is in flight.
type SettlementService struct {
	limitRepo      payment.LimitRepository
	requestRepo    payment.RequestRepository
	executor       PaymentExecutor
	events         EventPublisher
	paymentTimeout time.Duration
	logger         *zap.Logger
}

func NewSettlementService(
	limitRepo payment.LimitRepository,
	requestRepo payment.RequestRepository,
	executor PaymentExecutor,
	events EventPublisher,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		limitRepo:      limitRepo,
		requestRepo:    requestRepo,
		executor:       executor,
		events:         events,
		paymentTimeout: DefaultPaymentTimeout,
		logger:         logger,
	}
}

// SetPaymentTimeout overrides the external payment deadline.
func (s *SettlementService) SetPaymentTimeout(d time.Duration) {
	if d > 0 {
		s.paymentTimeout = d
	}
}

// ExecuteAutoPay settles a pending request: reserve, pay, then commit or
// roll back. Reservation failures surface synchronously and leave the
// request pending; the caller must not blindly retry.
func (s *SettlementService) ExecuteAutoPay(ctx context.Context, requestID string) (*payment.Receipt, error) {
	req, err := s.requestRepo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != payment.RequestPending {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "request is not pending")
	}

	token, err := s.limitRepo.TryReserve(ctx, req.PeerKey, req.Amount)
	if err != nil {
		s.logger.Warn("reservation refused",
			zap.String("request_id", req.ID),
			zap.String("peer", req.PeerKey),
			zap.Int64("amount", req.Amount),
			zap.Error(err))
		return nil, err
	}

	provisional := &payment.Receipt{
		ID:        ulid.Make().String(),
		RequestID: req.ID,
		PeerKey:   req.PeerKey,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Channel:   req.Method,
	}

	payCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	receipt, payErr := s.executor.InitiatePayment(payCtx, req.Method, provisional)
	cancel()

	if payErr != nil {
		return nil, s.failAndRollback(ctx, req, token, payErr)
	}

	if err := s.limitRepo.Commit(ctx, token); err != nil {
		// Commit is a no-op in the base design; a failure here still means
		// the books and reality disagree.
		s.logger.Error("reservation commit failed after successful payment",
			zap.String("request_id", req.ID), zap.Error(err))
		return nil, fmt.Errorf("payment settled but commit failed: %w", err)
	}

	req.Status = payment.RequestFulfilled
	req.FailureReason = ""
	if err := s.requestRepo.Save(ctx, req); err != nil {
		return nil, fmt.Errorf("payment settled but request update failed: %w", err)
	}

	s.logger.Info("autopay settled",
		zap.String("request_id", req.ID),
		zap.String("receipt_id", receipt.ID),
		zap.Int64("amount", req.Amount))
	if s.events != nil {
		s.events.Publish("payment.fulfilled", receipt)
	}
	return receipt, nil
}

// failAndRollback releases the reservation after a failed payment. A
// rollback failure leaves current_spent overstated and is surfaced as a
// fatal inconsistency, never swallowed.
func (s *SettlementService) failAndRollback(ctx context.Context, req *payment.Request, token *payment.ReservationToken, payErr error) error {
	if rbErr := s.limitRepo.Rollback(ctx, token); rbErr != nil {
		s.logger.Error("FATAL: rollback failed after payment failure, spending total overstated",
			zap.String("request_id", req.ID),
			zap.String("token_id", token.ID),
			zap.Int64("amount", token.Amount),
			zap.NamedError("payment_error", payErr),
			zap.Error(rbErr))
		return fmt.Errorf("payment failed (%v) and rollback failed, limit state inconsistent: %w", payErr, rbErr)
	}

	req.Status = payment.RequestFailed
	req.FailureReason = payErr.Error()
	if err := s.requestRepo.Save(ctx, req); err != nil {
		s.logger.Error("failed to persist request failure", zap.String("request_id", req.ID), zap.Error(err))
	}

	s.logger.Warn("autopay payment failed, reservation rolled back",
		zap.String("request_id", req.ID), zap.Error(payErr))
	if s.events != nil {
		s.events.Publish("payment.failed", req)
	}
	return fmt.Errorf("payment execution failed: %w", payErr)
}
