// internal/service/autopay/autopay_service.go
package autopay

import (
	"context"
	"errors"
	"time"

	"autopay-service/internal/domain/payment"
	"autopay-service/internal/domain/subscription"
	xerrors "autopay-service/internal/pkg/errors"
	"autopay-service/internal/service/limits"

	"go.uber.org/zap"
)

// Decision is the outcome of the eligibility check. When Allowed is false,
// Reason says which gate refused; the request then waits for a human.
type Decision struct {
	Allowed      bool                             `json:"allowed"`
	Reason       string                           `json:"reason,omitempty"`
	Subscription *subscription.SignedSubscription `json:"subscription,omitempty"`
}

// AutoPayService decides whether an incoming payment request may execute
// unattended, and manages the per-subscription auto-pay rules.
type AutoPayService struct {
	signedRepo  subscription.SignedRepository
	ruleRepo    payment.RuleRepository
	requestRepo payment.RequestRepository
	limits      *limits.LimitsService
	logger      *zap.Logger
}

func NewAutoPayService(
	signedRepo subscription.SignedRepository,
	ruleRepo payment.RuleRepository,
	requestRepo payment.RequestRepository,
	limitsService *limits.LimitsService,
	logger *zap.Logger,
) *AutoPayService {
	return &AutoPayService{
		signedRepo:  signedRepo,
		ruleRepo:    ruleRepo,
		requestRepo: requestRepo,
		limits:      limitsService,
		logger:      logger,
	}
}

// Enable turns auto-pay on for a subscription, creating the rule lazily on
// first configuration.
func (s *AutoPayService) Enable(ctx context.Context, subscriptionID string, input *payment.ConfigureAutoPayInput) (*payment.AutoPayRule, error) {
	signed, err := s.signedRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	rule, err := s.ruleRepo.GetBySubscription(ctx, subscriptionID)
	if errors.Is(err, xerrors.ErrNotFound) {
		rule = &payment.AutoPayRule{
			SubscriptionID: subscriptionID,
			ProviderKey:    signed.Subscription.ProviderKey,
			Method:         signed.Subscription.Terms.Method,
		}
	} else if err != nil {
		return nil, err
	}

	rule.Enabled = true
	rule.RequireConfirmation = input.RequireConfirmation
	rule.MaxAmountPerPayment = input.MaxAmountPerPayment
	if err := s.ruleRepo.Save(ctx, rule); err != nil {
		return nil, err
	}
	s.logger.Info("autopay enabled",
		zap.String("subscription_id", subscriptionID),
		zap.Bool("require_confirmation", rule.RequireConfirmation))
	return rule, nil
}

// Disable turns auto-pay off. The rule stays around; rules are never
// auto-deleted.
func (s *AutoPayService) Disable(ctx context.Context, subscriptionID string) (*payment.AutoPayRule, error) {
	rule, err := s.ruleRepo.GetBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	rule.Enabled = false
	if err := s.ruleRepo.Save(ctx, rule); err != nil {
		return nil, err
	}
	s.logger.Info("autopay disabled", zap.String("subscription_id", subscriptionID))
	return rule, nil
}

func (s *AutoPayService) GetRule(ctx context.Context, subscriptionID string) (*payment.AutoPayRule, error) {
	return s.ruleRepo.GetBySubscription(ctx, subscriptionID)
}

// ShouldAutoPay runs the five gates, all of which must pass: a matching
// active agreement with a payment currently due, an enabled rule, the
// per-payment cap, the spending-limit pre-check, and the confirmation
// flag. The pre-check here does not reserve anything; the settlement
// executor's TryReserve remains the enforcement point.
func (s *AutoPayService) ShouldAutoPay(ctx context.Context, req *payment.Request) (*Decision, error) {
	signed, err := s.matchSubscription(ctx, req)
	if err != nil {
		return nil, err
	}
	if signed == nil {
		return &Decision{Reason: "no matching active subscription with a payment due"}, nil
	}

	rule, err := s.ruleRepo.GetBySubscription(ctx, signed.Subscription.ID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return &Decision{Reason: "autopay not configured for this subscription", Subscription: signed}, nil
	}
	if err != nil {
		return nil, err
	}
	if !rule.Enabled {
		return &Decision{Reason: "autopay disabled", Subscription: signed}, nil
	}

	if rule.MaxAmountPerPayment > 0 && req.Amount > rule.MaxAmountPerPayment {
		return &Decision{Reason: "amount exceeds per-payment cap", Subscription: signed}, nil
	}

	if err := s.limits.PreCheck(ctx, req.PeerKey, req.Amount); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return &Decision{Reason: "no spending limit configured for peer", Subscription: signed}, nil
		}
		if errors.Is(err, xerrors.ErrLimitExceeded) {
			return &Decision{Reason: "peer spending limit would be exceeded", Subscription: signed}, nil
		}
		return nil, err
	}

	if rule.RequireConfirmation {
		return &Decision{Reason: "rule requires human confirmation", Subscription: signed}, nil
	}

	return &Decision{Allowed: true, Subscription: signed}, nil
}

// matchSubscription finds an active agreement with the requesting peer
// whose terms cover the request and under which a payment is currently due.
func (s *AutoPayService) matchSubscription(ctx context.Context, req *payment.Request) (*subscription.SignedSubscription, error) {
	candidates, err := s.signedRepo.ListActiveByPeer(ctx, req.PeerKey)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, signed := range candidates {
		sub := signed.Subscription
		if sub.ProviderKey != req.PeerKey {
			continue
		}
		if sub.IsPaused() {
			continue
		}
		terms := sub.Terms
		if terms.Method != req.Method || terms.Currency != req.Currency {
			continue
		}
		if !amountCovered(terms, req.Amount) {
			continue
		}
		due, err := s.paymentDue(ctx, &sub, now)
		if err != nil {
			return nil, err
		}
		if !due {
			continue
		}
		return signed, nil
	}
	return nil, nil
}

func amountCovered(terms subscription.Terms, amount int64) bool {
	if amount == terms.Amount {
		return true
	}
	return terms.MaxAmountPerPeriod > 0 && amount <= terms.MaxAmountPerPeriod
}

// paymentDue checks the subscription's frequency against the last
// fulfilled payment. With no fulfilled payment yet, the first one is due
// once the subscription has started.
func (s *AutoPayService) paymentDue(ctx context.Context, sub *subscription.Subscription, now time.Time) (bool, error) {
	fulfilled, err := s.requestRepo.List(ctx, payment.RequestListFilters{
		PeerKey:  sub.ProviderKey,
		Statuses: []payment.RequestStatus{payment.RequestFulfilled},
	})
	if err != nil {
		return false, err
	}

	var lastPaid time.Time
	for _, req := range fulfilled {
		if req.SubscriptionID != sub.ID {
			continue
		}
		if req.UpdatedAt.After(lastPaid) {
			lastPaid = req.UpdatedAt
		}
	}

	if lastPaid.IsZero() {
		return !now.Before(sub.StartsAt), nil
	}
	return !now.Before(sub.Terms.Frequency.NextDue(lastPaid)), nil
}
