// internal/service/modification/modification_service.go
package modification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"autopay-service/internal/domain/subscription"
	xerrors "autopay-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// EventPublisher pushes modification events to connected UIs.
type EventPublisher interface {
	Publish(event string, payload any)
}

// ModificationService validates and applies structural changes to an
// agreement's terms and maintains the append-only history. Application is
// a pure transform on a copy; concurrent modifications to the same
// subscription are serialized by a per-subscription lock so the
// last-writer-wins save never loses an update.
type ModificationService struct {
	subRepo     subscription.Repository
	signedRepo  subscription.SignedRepository
	historyRepo subscription.HistoryRepository
	events      EventPublisher
	logger      *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewModificationService(
	subRepo subscription.Repository,
	signedRepo subscription.SignedRepository,
	historyRepo subscription.HistoryRepository,
	events EventPublisher,
	logger *zap.Logger,
) *ModificationService {
	return &ModificationService{
		subRepo:     subRepo,
		signedRepo:  signedRepo,
		historyRepo: historyRepo,
		events:      events,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
	}
}

// Validate enforces the type-specific invariants of a modification against
// the current subscription state. It never mutates anything.
func Validate(mod *subscription.ModificationRequest, sub *subscription.Subscription) error {
	switch mod.Type {
	case subscription.ModUpgrade:
		if mod.NewAmount <= sub.Terms.Amount {
			return fmt.Errorf("%w: upgrade requires amount greater than %d", xerrors.ErrInvalidArgument, sub.Terms.Amount)
		}
	case subscription.ModDowngrade:
		if mod.NewAmount <= 0 || mod.NewAmount >= sub.Terms.Amount {
			return fmt.Errorf("%w: downgrade requires positive amount less than %d", xerrors.ErrInvalidArgument, sub.Terms.Amount)
		}
	case subscription.ModChangeMethod:
		if mod.NewMethod == "" {
			return fmt.Errorf("%w: new payment method must not be empty", xerrors.ErrInvalidArgument)
		}
	case subscription.ModChangeBillingDate:
		// Capping at 28 sidesteps month-length edge cases entirely.
		if mod.NewBillingDay < 1 || mod.NewBillingDay > 28 {
			return fmt.Errorf("%w: billing day must be in [1,28], got %d", xerrors.ErrInvalidArgument, mod.NewBillingDay)
		}
	case subscription.ModChangeFrequency:
		if mod.NewFrequency == nil {
			return fmt.Errorf("%w: new frequency is required", xerrors.ErrInvalidArgument)
		}
		if err := mod.NewFrequency.Validate(); err != nil {
			return err
		}
	case subscription.ModCancel, subscription.ModPause, subscription.ModResume:
		// No parameters to validate.
	default:
		return fmt.Errorf("%w: unknown modification type %q", xerrors.ErrInvalidArgument, mod.Type)
	}
	return nil
}

// Apply produces the subscription resulting from the modification. The
// input is never mutated. Amount changes with a future effective date
// leave the terms untouched and report deferred=true; the stored request
// must be re-applied by a caller once due.
func Apply(mod *subscription.ModificationRequest, sub *subscription.Subscription, now time.Time) (out *subscription.Subscription, deferred bool, err error) {
	if err := Validate(mod, sub); err != nil {
		return nil, false, err
	}

	next := sub.Clone()
	switch mod.Type {
	case subscription.ModUpgrade, subscription.ModDowngrade:
		if mod.EffectiveDate != nil && mod.EffectiveDate.After(now) {
			return next, true, nil
		}
		next.Terms.Amount = mod.NewAmount
	case subscription.ModChangeMethod:
		next.Terms.Method = mod.NewMethod
	case subscription.ModChangeBillingDate:
		if next.Terms.Frequency.Kind == subscription.FrequencyYearly {
			next.Terms.Frequency.Day = mod.NewBillingDay
		} else {
			next.Terms.Frequency.Kind = subscription.FrequencyMonthly
			next.Terms.Frequency.DayOfMonth = mod.NewBillingDay
		}
	case subscription.ModChangeFrequency:
		next.Terms.Frequency = *mod.NewFrequency
	case subscription.ModCancel:
		ends := now
		if mod.EffectiveDate != nil && mod.EffectiveDate.After(now) {
			ends = *mod.EffectiveDate
		}
		next.EndsAt = &ends
		// A future-dated cancel runs out the already-agreed period: the
		// record stays active and listings drop it once ends_at passes.
		if !ends.After(now) {
			next.Status = subscription.StatusCancelled
		}
	case subscription.ModPause:
		if next.Metadata == nil {
			next.Metadata = make(map[string]interface{})
		}
		next.Metadata[subscription.MetaPaused] = true
	case subscription.ModResume:
		if next.Metadata == nil {
			next.Metadata = make(map[string]interface{})
		}
		next.Metadata[subscription.MetaPaused] = false
	}
	return next, false, nil
}

// Request applies a modification to a stored subscription and records the
// attempt in the history whatever the outcome. A successful structural
// change bumps the version and snapshots the resulting terms.
func (s *ModificationService) Request(ctx context.Context, subscriptionID, requestedBy string, input *subscription.ModifyRequest) (*subscription.Subscription, error) {
	lock := s.subscriptionLock(subscriptionID)
	lock.Lock()
	defer lock.Unlock()

	sub, err := s.subRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	mod := &subscription.ModificationRequest{
		ID:             ulid.Make().String(),
		SubscriptionID: subscriptionID,
		Type:           input.Type,
		RequestedBy:    requestedBy,
		NewAmount:      input.NewAmount,
		NewMethod:      input.NewMethod,
		NewBillingDay:  input.NewBillingDay,
		NewFrequency:   input.NewFrequency,
		EffectiveDate:  input.EffectiveDate,
		RequestedAt:    time.Now(),
	}

	next, deferred, applyErr := Apply(mod, sub, time.Now())
	if applyErr != nil {
		s.record(ctx, mod, subscription.OutcomeRejected, applyErr.Error(), 0, nil)
		return nil, applyErr
	}
	if deferred {
		s.record(ctx, mod, subscription.OutcomeDeferred, "", 0, nil)
		s.logger.Info("modification deferred until effective date",
			zap.String("subscription_id", subscriptionID),
			zap.String("type", string(mod.Type)),
			zap.Timep("effective_date", mod.EffectiveDate))
		return sub, nil
	}

	next.Version = sub.Version + 1
	if err := s.subRepo.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to persist modified subscription: %w", err)
	}
	if err := s.syncSigned(ctx, next); err != nil {
		return nil, err
	}

	snapshot := next.Terms
	s.record(ctx, mod, subscription.OutcomeApplied, "", next.Version, &snapshot)

	s.logger.Info("modification applied",
		zap.String("subscription_id", subscriptionID),
		zap.String("type", string(mod.Type)),
		zap.Int("version", next.Version))
	if s.events != nil {
		s.events.Publish("subscription.modified", next)
	}
	return next, nil
}

// History lists the audit trail for a subscription, oldest first.
func (s *ModificationService) History(ctx context.Context, subscriptionID string) ([]*subscription.ModificationRecord, error) {
	return s.historyRepo.ListBySubscription(ctx, subscriptionID)
}

// syncSigned mirrors the new terms onto the stored signed agreement, which
// is what the decision engine reads on the next request.
func (s *ModificationService) syncSigned(ctx context.Context, sub *subscription.Subscription) error {
	signed, err := s.signedRepo.Get(ctx, sub.ID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	signed.Subscription = *sub.Clone()
	if err := s.signedRepo.Save(ctx, signed); err != nil {
		return fmt.Errorf("failed to sync signed subscription: %w", err)
	}
	return nil
}

// record appends to the history. History failures are logged, not
// propagated: the modification outcome already happened.
func (s *ModificationService) record(ctx context.Context, mod *subscription.ModificationRequest, outcome subscription.ModificationOutcome, errMsg string, version int, snapshot *subscription.Terms) {
	rec := &subscription.ModificationRecord{
		ID:             ulid.Make().String(),
		SubscriptionID: mod.SubscriptionID,
		Request:        *mod,
		Outcome:        outcome,
		Error:          errMsg,
		Version:        version,
		TermsSnapshot:  snapshot,
		RecordedAt:     time.Now(),
	}
	if err := s.historyRepo.Append(ctx, rec); err != nil {
		s.logger.Error("failed to append modification history",
			zap.String("subscription_id", mod.SubscriptionID), zap.Error(err))
	}
}

func (s *ModificationService) subscriptionLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}
