// internal/service/modification/modification_service_test.go
package modification

import (
	"context"
	"sync"
	"testing"
	"time"

	"autopay-service/internal/domain/subscription"
	xerrors "autopay-service/internal/pkg/errors"
	"autopay-service/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	svc     *ModificationService
	store   *memory.Store
	signed  *memory.SignedStore
	history *memory.HistoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	signed := memory.NewSignedStore(store)
	history := memory.NewHistoryStore(store)
	svc := NewModificationService(store, signed, history, nil, zap.NewNop())
	return &fixture{svc: svc, store: store, signed: signed, history: history}
}

func seedActive(t *testing.T, f *fixture, id string) *subscription.Subscription {
	t.Helper()
	sub := &subscription.Subscription{
		ID:            id,
		SubscriberKey: "subscriber-key",
		ProviderKey:   "provider-key",
		Terms: subscription.Terms{
			Amount:    1000,
			Currency:  "USD",
			Frequency: subscription.Frequency{Kind: subscription.FrequencyMonthly, DayOfMonth: 15},
			Method:    "card",
		},
		StartsAt: time.Now().Add(-time.Hour),
		Status:   subscription.StatusActive,
		Version:  1,
	}
	require.NoError(t, f.store.Save(context.Background(), sub))
	require.NoError(t, f.signed.Save(context.Background(), &subscription.SignedSubscription{
		Subscription: *sub.Clone(),
		ActivatedAt:  time.Now().Add(-time.Hour),
	}))
	return sub
}

func TestUpgradeRequiresStrictlyGreaterAmount(t *testing.T) {
	f := newFixture(t)
	seedActive(t, f, "sub-1")
	ctx := context.Background()

	for _, amount := range []int64{0, 999, 1000} {
		_, err := f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{
			Type:      subscription.ModUpgrade,
			NewAmount: amount,
		})
		assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)
	}

	sub, err := f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{
		Type:      subscription.ModUpgrade,
		NewAmount: 1500,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), sub.Terms.Amount)
	assert.Equal(t, 2, sub.Version)
}

func TestDowngradeRequiresPositiveLesserAmount(t *testing.T) {
	f := newFixture(t)
	seedActive(t, f, "sub-1")
	ctx := context.Background()

	for _, amount := range []int64{0, -5, 1000, 2000} {
		_, err := f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{
			Type:      subscription.ModDowngrade,
			NewAmount: amount,
		})
		assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)
	}

	sub, err := f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{
		Type:      subscription.ModDowngrade,
		NewAmount: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), sub.Terms.Amount)
}

func TestChangeBillingDateBounds(t *testing.T) {
	f := newFixture(t)
	seedActive(t, f, "sub-1")
	ctx := context.Background()

	for _, day := range []int{0, 29, 31} {
		_, err := f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{
			Type:          subscription.ModChangeBillingDate,
			NewBillingDay: day,
		})
		assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)
	}

	sub, err := f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{
		Type:          subscription.ModChangeBillingDate,
		NewBillingDay: 28,
	})
	require.NoError(t, err)
	assert.Equal(t, 28, sub.Terms.Frequency.DayOfMonth)
}

func TestChangeFrequency(t *testing.T) {
	f := newFixture(t)
	seedActive(t, f, "sub-1")
	ctx := context.Background()

	_, err := f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{
		Type: subscription.ModChangeFrequency,
	})
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)

	sub, err := f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{
		Type:         subscription.ModChangeFrequency,
		NewFrequency: &subscription.Frequency{Kind: subscription.FrequencyWeekly},
	})
	require.NoError(t, err)
	assert.Equal(t, subscription.FrequencyWeekly, sub.Terms.Frequency.Kind)
}

func TestCancelSetsEndDate(t *testing.T) {
	f := newFixture(t)
	seedActive(t, f, "sub-1")
	ctx := context.Background()

	sub, err := f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{
		Type: subscription.ModCancel,
	})
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, sub.Status)
	require.NotNil(t, sub.EndsAt)
	assert.WithinDuration(t, time.Now(), *sub.EndsAt, time.Minute)
}

func TestFutureDatedCancelRunsOutThePeriod(t *testing.T) {
	f := newFixture(t)
	seedActive(t, f, "sub-1")
	ctx := context.Background()

	effective := time.Now().Add(10 * 24 * time.Hour)
	sub, err := f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{
		Type:          subscription.ModCancel,
		EffectiveDate: &effective,
	})
	require.NoError(t, err)

	// The agreed period keeps running: the record stays active with the
	// end date set, and active listings still carry it.
	assert.Equal(t, subscription.StatusActive, sub.Status)
	require.NotNil(t, sub.EndsAt)
	assert.WithinDuration(t, effective, *sub.EndsAt, time.Second)

	active, err := f.signed.ListActiveByPeer(ctx, "provider-key")
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.NotNil(t, active[0].Subscription.EndsAt)

	// A past-dated cancel deactivates immediately.
	past := time.Now().Add(-time.Hour)
	sub, err = f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{
		Type:          subscription.ModCancel,
		EffectiveDate: &past,
	})
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, sub.Status)
}

func TestPauseAndResume(t *testing.T) {
	f := newFixture(t)
	seedActive(t, f, "sub-1")
	ctx := context.Background()

	sub, err := f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{Type: subscription.ModPause})
	require.NoError(t, err)
	assert.True(t, sub.IsPaused())

	// The pause is mirrored onto the signed agreement.
	signed, err := f.signed.Get(ctx, "sub-1")
	require.NoError(t, err)
	assert.True(t, signed.Subscription.IsPaused())

	sub, err = f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{Type: subscription.ModResume})
	require.NoError(t, err)
	assert.False(t, sub.IsPaused())
}

func TestFutureDatedAmountChangeIsDeferred(t *testing.T) {
	f := newFixture(t)
	seedActive(t, f, "sub-1")
	ctx := context.Background()

	effective := time.Now().Add(48 * time.Hour)
	sub, err := f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{
		Type:          subscription.ModUpgrade,
		NewAmount:     2000,
		EffectiveDate: &effective,
	})
	require.NoError(t, err)

	// Terms and version unchanged until the date arrives.
	assert.Equal(t, int64(1000), sub.Terms.Amount)
	assert.Equal(t, 1, sub.Version)

	records, err := f.svc.History(ctx, "sub-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, subscription.OutcomeDeferred, records[0].Outcome)
}

func TestHistoryRecordsEveryOutcome(t *testing.T) {
	f := newFixture(t)
	seedActive(t, f, "sub-1")
	ctx := context.Background()

	_, err := f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{
		Type:      subscription.ModUpgrade,
		NewAmount: 1500,
	})
	require.NoError(t, err)

	_, err = f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{
		Type:      subscription.ModUpgrade,
		NewAmount: 100,
	})
	require.Error(t, err)

	records, err := f.svc.History(ctx, "sub-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, subscription.OutcomeApplied, records[0].Outcome)
	assert.Equal(t, 2, records[0].Version)
	require.NotNil(t, records[0].TermsSnapshot)
	assert.Equal(t, int64(1500), records[0].TermsSnapshot.Amount)

	assert.Equal(t, subscription.OutcomeRejected, records[1].Outcome)
	assert.NotEmpty(t, records[1].Error)
}

func TestConcurrentModificationsSerialize(t *testing.T) {
	f := newFixture(t)
	seedActive(t, f, "sub-1")
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		amount := int64(1001 + i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Some of these lose the strictly-greater race and get rejected;
			// the point is that every applied one bumps the version exactly
			// once.
			_, _ = f.svc.Request(ctx, "sub-1", "subscriber-key", &subscription.ModifyRequest{
				Type:      subscription.ModUpgrade,
				NewAmount: amount,
			})
		}()
	}
	wg.Wait()

	sub, err := f.store.Get(ctx, "sub-1")
	require.NoError(t, err)

	records, err := f.svc.History(ctx, "sub-1")
	require.NoError(t, err)

	applied := 0
	for _, rec := range records {
		if rec.Outcome == subscription.OutcomeApplied {
			applied++
		}
	}
	assert.Equal(t, 1+applied, sub.Version)
	assert.Len(t, records, workers)
}

func TestModifyUnknownSubscription(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Request(context.Background(), "missing", "subscriber-key", &subscription.ModifyRequest{
		Type:      subscription.ModUpgrade,
		NewAmount: 2000,
	})
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}
