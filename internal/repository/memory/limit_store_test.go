// internal/repository/memory/limit_store_test.go
package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"autopay-service/internal/domain/payment"
	xerrors "autopay-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimit(peer string, amount int64) *payment.SpendingLimit {
	now := time.Now()
	return &payment.SpendingLimit{
		PeerKey:     peer,
		LimitAmount: amount,
		ResetPeriod: payment.ResetMonthly,
		PeriodStart: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestTryReserveNoLimitConfigured(t *testing.T) {
	store := NewLimitStore()
	_, err := store.TryReserve(context.Background(), "unknown", 100)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestTryReserveExactBoundary(t *testing.T) {
	store := NewLimitStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newTestLimit("peer-a", 1000)))

	// Spending exactly up to the limit is allowed.
	_, err := store.TryReserve(ctx, "peer-a", 1000)
	require.NoError(t, err)

	// One more unit is not.
	_, err = store.TryReserve(ctx, "peer-a", 1)
	assert.ErrorIs(t, err, xerrors.ErrLimitExceeded)
}

func TestTryReserveRejectsNonPositive(t *testing.T) {
	store := NewLimitStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newTestLimit("peer-a", 1000)))

	_, err := store.TryReserve(ctx, "peer-a", 0)
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)
	_, err = store.TryReserve(ctx, "peer-a", -5)
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)
}

func TestReserveRollbackRoundTrip(t *testing.T) {
	store := NewLimitStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newTestLimit("peer-a", 1000)))

	// 1000 limit, 600 spent, 500 reservation fails.
	_, err := store.TryReserve(ctx, "peer-a", 600)
	require.NoError(t, err)
	_, err = store.TryReserve(ctx, "peer-a", 500)
	assert.ErrorIs(t, err, xerrors.ErrLimitExceeded)

	// A 300 reservation fits; once it rolls back the freed budget plus the
	// remaining headroom covers a 400 reservation up to the cap.
	token, err := store.TryReserve(ctx, "peer-a", 300)
	require.NoError(t, err)
	require.NoError(t, store.Rollback(ctx, token))

	_, err = store.TryReserve(ctx, "peer-a", 400)
	require.NoError(t, err)

	rec, err := store.Get(ctx, "peer-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), rec.CurrentSpent)
}

func TestRollbackNeverGoesNegative(t *testing.T) {
	store := NewLimitStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newTestLimit("peer-a", 1000)))

	token, err := store.TryReserve(ctx, "peer-a", 400)
	require.NoError(t, err)

	// A manual reset lands between reserve and rollback.
	require.NoError(t, store.Reset(ctx, "peer-a"))
	require.NoError(t, store.Rollback(ctx, token))

	rec, err := store.Get(ctx, "peer-a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.CurrentSpent)
}

func TestLazyPeriodReset(t *testing.T) {
	store := NewLimitStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := base
	store.SetClock(func() time.Time { return now })

	limit := newTestLimit("peer-a", 1000)
	limit.ResetPeriod = payment.ResetDaily
	limit.PeriodStart = base
	require.NoError(t, store.Save(ctx, limit))

	_, err := store.TryReserve(ctx, "peer-a", 1000)
	require.NoError(t, err)
	_, err = store.TryReserve(ctx, "peer-a", 1)
	assert.ErrorIs(t, err, xerrors.ErrLimitExceeded)

	// The next touch after the window elapses starts a fresh period.
	now = base.Add(25 * time.Hour)
	_, err = store.TryReserve(ctx, "peer-a", 800)
	require.NoError(t, err)

	rec, err := store.Get(ctx, "peer-a")
	require.NoError(t, err)
	assert.Equal(t, int64(800), rec.CurrentSpent)
	assert.Equal(t, now, rec.PeriodStart)
}

// Many goroutines racing over one peer's budget must never jointly exceed
// the limit, whatever the interleaving.
func TestTryReserveConcurrent(t *testing.T) {
	store := NewLimitStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newTestLimit("peer-a", 1000)))

	const workers = 50
	var wg sync.WaitGroup
	granted := make(chan *payment.ReservationToken, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if token, err := store.TryReserve(ctx, "peer-a", 100); err == nil {
				granted <- token
			}
		}()
	}
	wg.Wait()
	close(granted)

	var total int64
	count := 0
	for token := range granted {
		total += token.Amount
		count++
	}
	assert.Equal(t, 10, count)
	assert.Equal(t, int64(1000), total)

	rec, err := store.Get(ctx, "peer-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), rec.CurrentSpent)
}

func TestLimitsAreIndependentPerPeer(t *testing.T) {
	store := NewLimitStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newTestLimit("peer-a", 100)))
	require.NoError(t, store.Save(ctx, newTestLimit("peer-b", 100)))

	_, err := store.TryReserve(ctx, "peer-a", 100)
	require.NoError(t, err)

	// peer-a being exhausted does not affect peer-b.
	_, err = store.TryReserve(ctx, "peer-b", 100)
	require.NoError(t, err)
}

func TestDeleteAndReset(t *testing.T) {
	store := NewLimitStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.Delete(ctx, "missing"), xerrors.ErrNotFound)
	assert.ErrorIs(t, store.Reset(ctx, "missing"), xerrors.ErrNotFound)

	require.NoError(t, store.Save(ctx, newTestLimit("peer-a", 100)))
	require.NoError(t, store.Delete(ctx, "peer-a"))
	_, err := store.Get(ctx, "peer-a")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}
