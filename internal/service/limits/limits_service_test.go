// internal/service/limits/limits_service_test.go
package limits

import (
	"context"
	"testing"

	"autopay-service/internal/domain/payment"
	xerrors "autopay-service/internal/pkg/errors"
	"autopay-service/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService() (*LimitsService, *memory.LimitStore) {
	store := memory.NewLimitStore()
	return NewLimitsService(store, zap.NewNop()), store
}

func TestSetValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Set(ctx, &payment.SetLimitInput{LimitAmount: 100, ResetPeriod: payment.ResetDaily})
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)

	_, err = svc.Set(ctx, &payment.SetLimitInput{PeerKey: "peer", LimitAmount: 0, ResetPeriod: payment.ResetDaily})
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)

	_, err = svc.Set(ctx, &payment.SetLimitInput{PeerKey: "peer", LimitAmount: 100, ResetPeriod: "hourly"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidArgument)

	limit, err := svc.Set(ctx, &payment.SetLimitInput{PeerKey: "peer", LimitAmount: 100, ResetPeriod: payment.ResetDaily})
	require.NoError(t, err)
	assert.Equal(t, int64(0), limit.CurrentSpent)
}

func TestSetReplacesAndRestartsPeriod(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()

	_, err := svc.Set(ctx, &payment.SetLimitInput{PeerKey: "peer", LimitAmount: 1000, ResetPeriod: payment.ResetMonthly})
	require.NoError(t, err)
	_, err = store.TryReserve(ctx, "peer", 700)
	require.NoError(t, err)

	// Replacing the limit zeroes the running total.
	_, err = svc.Set(ctx, &payment.SetLimitInput{PeerKey: "peer", LimitAmount: 500, ResetPeriod: payment.ResetMonthly})
	require.NoError(t, err)

	limit, err := svc.Get(ctx, "peer")
	require.NoError(t, err)
	assert.Equal(t, int64(0), limit.CurrentSpent)
	assert.Equal(t, int64(500), limit.LimitAmount)
}

func TestPreCheckDoesNotReserve(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()

	assert.ErrorIs(t, svc.PreCheck(ctx, "peer", 100), xerrors.ErrNotFound)

	_, err := svc.Set(ctx, &payment.SetLimitInput{PeerKey: "peer", LimitAmount: 1000, ResetPeriod: payment.ResetMonthly})
	require.NoError(t, err)

	require.NoError(t, svc.PreCheck(ctx, "peer", 1000))
	assert.ErrorIs(t, svc.PreCheck(ctx, "peer", 1001), xerrors.ErrLimitExceeded)

	// Nothing was consumed by the checks.
	limit, err := store.Get(ctx, "peer")
	require.NoError(t, err)
	assert.Equal(t, int64(0), limit.CurrentSpent)
}
