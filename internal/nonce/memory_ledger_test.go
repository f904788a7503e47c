// internal/nonce/memory_ledger_test.go
package nonce

import (
	"context"
	"testing"
	"time"

	xerrors "autopay-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerReplay(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)
	nonce := []byte{1, 2, 3, 4}

	require.NoError(t, ledger.CheckAndMark(ctx, "peer-a", nonce, exp))
	assert.ErrorIs(t, ledger.CheckAndMark(ctx, "peer-a", nonce, exp), xerrors.ErrReplayDetected)

	// Scoped by signer: the same bytes from another peer are fresh.
	require.NoError(t, ledger.CheckAndMark(ctx, "peer-b", nonce, exp))
}

func TestMemoryLedgerExpired(t *testing.T) {
	ledger := NewMemoryLedger()
	err := ledger.CheckAndMark(context.Background(), "peer-a", []byte{1}, time.Now().Add(-time.Minute))
	assert.ErrorIs(t, err, xerrors.ErrExpired)
}

func TestMemoryLedgerSweep(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	ledger.SetClock(func() time.Time { return now })

	require.NoError(t, ledger.CheckAndMark(ctx, "peer-a", []byte{1}, base.Add(time.Minute)))
	require.NoError(t, ledger.CheckAndMark(ctx, "peer-a", []byte{2}, base.Add(time.Hour)))
	assert.Equal(t, 2, ledger.Len())

	// Past the first expiry the entry is swept and its nonce usable again
	// only in the sense that it is gone; a fresh mark still needs a live
	// expiry.
	now = base.Add(2 * time.Minute)
	assert.Equal(t, 1, ledger.Len())

	err := ledger.CheckAndMark(ctx, "peer-a", []byte{1}, base.Add(time.Minute))
	assert.ErrorIs(t, err, xerrors.ErrExpired)
}
