// internal/nonce/memory_ledger.go
package nonce

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	xerrors "autopay-service/internal/pkg/errors"
)

// MemoryLedger is the in-process ledger used in tests and single-node
// deployments without Redis. Expired entries are swept lazily on every
// CheckAndMark, which bounds memory to the set of still-live nonces.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (l *MemoryLedger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *MemoryLedger) CheckAndMark(_ context.Context, signerKey string, nonce []byte, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !expiresAt.After(now) {
		return xerrors.ErrExpired
	}

	l.sweepLocked(now)

	key := signerKey + ":" + hex.EncodeToString(nonce)
	if _, seen := l.entries[key]; seen {
		return xerrors.ErrReplayDetected
	}
	l.entries[key] = expiresAt
	return nil
}

// Len reports the number of live entries. Test hook.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(l.now())
	return len(l.entries)
}

func (l *MemoryLedger) sweepLocked(now time.Time) {
	for key, exp := range l.entries {
		if !exp.After(now) {
			delete(l.entries, key)
		}
	}
}
