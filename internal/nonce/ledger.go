// internal/nonce/ledger.go
package nonce

import (
	"context"
	"time"
)

// Ledger records which (signer, nonce) pairs have been consumed and until
// when they stay hot. CheckAndMark is the only operation: it atomically
// verifies the pair is unused within its live window and consumes it.
//
// Returns ErrExpired when the validity window has already closed and
// ErrReplayDetected when the pair was consumed earlier while still live.
// Entries whose window has closed may be swept at any time without
// weakening the at-most-once guarantee.
type Ledger interface {
	CheckAndMark(ctx context.Context, signerKey string, nonce []byte, expiresAt time.Time) error
}
