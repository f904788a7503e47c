// internal/nonce/redis_ledger.go
package nonce

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	xerrors "autopay-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// RedisLedger keeps consumed nonces in Redis. SET NX gives the atomic
// insert-if-absent, and the TTL equal to the remaining validity window
// makes Redis sweep dead entries for us.
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func (l *RedisLedger) CheckAndMark(ctx context.Context, signerKey string, nonce []byte, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return xerrors.ErrExpired
	}

	key := l.nonceKey(signerKey, nonce)
	ok, err := l.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to mark nonce in redis: %w", err)
	}
	if !ok {
		return xerrors.ErrReplayDetected
	}
	return nil
}

func (l *RedisLedger) nonceKey(signerKey string, nonce []byte) string {
	return fmt.Sprintf("nonce:%s:%s", signerKey, hex.EncodeToString(nonce))
}
