// internal/repository/postgres/subscription_repo_test.go
package postgres_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"autopay-service/internal/domain/subscription"
	"autopay-service/internal/nonce"
	"autopay-service/internal/pkg/signing"
	"autopay-service/internal/repository/memory"
	"autopay-service/internal/repository/postgres"
	"autopay-service/internal/service/agreement"
	"autopay-service/internal/transport"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const subscriptionsSchema = `
	CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		subscriber_key TEXT NOT NULL,
		provider_key TEXT NOT NULL,
		terms JSONB NOT NULL,
		proposer_sig JSONB,
		starts_at TIMESTAMPTZ NOT NULL,
		ends_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		version INT NOT NULL,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(), subscriptionsSchema)
	require.NoError(t, err)
	return pool
}

func pendingSubscription(t *testing.T, keys *signing.KeyPair) *subscription.Subscription {
	t.Helper()

	terms := subscription.Terms{
		Amount:    999,
		Currency:  "USD",
		Frequency: subscription.Frequency{Kind: subscription.FrequencyMonthly, DayOfMonth: 15},
		Method:    "card",
	}
	digest, err := signing.CanonicalDigest(terms)
	require.NoError(t, err)
	n, err := signing.NewNonce()
	require.NoError(t, err)

	return &subscription.Subscription{
		ID:            ulid.Make().String(),
		SubscriberKey: keys.PublicKeyHex(),
		ProviderKey:   "provider-key",
		Terms:         terms,
		StartsAt:      time.Now(),
		Status:        subscription.StatusPending,
		Version:       1,
		ProposerSig: &subscription.Signature{
			SignerKey: keys.PublicKeyHex(),
			Signature: signing.Sign(keys.Private, digest, n),
			Nonce:     n,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
}

// A pending row must come back with its proposer signature intact; clearing
// the signature on activation must come back as absent, not stale.
func TestSaveGetRoundTripsProposerSignature(t *testing.T) {
	pool := testPool(t)
	repo := postgres.NewSubscriptionRepository(pool)
	ctx := context.Background()

	keys, err := signing.GenerateKeyPair()
	require.NoError(t, err)
	sub := pendingSubscription(t, keys)

	require.NoError(t, repo.Save(ctx, sub))

	got, err := repo.Get(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ProposerSig)
	assert.Equal(t, sub.ProposerSig.SignerKey, got.ProposerSig.SignerKey)
	assert.Equal(t, sub.ProposerSig.Signature, got.ProposerSig.Signature)
	assert.Equal(t, sub.ProposerSig.Nonce, got.ProposerSig.Nonce)
	assert.WithinDuration(t, sub.ProposerSig.ExpiresAt, got.ProposerSig.ExpiresAt, time.Second)

	got.Status = subscription.StatusActive
	got.ProposerSig = nil
	require.NoError(t, repo.Save(ctx, got))

	reloaded, err := repo.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, reloaded.Status)
	assert.Nil(t, reloaded.ProposerSig)
}

// The proposer side of the protocol reloads the pending record to match an
// incoming acceptance against the signature produced at propose time, so the
// acceptance must complete when that record went through the database.
func TestAcceptanceCompletesAfterReload(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	subTP, provTP := transport.NewLoopbackPair(8)

	proposerKeys, err := signing.GenerateKeyPair()
	require.NoError(t, err)
	proposer := agreement.NewAgreementService(
		postgres.NewSubscriptionRepository(pool),
		memory.NewSignedStore(memory.NewStore()),
		nonce.NewMemoryLedger(),
		subTP,
		proposerKeys,
		nil,
		zap.NewNop(),
	)

	providerKeys, err := signing.GenerateKeyPair()
	require.NoError(t, err)
	providerStore := memory.NewStore()
	provider := agreement.NewAgreementService(
		providerStore,
		memory.NewSignedStore(providerStore),
		nonce.NewMemoryLedger(),
		provTP,
		providerKeys,
		nil,
		zap.NewNop(),
	)

	sub, err := proposer.Propose(ctx, &subscription.ProposeRequest{
		ProviderKey: providerKeys.PublicKeyHex(),
		Terms: subscription.Terms{
			Amount:    999,
			Currency:  "USD",
			Frequency: subscription.Frequency{Kind: subscription.FrequencyMonthly, DayOfMonth: 15},
			Method:    "card",
		},
	})
	require.NoError(t, err)

	recvCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	msg, err := provTP.Recv(recvCtx)
	require.NoError(t, err)
	require.Equal(t, transport.MsgProposal, msg.Type)
	var prop agreement.Proposal
	require.NoError(t, json.Unmarshal(msg.Payload, &prop))

	_, err = provider.HandleProposal(ctx, &prop)
	require.NoError(t, err)
	_, err = provider.Accept(ctx, sub.ID, &prop.ProposerSig)
	require.NoError(t, err)

	recvCtx2, cancel2 := context.WithTimeout(ctx, time.Second)
	defer cancel2()
	msg, err = subTP.Recv(recvCtx2)
	require.NoError(t, err)
	require.Equal(t, transport.MsgAcceptance, msg.Type)
	var acc agreement.Acceptance
	require.NoError(t, json.Unmarshal(msg.Payload, &acc))

	mirrored, err := proposer.HandleAcceptance(ctx, &acc)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, mirrored.Subscription.Status)
	assert.Nil(t, mirrored.Subscription.ProposerSig)
}
