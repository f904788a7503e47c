// internal/repository/postgres/signed_subscription_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"autopay-service/internal/domain/subscription"
	xerrors "autopay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SignedSubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSignedSubscriptionRepository(db *pgxpool.Pool) *SignedSubscriptionRepository {
	return &SignedSubscriptionRepository{db: db}
}

// Save upserts a signed agreement. The embedded subscription rides along as
// JSONB; signature parts get their own columns so nonces stay queryable.
func (r *SignedSubscriptionRepository) Save(ctx context.Context, signed *subscription.SignedSubscription) error {
	query := `
		INSERT INTO signed_subscriptions (
			subscription_id, subscription, subscriber_key, provider_key, status,
			sub_signer_key, sub_signature, sub_nonce, sub_expires_at,
			prov_signer_key, prov_signature, prov_nonce, prov_expires_at,
			activated_at, ends_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (subscription_id) DO UPDATE SET
			subscription = EXCLUDED.subscription,
			status = EXCLUDED.status,
			ends_at = EXCLUDED.ends_at
	`

	subJSON, err := json.Marshal(signed.Subscription)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	_, err = r.db.Exec(
		ctx, query,
		signed.Subscription.ID, subJSON,
		signed.Subscription.SubscriberKey, signed.Subscription.ProviderKey, signed.Subscription.Status,
		signed.SubscriberSig.SignerKey, signed.SubscriberSig.Signature, signed.SubscriberSig.Nonce, signed.SubscriberSig.ExpiresAt,
		signed.ProviderSig.SignerKey, signed.ProviderSig.Signature, signed.ProviderSig.Nonce, signed.ProviderSig.ExpiresAt,
		signed.ActivatedAt, signed.Subscription.EndsAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save signed subscription: %w", err)
	}
	return nil
}

func (r *SignedSubscriptionRepository) Get(ctx context.Context, id string) (*subscription.SignedSubscription, error) {
	query := `
		SELECT subscription,
		       sub_signer_key, sub_signature, sub_nonce, sub_expires_at,
		       prov_signer_key, prov_signature, prov_nonce, prov_expires_at,
		       activated_at
		FROM signed_subscriptions
		WHERE subscription_id = $1
	`

	signed, err := scanSignedSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find signed subscription: %w", err)
	}
	return signed, nil
}

// ListActiveByPeer returns active agreements on either side of the peer,
// excluding agreements already past their end date.
func (r *SignedSubscriptionRepository) ListActiveByPeer(ctx context.Context, peerKey string) ([]*subscription.SignedSubscription, error) {
	query := `
		SELECT subscription,
		       sub_signer_key, sub_signature, sub_nonce, sub_expires_at,
		       prov_signer_key, prov_signature, prov_nonce, prov_expires_at,
		       activated_at
		FROM signed_subscriptions
		WHERE (subscriber_key = $1 OR provider_key = $1)
		  AND status = 'active'
		  AND (ends_at IS NULL OR ends_at > NOW())
		ORDER BY activated_at DESC
	`

	rows, err := r.db.Query(ctx, query, peerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list signed subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*subscription.SignedSubscription
	for rows.Next() {
		signed, err := scanSignedSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signed subscription: %w", err)
		}
		out = append(out, signed)
	}
	return out, rows.Err()
}

func scanSignedSubscription(row rowScanner) (*subscription.SignedSubscription, error) {
	var signed subscription.SignedSubscription
	var subJSON []byte

	err := row.Scan(
		&subJSON,
		&signed.SubscriberSig.SignerKey, &signed.SubscriberSig.Signature, &signed.SubscriberSig.Nonce, &signed.SubscriberSig.ExpiresAt,
		&signed.ProviderSig.SignerKey, &signed.ProviderSig.Signature, &signed.ProviderSig.Nonce, &signed.ProviderSig.ExpiresAt,
		&signed.ActivatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(subJSON, &signed.Subscription); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}
	return &signed, nil
}
