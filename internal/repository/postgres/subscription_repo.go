// internal/repository/postgres/subscription_repo.go
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
	"github.com/lib/pq"
)

type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Save upserts a subscription record. Last writer wins per id.
func (r *SubscriptionRepository) Save(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, subscriber_key, provider_key, terms, proposer_sig,
			starts_at, ends_at, status, version, metadata,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			terms = EXCLUDED.terms,
			proposer_sig = EXCLUDED.proposer_sig,
			ends_at = EXCLUDED.ends_at,
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	termsJSON, err := json.Marshal(sub.Terms)
	if err != nil {
		return fmt.Errorf("failed to marshal terms: %w", err)
	}

	// The proposer signature rides along while the record is pending;
	// clearing it on activation must reach the row as NULL.
	var proposerSigJSON []byte
	if sub.ProposerSig != nil {
		proposerSigJSON, err = json.Marshal(sub.ProposerSig)
		if err != nil {
			return fmt.Errorf("failed to marshal proposer signature: %w", err)
		}
	}

	var metadataJSON []byte
	if sub.Metadata != nil {
		metadataJSON, err = json.Marshal(sub.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	err = r.db.QueryRow(
		ctx, query,
		sub.ID, sub.SubscriberKey, sub.ProviderKey, termsJSON, proposerSigJSON,
		sub.StartsAt, sub.EndsAt, sub.Status, sub.Version, metadataJSON,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// Get retrieves a subscription by id.
func (r *SubscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := `
		SELECT id, subscriber_key, provider_key, terms, proposer_sig,
		       starts_at, ends_at, status, version, metadata,
		       created_at, updated_at
		FROM subscriptions
		WHERE id = $1
	`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return sub, nil
}

// List retrieves subscriptions matching the filters, newest first.
func (r *SubscriptionRepository) List(ctx context.Context, filters subscription.ListFilters) ([]*subscription.Subscription, error) {
	query := `
		SELECT id, subscriber_key, provider_key, terms, proposer_sig,
		       starts_at, ends_at, status, version, metadata,
		       created_at, updated_at
		FROM subscriptions
		WHERE ($1 = '' OR subscriber_key = $1 OR provider_key = $1)
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY created_at DESC
		LIMIT CASE WHEN $3 > 0 THEN $3 ELSE NULL END OFFSET $4
	`

	statuses := make([]string, len(filters.Statuses))
	for i, s := range filters.Statuses {
		statuses[i] = string(s)
	}

	rows, err := r.db.Query(ctx, query, filters.PeerKey, pq.Array(statuses), filters.Limit, filters.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	var termsJSON, proposerSigJSON, metadataJSON []byte

	err := row.Scan(
		&sub.ID, &sub.SubscriberKey, &sub.ProviderKey, &termsJSON, &proposerSigJSON,
		&sub.StartsAt, &sub.EndsAt, &sub.Status, &sub.Version, &metadataJSON,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(termsJSON, &sub.Terms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal terms: %w", err)
	}
	if len(proposerSigJSON) > 0 {
		var sig subscription.Signature
		if err := json.Unmarshal(proposerSigJSON, &sig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal proposer signature: %w", err)
		}
		sub.ProposerSig = &sig
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &sub.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &sub, nil
}
