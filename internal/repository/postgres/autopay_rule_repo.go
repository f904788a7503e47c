// internal/repository/postgres/autopay_rule_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"autopay-service/internal/domain/payment"
	xerrors "autopay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AutoPayRuleRepository struct {
	db *pgxpool.Pool
}

func NewAutoPayRuleRepository(db *pgxpool.Pool) *AutoPayRuleRepository {
	return &AutoPayRuleRepository{db: db}
}

// Save upserts the rule for a subscription. Rules are never deleted, only
// disabled.
func (r *AutoPayRuleRepository) Save(ctx context.Context, rule *payment.AutoPayRule) error {
	query := `
		INSERT INTO autopay_rules (
			subscription_id, provider_key, method, enabled,
			require_confirmation, max_amount_per_payment,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (subscription_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			require_confirmation = EXCLUDED.require_confirmation,
			max_amount_per_payment = EXCLUDED.max_amount_per_payment,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		rule.SubscriptionID, rule.ProviderKey, rule.Method, rule.Enabled,
		rule.RequireConfirmation, rule.MaxAmountPerPayment,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save autopay rule: %w", err)
	}
	return nil
}

func (r *AutoPayRuleRepository) GetBySubscription(ctx context.Context, subscriptionID string) (*payment.AutoPayRule, error) {
	query := `
		SELECT subscription_id, provider_key, method, enabled,
		       require_confirmation, max_amount_per_payment,
		       created_at, updated_at
		FROM autopay_rules
		WHERE subscription_id = $1
	`

	var rule payment.AutoPayRule
	err := r.db.QueryRow(ctx, query, subscriptionID).Scan(
		&rule.SubscriptionID, &rule.ProviderKey, &rule.Method, &rule.Enabled,
		&rule.RequireConfirmation, &rule.MaxAmountPerPayment,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find autopay rule: %w", err)
	}
	return &rule, nil
}
