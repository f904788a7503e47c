// internal/repository/postgres/modification_history_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"autopay-service/internal/domain/subscription"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModificationHistoryRepository is append-only: records are inserted and
// listed, never updated or deleted.
type ModificationHistoryRepository struct {
	db *pgxpool.Pool
}

func NewModificationHistoryRepository(db *pgxpool.Pool) *ModificationHistoryRepository {
	return &ModificationHistoryRepository{db: db}
}

func (r *ModificationHistoryRepository) Append(ctx context.Context, rec *subscription.ModificationRecord) error {
	query := `
		INSERT INTO modification_history (
			id, subscription_id, request, outcome, error,
			version, terms_snapshot, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	reqJSON, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal modification request: %w", err)
	}

	var snapshotJSON []byte
	if rec.TermsSnapshot != nil {
		snapshotJSON, err = json.Marshal(rec.TermsSnapshot)
		if err != nil {
			return fmt.Errorf("failed to marshal terms snapshot: %w", err)
		}
	}

	_, err = r.db.Exec(
		ctx, query,
		rec.ID, rec.SubscriptionID, reqJSON, rec.Outcome, rec.Error,
		rec.Version, snapshotJSON, rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append modification record: %w", err)
	}
	return nil
}

func (r *ModificationHistoryRepository) ListBySubscription(ctx context.Context, subscriptionID string) ([]*subscription.ModificationRecord, error) {
	query := `
		SELECT id, subscription_id, request, outcome, error,
		       version, terms_snapshot, recorded_at
		FROM modification_history
		WHERE subscription_id = $1
		ORDER BY recorded_at ASC
	`

	rows, err := r.db.Query(ctx, query, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list modification history: %w", err)
	}
	defer rows.Close()

	var out []*subscription.ModificationRecord
	for rows.Next() {
		var rec subscription.ModificationRecord
		var reqJSON, snapshotJSON []byte

		err := rows.Scan(
			&rec.ID, &rec.SubscriptionID, &reqJSON, &rec.Outcome, &rec.Error,
			&rec.Version, &snapshotJSON, &rec.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan modification record: %w", err)
		}

		if err := json.Unmarshal(reqJSON, &rec.Request); err != nil {
			return nil, fmt.Errorf("failed to unmarshal modification request: %w", err)
		}
		if len(snapshotJSON) > 0 {
			var snapshot subscription.Terms
			if err := json.Unmarshal(snapshotJSON, &snapshot); err != nil {
				return nil, fmt.Errorf("failed to unmarshal terms snapshot: %w", err)
			}
			rec.TermsSnapshot = &snapshot
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
