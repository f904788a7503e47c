// internal/repository/postgres/payment_request_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"autopay-service/internal/domain/payment"
	xerrors "autopay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type PaymentRequestRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRequestRepository(db *pgxpool.Pool) *PaymentRequestRepository {
	return &PaymentRequestRepository{db: db}
}

func (r *PaymentRequestRepository) Save(ctx context.Context, req *payment.Request) error {
	query := `
		INSERT INTO payment_requests (
			id, peer_key, method, currency, amount, description,
			subscription_id, status, failure_reason,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			subscription_id = EXCLUDED.subscription_id,
			status = EXCLUDED.status,
			failure_reason = EXCLUDED.failure_reason,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		req.ID, req.PeerKey, req.Method, req.Currency, req.Amount, req.Description,
		req.SubscriptionID, req.Status, req.FailureReason,
	).Scan(&req.CreatedAt, &req.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save payment request: %w", err)
	}
	return nil
}

func (r *PaymentRequestRepository) Get(ctx context.Context, id string) (*payment.Request, error) {
	query := `
		SELECT id, peer_key, method, currency, amount, description,
		       subscription_id, status, failure_reason,
		       created_at, updated_at
		FROM payment_requests
		WHERE id = $1
	`
	req, err := scanRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find payment request: %w", err)
	}
	return req, nil
}

func (r *PaymentRequestRepository) List(ctx context.Context, filters payment.RequestListFilters) ([]*payment.Request, error) {
	query := `
		SELECT id, peer_key, method, currency, amount, description,
		       subscription_id, status, failure_reason,
		       created_at, updated_at
		FROM payment_requests
		WHERE ($1 = '' OR peer_key = $1)
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
		return nil, fmt.Errorf("failed to list payment requests: %w", err)
	}
	defer rows.Close()

	var out []*payment.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanRequest(row rowScanner) (*payment.Request, error) {
	var req payment.Request
	err := row.Scan(
		&req.ID, &req.PeerKey, &req.Method, &req.Currency, &req.Amount, &req.Description,
		&req.SubscriptionID, &req.Status, &req.FailureReason,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
