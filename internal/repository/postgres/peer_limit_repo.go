// internal/repository/postgres/peer_limit_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autopay-service/internal/domain/payment"
	xerrors "autopay-service/internal/pkg/errors"
	"autopay-service/internal/pkg/money"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
)

// PeerLimitRepository backs the spending-limit store with Postgres. The
// peer-scoped exclusive lock of the reservation protocol maps onto a
// SELECT ... FOR UPDATE row lock held for the duration of the transaction,
// so the check and the write are a single serialized unit per peer while
// different peers proceed in parallel. The lock is released when the
// reservation commits; it is never held across a payment attempt.
type PeerLimitRepository struct {
	db *DB
}

func NewPeerLimitRepository(db *DB) *PeerLimitRepository {
	return &PeerLimitRepository{db: db}
}

func (r *PeerLimitRepository) Save(ctx context.Context, limit *payment.SpendingLimit) error {
	query := `
		INSERT INTO peer_spending_limits (
			peer_key, limit_amount, reset_period, current_spent, period_start,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (peer_key) DO UPDATE SET
			limit_amount = EXCLUDED.limit_amount,
			reset_period = EXCLUDED.reset_period,
			current_spent = EXCLUDED.current_spent,
			period_start = EXCLUDED.period_start,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.db.Pool().QueryRow(
		ctx, query,
		limit.PeerKey, limit.LimitAmount, limit.ResetPeriod, limit.CurrentSpent, limit.PeriodStart,
	).Scan(&limit.CreatedAt, &limit.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save spending limit: %w", err)
	}
	return nil
}

func (r *PeerLimitRepository) Get(ctx context.Context, peerKey string) (*payment.SpendingLimit, error) {
	query := `
		SELECT peer_key, limit_amount, reset_period, current_spent, period_start,
		       created_at, updated_at
		FROM peer_spending_limits
		WHERE peer_key = $1
	`
	limit, err := scanLimit(r.db.Pool().QueryRow(ctx, query, peerKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find spending limit: %w", err)
	}
	return limit, nil
}

func (r *PeerLimitRepository) List(ctx context.Context) ([]*payment.SpendingLimit, error) {
	query := `
		SELECT peer_key, limit_amount, reset_period, current_spent, period_start,
		       created_at, updated_at
		FROM peer_spending_limits
		ORDER BY peer_key
	`
	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list spending limits: %w", err)
	}
	defer rows.Close()

	var out []*payment.SpendingLimit
	for rows.Next() {
		limit, err := scanLimit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan spending limit: %w", err)
		}
		out = append(out, limit)
	}
	return out, rows.Err()
}

func (r *PeerLimitRepository) Delete(ctx context.Context, peerKey string) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM peer_spending_limits WHERE peer_key = $1`, peerKey)
	if err != nil {
		return fmt.Errorf("failed to delete spending limit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// Reset zeroes the running total and restarts the period immediately.
func (r *PeerLimitRepository) Reset(ctx context.Context, peerKey string) error {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE peer_spending_limits
		SET current_spent = 0, period_start = NOW(), updated_at = NOW()
		WHERE peer_key = $1
	`, peerKey)
	if err != nil {
		return fmt.Errorf("failed to reset spending limit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// TryReserve consumes budget up front inside one transaction: lock the row,
// lazily roll the period if elapsed, apply checked addition, reject on
// overrun, persist the raised total before the lock is released.
func (r *PeerLimitRepository) TryReserve(ctx context.Context, peerKey string, amount int64) (*payment.ReservationToken, error) {
	if amount <= 0 {
		return nil, xerrors.Wrap(xerrors.ErrInvalidArgument, "reservation amount must be positive")
	}

	var token *payment.ReservationToken
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		limit, err := lockLimitRow(ctx, tx, peerKey)
		if err != nil {
			return err
		}

		now := time.Now()
		if limit.ShouldReset(now) {
			limit.CurrentSpent = 0
			limit.PeriodStart = now
		}

		total, err := money.CheckedAdd(limit.CurrentSpent, amount)
		if err != nil {
			return err
		}
		if total > limit.LimitAmount {
			return xerrors.ErrLimitExceeded
		}

		_, err = tx.Exec(ctx, `
			UPDATE peer_spending_limits
			SET current_spent = $2, period_start = $3, updated_at = NOW()
			WHERE peer_key = $1
		`, peerKey, total, limit.PeriodStart)
		if err != nil {
			return fmt.Errorf("failed to persist reservation: %w", err)
		}

		token = &payment.ReservationToken{
			ID:        ulid.Make().String(),
			PeerKey:   peerKey,
			Amount:    amount,
			CreatedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Commit is a no-op: the reservation became durable when its transaction
// committed. Kept as an explicit step for a future two-phase variant.
func (r *PeerLimitRepository) Commit(ctx context.Context, token *payment.ReservationToken) error {
	return nil
}

// Rollback releases a reservation after a failed payment attempt, flooring
// at zero in case a period reset landed in between.
func (r *PeerLimitRepository) Rollback(ctx context.Context, token *payment.ReservationToken) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		limit, err := lockLimitRow(ctx, tx, token.PeerKey)
		if err != nil {
			return err
		}

		remaining := money.SaturatingSub(limit.CurrentSpent, token.Amount)
		_, err = tx.Exec(ctx, `
			UPDATE peer_spending_limits
			SET current_spent = $2, updated_at = NOW()
			WHERE peer_key = $1
		`, token.PeerKey, remaining)
		if err != nil {
			return fmt.Errorf("failed to persist rollback: %w", err)
		}
		return nil
	})
}

func lockLimitRow(ctx context.Context, tx pgx.Tx, peerKey string) (*payment.SpendingLimit, error) {
	limit, err := scanLimit(tx.QueryRow(ctx, `
		SELECT peer_key, limit_amount, reset_period, current_spent, period_start,
		       created_at, updated_at
		FROM peer_spending_limits
		WHERE peer_key = $1
		FOR UPDATE
	`, peerKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock spending limit: %w", err)
	}
	return limit, nil
}

func scanLimit(row rowScanner) (*payment.SpendingLimit, error) {
	var limit payment.SpendingLimit
	err := row.Scan(
		&limit.PeerKey, &limit.LimitAmount, &limit.ResetPeriod, &limit.CurrentSpent, &limit.PeriodStart,
		&limit.CreatedAt, &limit.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &limit, nil
}
