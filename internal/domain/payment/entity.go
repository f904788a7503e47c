// internal/domain/payment/entity.go
package payment

import "time"

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestFailed    RequestStatus = "failed"
)

// Request is an incoming ask for payment from a provider. Auto-pay matches
// it against an active agreement before any funds move.
type Request struct {
	ID             string        `json:"id"`
	PeerKey        string        `json:"peer_key"`
	Method         string        `json:"method"`
	Currency       string        `json:"currency"`
	Amount         int64         `json:"amount"`
	Description    string        `json:"description,omitempty"`
	SubscriptionID string        `json:"subscription_id,omitempty"`
	Status         RequestStatus `json:"status"`
	FailureReason  string        `json:"failure_reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Receipt is what the external payment executor returns on success. The
// provisional form (no ProviderRef, zero SettledAt) is handed to the
// executor; the settled form comes back.
type Receipt struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id"`
	PeerKey     string    `json:"peer_key"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Channel     string    `json:"channel"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	SettledAt   time.Time `json:"settled_at,omitempty"`
}

// AutoPayRule gates unattended execution per subscription. Created lazily
// on first configuration, toggled by enable/disable, never auto-deleted.
type AutoPayRule struct {
	SubscriptionID      string    `json:"subscription_id"`
	ProviderKey         string    `json:"provider_key"`
	Method              string    `json:"method"`
	Enabled             bool      `json:"enabled"`
	RequireConfirmation bool      `json:"require_confirmation"`
	MaxAmountPerPayment int64     `json:"max_amount_per_payment,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type ResetPeriod string

const (
	ResetDaily   ResetPeriod = "daily"
	ResetWeekly  ResetPeriod = "weekly"
	ResetMonthly ResetPeriod = "monthly"
)

func (p ResetPeriod) Valid() bool {
	switch p {
	case ResetDaily, ResetWeekly, ResetMonthly:
		return true
	}
	return false
}

// Duration returns the length of one reset window. Monthly uses a fixed
// 30 days; the window anchors on PeriodStart, not the calendar.
func (p ResetPeriod) Duration() time.Duration {
	switch p {
	case ResetDaily:
		return 24 * time.Hour
	case ResetWeekly:
		return 7 * 24 * time.Hour
	case ResetMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// SpendingLimit is the per-peer cap that reservations draw down.
// Invariant: 0 <= CurrentSpent <= LimitAmount after every completed store
// operation.
type SpendingLimit struct {
	PeerKey      string      `json:"peer_key"`
	LimitAmount  int64       `json:"limit_amount"`
	ResetPeriod  ResetPeriod `json:"reset_period"`
	CurrentSpent int64       `json:"current_spent"`
	PeriodStart  time.Time   `json:"period_start"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ShouldReset reports whether the current window has elapsed. The store
// applies the reset lazily on the next touch; there is no background timer.
func (l *SpendingLimit) ShouldReset(now time.Time) bool {
	return now.Sub(l.PeriodStart) >= l.ResetPeriod.Duration()
}

// ReservationToken is the capability handed out by a successful reserve.
// It lives only between reserve and commit/rollback and is never persisted
// as first-class state. Callers must invoke exactly one of commit/rollback
// per token.
type ReservationToken struct {
	ID        string    `json:"id"`
	PeerKey   string    `json:"peer_key"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
