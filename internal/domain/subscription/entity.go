// internal/domain/subscription/entity.go
package subscription

import (
	"fmt"
	"time"

	xerrors "autopay-service/internal/pkg/errors"
)

type FrequencyKind string

const (
	FrequencyDaily   FrequencyKind = "daily"
	FrequencyWeekly  FrequencyKind = "weekly"
	FrequencyMonthly FrequencyKind = "monthly"
	FrequencyYearly  FrequencyKind = "yearly"
	FrequencyCustom  FrequencyKind = "custom"
)

// Frequency describes how often a payment falls due. Monthly billing days
// are capped at 28 so every month has the billing day.
type Frequency struct {
	Kind       FrequencyKind `json:"kind"`
	DayOfMonth int           `json:"day_of_month,omitempty"`
	Month      int           `json:"month,omitempty"`
	Day        int           `json:"day,omitempty"`
	Interval   time.Duration `json:"interval,omitempty"`
}

func (f Frequency) Validate() error {
	switch f.Kind {
	case FrequencyDaily, FrequencyWeekly:
		return nil
	case FrequencyMonthly:
		if f.DayOfMonth < 1 || f.DayOfMonth > 28 {
			return fmt.Errorf("%w: monthly billing day must be in [1,28], got %d", xerrors.ErrInvalidArgument, f.DayOfMonth)
		}
		return nil
	case FrequencyYearly:
		if f.Month < 1 || f.Month > 12 {
			return fmt.Errorf("%w: yearly billing month must be in [1,12], got %d", xerrors.ErrInvalidArgument, f.Month)
		}
		if f.Day < 1 || f.Day > 28 {
			return fmt.Errorf("%w: yearly billing day must be in [1,28], got %d", xerrors.ErrInvalidArgument, f.Day)
		}
		return nil
	case FrequencyCustom:
		if f.Interval <= 0 {
			return fmt.Errorf("%w: custom interval must be positive", xerrors.ErrInvalidArgument)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown frequency kind %q", xerrors.ErrInvalidArgument, f.Kind)
	}
}

// NextDue returns the first instant strictly after `from` at which a payment
// falls due under this frequency.
func (f Frequency) NextDue(from time.Time) time.Time {
	switch f.Kind {
	case FrequencyDaily:
		return from.Add(24 * time.Hour)
	case FrequencyWeekly:
		return from.Add(7 * 24 * time.Hour)
	case FrequencyMonthly:
		next := time.Date(from.Year(), from.Month(), f.DayOfMonth, 0, 0, 0, 0, from.Location())
		if !next.After(from) {
			next = next.AddDate(0, 1, 0)
		}
		return next
	case FrequencyYearly:
		next := time.Date(from.Year(), time.Month(f.Month), f.Day, 0, 0, 0, 0, from.Location())
		if !next.After(from) {
			next = next.AddDate(1, 0, 0)
		}
		return next
	case FrequencyCustom:
		return from.Add(f.Interval)
	default:
		return from
	}
}

// Terms is the immutable value the two parties sign. Changes always produce
// a new Terms value; nothing mutates one in place. Field order is part of
// the canonical signing encoding and must not be rearranged.
type Terms struct {
	Amount             int64     `json:"amount"`
	Currency           string    `json:"currency"`
	Frequency          Frequency `json:"frequency"`
	Method             string    `json:"method"`
	Description        string    `json:"description,omitempty"`
	MaxAmountPerPeriod int64     `json:"max_amount_per_period,omitempty"`
}

func (t Terms) Validate() error {
	if t.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", xerrors.ErrInvalidArgument)
	}
	if t.Currency == "" {
		return fmt.Errorf("%w: currency must not be empty", xerrors.ErrInvalidArgument)
	}
	if t.Method == "" {
		return fmt.Errorf("%w: payment method must not be empty", xerrors.ErrInvalidArgument)
	}
	if t.MaxAmountPerPeriod < 0 {
		return fmt.Errorf("%w: max amount per period must not be negative", xerrors.ErrInvalidArgument)
	}
	return t.Frequency.Validate()
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// MetaPaused is the metadata flag toggled by Pause/Resume modifications.
const MetaPaused = "paused"

type Subscription struct {
	ID            string                 `json:"id"`
	SubscriberKey string                 `json:"subscriber_key"`
	ProviderKey   string                 `json:"provider_key"`
	Terms         Terms                  `json:"terms"`
	StartsAt      time.Time              `json:"starts_at"`
	EndsAt        *time.Time             `json:"ends_at,omitempty"`
	Status        Status                 `json:"status"`
	Version       int                    `json:"version"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	// ProposerSig is attached while the record is pending so a failed send
	// can be retried without re-signing. It is cleared once both parties
	// have signed.
	ProposerSig *Signature `json:"proposer_sig,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsPaused reports whether the pause metadata flag is set.
func (s *Subscription) IsPaused() bool {
	if s.Metadata == nil {
		return false
	}
	v, ok := s.Metadata[MetaPaused].(bool)
	return ok && v
}

// Clone returns a deep copy so modification application never aliases the
// stored record's metadata map.
func (s *Subscription) Clone() *Subscription {
	out := *s
	if s.EndsAt != nil {
		ends := *s.EndsAt
		out.EndsAt = &ends
	}
	if s.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	if s.ProposerSig != nil {
		sig := *s.ProposerSig
		out.ProposerSig = &sig
	}
	return &out
}

// Signature binds one party's consent to a terms value through a single-use
// nonce and a bounded validity window.
type Signature struct {
	SignerKey string    `json:"signer_key"`
	Signature []byte    `json:"signature"`
	Nonce     []byte    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SignedSubscription is the mutually authorized agreement. Once both
// signatures are attached the record is immutable; later changes travel as
// ModificationRequests against the subscription, never as edits here.
type SignedSubscription struct {
	Subscription  Subscription `json:"subscription"`
	SubscriberSig Signature    `json:"subscriber_sig"`
	ProviderSig   Signature    `json:"provider_sig"`
	ActivatedAt   time.Time    `json:"activated_at"`
}

// Counterparty returns the peer key opposite to `self` on this agreement.
func (ss *SignedSubscription) Counterparty(self string) string {
	if ss.Subscription.SubscriberKey == self {
		return ss.Subscription.ProviderKey
	}
	return ss.Subscription.SubscriberKey
}
