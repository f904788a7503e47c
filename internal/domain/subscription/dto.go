// internal/domain/subscription/dto.go
package subscription

import "time"

// ProposeRequest is the inbound payload for proposing a new agreement.
type ProposeRequest struct {
	ProviderKey string                 `json:"provider_key" binding:"required"`
	Terms       Terms                  `json:"terms" binding:"required"`
	StartsAt    time.Time              `json:"starts_at"`
	EndsAt      *time.Time             `json:"ends_at,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// AcceptRequest carries the proposer's signature alongside the id of the
// pending subscription being accepted.
type AcceptRequest struct {
	SubscriptionID string    `json:"subscription_id" binding:"required"`
	ProposerSig    Signature `json:"proposer_sig" binding:"required"`
}

// ModifyRequest is the inbound payload for applying a modification.
type ModifyRequest struct {
	Type          ModificationType `json:"type" binding:"required"`
	NewAmount     int64            `json:"new_amount,omitempty"`
	NewMethod     string           `json:"new_method,omitempty"`
	NewBillingDay int              `json:"new_billing_day,omitempty"`
	NewFrequency  *Frequency       `json:"new_frequency,omitempty"`
	EffectiveDate *time.Time       `json:"effective_date,omitempty"`
}
