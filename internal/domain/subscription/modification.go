// internal/domain/subscription/modification.go
package subscription

import "time"

type ModificationType string

const (
	ModUpgrade           ModificationType = "upgrade"
	ModDowngrade         ModificationType = "downgrade"
	ModChangeMethod      ModificationType = "change_method"
	ModChangeBillingDate ModificationType = "change_billing_date"
	ModChangeFrequency   ModificationType = "change_frequency"
	ModCancel            ModificationType = "cancel"
	ModPause             ModificationType = "pause"
	ModResume            ModificationType = "resume"
)

// ModificationRequest is a typed change against a subscription. Which of
// the New* fields are meaningful depends on Type.
type ModificationRequest struct {
	ID             string           `json:"id"`
	SubscriptionID string           `json:"subscription_id"`
	Type           ModificationType `json:"type"`
	RequestedBy    string           `json:"requested_by"`
	NewAmount      int64            `json:"new_amount,omitempty"`
	NewMethod      string           `json:"new_method,omitempty"`
	NewBillingDay  int              `json:"new_billing_day,omitempty"`
	NewFrequency   *Frequency       `json:"new_frequency,omitempty"`
	EffectiveDate  *time.Time       `json:"effective_date,omitempty"`
	RequestedAt    time.Time        `json:"requested_at"`
}

type ModificationOutcome string

const (
	OutcomeApplied  ModificationOutcome = "applied"
	OutcomeDeferred ModificationOutcome = "deferred"
	OutcomeRejected ModificationOutcome = "rejected"
)

// ModificationRecord is one entry of the append-only modification history.
// Rejected attempts are recorded too; only applied ones carry a version
// bump and a terms snapshot.
type ModificationRecord struct {
	ID             string              `json:"id"`
	SubscriptionID string              `json:"subscription_id"`
	Request        ModificationRequest `json:"request"`
	Outcome        ModificationOutcome `json:"outcome"`
	Error          string              `json:"error,omitempty"`
	Version        int                 `json:"version,omitempty"`
	TermsSnapshot  *Terms              `json:"terms_snapshot,omitempty"`
	RecordedAt     time.Time           `json:"recorded_at"`
}
