// internal/domain/payment/dto.go
package payment

// CreateRequestInput is the inbound payload for registering a payment
// request (normally received from the provider over transport).
type CreateRequestInput struct {
	PeerKey     string `json:"peer_key" binding:"required"`
	Method      string `json:"method" binding:"required"`
	Currency    string `json:"currency" binding:"required"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description,omitempty"`
}

// ConfigureAutoPayInput enables or updates the auto-pay rule for a
// subscription.
type ConfigureAutoPayInput struct {
	RequireConfirmation bool  `json:"require_confirmation"`
	MaxAmountPerPayment int64 `json:"max_amount_per_payment,omitempty"`
}

// SetLimitInput creates or replaces a peer spending limit.
type SetLimitInput struct {
	PeerKey     string      `json:"peer_key" binding:"required"`
	LimitAmount int64       `json:"limit_amount" binding:"required,gt=0"`
	ResetPeriod ResetPeriod `json:"reset_period" binding:"required"`
}
