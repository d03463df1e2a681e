package dto

import (
	"time"

	"github.com/flexprice/billingcore/internal/domain/proration"
	"github.com/flexprice/billingcore/internal/validator"
	"github.com/shopspring/decimal"
)

type CalculateProrationRequest struct {
	SubscriptionID string          `json:"subscription_id" validate:"required"`
	NewAmount      decimal.Decimal `json:"new_amount"`
	// ChangeDate defaults to now.
	ChangeDate *time.Time `json:"change_date,omitempty"`
}

func (r *CalculateProrationRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type ProrationResponse struct {
	*proration.Result `json:",inline"`
}
