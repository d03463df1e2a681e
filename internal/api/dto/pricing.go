package dto

import (
	"github.com/flexprice/billingcore/internal/domain/pricing"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/flexprice/billingcore/internal/validator"
	"github.com/shopspring/decimal"
)

type ApplyPricingRulesRequest struct {
	BaseAmount        decimal.Decimal        `json:"base_amount"`
	CycleType         types.BillingCycleType `json:"cycle_type" validate:"required"`
	Quantity          int                    `json:"quantity" validate:"min=1"`
	DiscountPercent   *decimal.Decimal       `json:"discount_percent,omitempty"`
	MinimumCommitment *decimal.Decimal       `json:"minimum_commitment,omitempty"`
}

func (r *ApplyPricingRulesRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// CustomRule returns nil when no override is set.
func (r *ApplyPricingRulesRequest) CustomRule() *pricing.CustomRule {
	if r.DiscountPercent == nil && r.MinimumCommitment == nil {
		return nil
	}
	return &pricing.CustomRule{
		DiscountPercent:   r.DiscountPercent,
		MinimumCommitment: r.MinimumCommitment,
	}
}

type PricingResponse struct {
	*pricing.Result `json:",inline"`
}
