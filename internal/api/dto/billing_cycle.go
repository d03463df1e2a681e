package dto

import (
	"github.com/flexprice/billingcore/internal/domain/billingcycle"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/flexprice/billingcore/internal/validator"
)

type ScheduleBillingCycleRequest struct {
	SubscriptionID string                 `json:"subscription_id" validate:"required"`
	CycleType      types.BillingCycleType `json:"cycle_type" validate:"required"`
}

func (r *ScheduleBillingCycleRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.CycleType.Validate()
}

type BillingCycleResponse struct {
	*billingcycle.BillingCycle `json:",inline"`
}

type ListBillingCyclesResponse = types.ListResponse[*BillingCycleResponse]

// ProcessDueCyclesResponse summarizes one sweep over due cycles.
type ProcessDueCyclesResponse struct {
	Due       int      `json:"due"`
	Processed int      `json:"processed"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Reclaimed int      `json:"reclaimed"`
	Errors    []string `json:"errors,omitempty"`
}
