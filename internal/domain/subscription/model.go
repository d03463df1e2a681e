package subscription

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// Subscription is the hydrated view of a customer's recurring charge that
// the billing calculators need. Plan and price management live elsewhere.
type Subscription struct {
	ID                 string                   `db:"id" json:"id"`
	CustomerID         string                   `db:"customer_id" json:"customer_id"`
	Amount             decimal.Decimal          `db:"amount" json:"amount"`
	Quantity           int                      `db:"quantity" json:"quantity"`
	Currency           string                   `db:"currency" json:"currency"`
	CycleType          types.BillingCycleType   `db:"cycle_type" json:"cycle_type"`
	CurrentPeriodStart time.Time                `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   time.Time                `db:"current_period_end" json:"current_period_end"`
	Status             types.SubscriptionStatus `db:"status" json:"status"`
	// DiscountPercent and MinimumCommitment feed the custom pricing rule.
	DiscountPercent   *decimal.Decimal `db:"discount_percent" json:"discount_percent,omitempty"`
	MinimumCommitment *decimal.Decimal `db:"minimum_commitment" json:"minimum_commitment,omitempty"`
	types.BaseModel
}

func New(ctx context.Context, customerID string, amount decimal.Decimal, cycle types.BillingCycleType, periodStart, periodEnd time.Time) *Subscription {
	return &Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:         customerID,
		Amount:             amount,
		Quantity:           1,
		Currency:           types.DefaultCurrency,
		CycleType:          cycle,
		CurrentPeriodStart: periodStart,
		CurrentPeriodEnd:   periodEnd,
		Status:             types.SubscriptionStatusActive,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
}

// EffectiveQuantity treats an unset quantity as one seat.
func (s *Subscription) EffectiveQuantity() int {
	if s.Quantity < 1 {
		return 1
	}
	return s.Quantity
}
