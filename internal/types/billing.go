package types

import (
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/samber/lo"
)

// BillingCycleType is the recurrence unit of a subscription's billing cycle
type BillingCycleType string

const (
	BillingCycleDaily        BillingCycleType = "daily"
	BillingCycleWeekly       BillingCycleType = "weekly"
	BillingCycleMonthly      BillingCycleType = "monthly"
	BillingCycleQuarterly    BillingCycleType = "quarterly"
	BillingCycleSemiAnnually BillingCycleType = "semi_annually"
	BillingCycleAnnually     BillingCycleType = "annually"
)

func (c BillingCycleType) String() string {
	return string(c)
}

func (c BillingCycleType) Validate() error {
	allowed := []BillingCycleType{
		BillingCycleDaily,
		BillingCycleWeekly,
		BillingCycleMonthly,
		BillingCycleQuarterly,
		BillingCycleSemiAnnually,
		BillingCycleAnnually,
	}
	if !lo.Contains(allowed, c) {
		return ierr.NewError("invalid billing cycle type").
			WithHint("Please provide a valid billing cycle type").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"value":   c,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// BillingCycleStatus is the lifecycle state of a billing cycle.
// Processing only exists while a cycle is being invoiced; a cycle never
// rests in it once ProcessBillingCycle returns.
type BillingCycleStatus string

const (
	BillingCycleStatusPending    BillingCycleStatus = "pending"
	BillingCycleStatusProcessing BillingCycleStatus = "processing"
	BillingCycleStatusPaid       BillingCycleStatus = "paid"
	BillingCycleStatusCancelled  BillingCycleStatus = "cancelled"
)

func (s BillingCycleStatus) String() string {
	return string(s)
}

func (s BillingCycleStatus) Validate() error {
	allowed := []BillingCycleStatus{
		BillingCycleStatusPending,
		BillingCycleStatusProcessing,
		BillingCycleStatusPaid,
		BillingCycleStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid billing cycle status").
			WithHint("Please provide a valid billing cycle status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionStatus is the state of the hydrated subscription aggregate
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// EntityType names the aggregate a state transition belongs to
type EntityType string

const (
	EntityTypeInvoice      EntityType = "invoice"
	EntityTypeBillingCycle EntityType = "billing_cycle"
)
