package types

import (
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/samber/lo"
)

// BaseFilter is implemented by every typed list filter so stores can paginate uniformly.
type BaseFilter interface {
	GetLimit() int
	GetOffset() int
	IsUnlimited() bool
}

// QueryFilter represents pagination and ordering shared by all list filters
type QueryFilter struct {
	Limit  *int    `json:"limit,omitempty"`
	Offset *int    `json:"offset,omitempty"`
	Sort   *string `json:"sort,omitempty"`
	Order  *string `json:"order,omitempty"`
}

// DefaultQueryFilter defines default values for query filters
var DefaultQueryFilter = QueryFilter{
	Limit:  lo.ToPtr(50),
	Offset: lo.ToPtr(0),
	Sort:   lo.ToPtr("created_at"),
	Order:  lo.ToPtr("desc"),
}

func NewDefaultQueryFilter() *QueryFilter {
	return &QueryFilter{
		Limit:  lo.ToPtr(*DefaultQueryFilter.Limit),
		Offset: lo.ToPtr(*DefaultQueryFilter.Offset),
		Sort:   lo.ToPtr(*DefaultQueryFilter.Sort),
		Order:  lo.ToPtr(*DefaultQueryFilter.Order),
	}
}

// NewNoLimitQueryFilter returns a filter with no pagination limits
func NewNoLimitQueryFilter() *QueryFilter {
	return &QueryFilter{
		Sort:  lo.ToPtr(*DefaultQueryFilter.Sort),
		Order: lo.ToPtr(*DefaultQueryFilter.Order),
	}
}

func (f *QueryFilter) GetLimit() int {
	if f == nil || f.Limit == nil {
		return 0
	}
	return *f.Limit
}

func (f *QueryFilter) GetOffset() int {
	if f == nil || f.Offset == nil {
		return 0
	}
	return *f.Offset
}

func (f *QueryFilter) GetSort() string {
	if f == nil || f.Sort == nil {
		return *DefaultQueryFilter.Sort
	}
	return *f.Sort
}

func (f *QueryFilter) GetOrder() string {
	if f == nil || f.Order == nil {
		return *DefaultQueryFilter.Order
	}
	return *f.Order
}

func (f *QueryFilter) IsUnlimited() bool {
	return f == nil || f.Limit == nil
}

func (f *QueryFilter) Validate() error {
	if f == nil {
		return nil
	}
	if f.Limit != nil && *f.Limit < 0 {
		return ierr.NewError("limit must be non-negative").
			WithHint("Please provide a valid limit").
			Mark(ierr.ErrValidation)
	}
	if f.Offset != nil && *f.Offset < 0 {
		return ierr.NewError("offset must be non-negative").
			WithHint("Please provide a valid offset").
			Mark(ierr.ErrValidation)
	}
	if f.Order != nil && *f.Order != "asc" && *f.Order != "desc" {
		return ierr.NewError("order must be asc or desc").
			WithHint("Please provide a valid order").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TaxRateFilter selects tax rates for resolution and administration.
type TaxRateFilter struct {
	*QueryFilter
	TaxRateIDs []string `json:"tax_rate_ids,omitempty"`
	Country    string   `json:"country,omitempty"`
	// State nil means any state; StateUnset restricts to country-level rates.
	State       *string    `json:"state,omitempty"`
	StateUnset  bool       `json:"state_unset,omitempty"`
	EnabledOnly bool       `json:"enabled_only,omitempty"`
	EffectiveAt *time.Time `json:"effective_at,omitempty"`
}

// TaxExemptionFilter selects exemptions for a tenant.
type TaxExemptionFilter struct {
	*QueryFilter
	ExemptionIDs []string          `json:"exemption_ids,omitempty"`
	CustomerID   *string           `json:"customer_id,omitempty"`
	TenantLevel  bool              `json:"tenant_level,omitempty"`
	Status       *ExemptionStatus  `json:"status,omitempty"`
	Statuses     []ExemptionStatus `json:"statuses,omitempty"`
}

type InvoiceFilter struct {
	*QueryFilter
	InvoiceIDs     []string        `json:"invoice_ids,omitempty"`
	CustomerID     string          `json:"customer_id,omitempty"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	Statuses       []InvoiceStatus `json:"statuses,omitempty"`
	IssuedAfter    *time.Time      `json:"issued_after,omitempty"`
	IssuedBefore   *time.Time      `json:"issued_before,omitempty"`
}

type BillingCycleFilter struct {
	*QueryFilter
	CycleIDs       []string             `json:"cycle_ids,omitempty"`
	SubscriptionID string               `json:"subscription_id,omitempty"`
	Statuses       []BillingCycleStatus `json:"statuses,omitempty"`
	// BillingDateBefore selects cycles due at or before the instant.
	BillingDateBefore *time.Time `json:"billing_date_before,omitempty"`
}

type SubscriptionFilter struct {
	*QueryFilter
	SubscriptionIDs []string             `json:"subscription_ids,omitempty"`
	CustomerID      string               `json:"customer_id,omitempty"`
	Statuses        []SubscriptionStatus `json:"statuses,omitempty"`
}

// TaxAppliedFilter selects recorded tax calculations for reporting.
type TaxAppliedFilter struct {
	*QueryFilter
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	Country       string     `json:"country,omitempty"`
	State         *string    `json:"state,omitempty"`
	CustomerID    string     `json:"customer_id,omitempty"`
	InvoiceID     string     `json:"invoice_id,omitempty"`
}
