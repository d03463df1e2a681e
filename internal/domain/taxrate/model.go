package taxrate

import (
	"context"
	"strings"
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// TaxRate is a jurisdictional rate used by manual tax resolution.
// Rate is a fraction in [0,1]; a nil State means the rate is country-level.
type TaxRate struct {
	ID               string           `db:"id" json:"id"`
	JurisdictionCode string           `db:"jurisdiction_code" json:"jurisdiction_code"`
	Name             string           `db:"name" json:"name"`
	Country          string           `db:"country" json:"country"`
	State            *string          `db:"state" json:"state,omitempty"`
	TaxType          types.TaxType    `db:"tax_type" json:"tax_type"`
	Rate             decimal.Decimal  `db:"rate" json:"rate"`
	Threshold        *decimal.Decimal `db:"threshold" json:"threshold,omitempty"`
	Enabled          bool             `db:"enabled" json:"enabled"`
	EffectiveDate    *time.Time       `db:"effective_date" json:"effective_date,omitempty"`
	ExpirationDate   *time.Time       `db:"expiration_date" json:"expiration_date,omitempty"`
	types.BaseModel
}

// New builds an enabled tax rate for the tenant in ctx.
func New(ctx context.Context, name string, j types.Jurisdiction, taxType types.TaxType, rate decimal.Decimal) *TaxRate {
	j = j.Normalize()
	return &TaxRate{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TAX_RATE),
		JurisdictionCode: j.Code(),
		Name:             name,
		Country:          j.Country,
		State:            j.State,
		TaxType:          taxType,
		Rate:             rate,
		Enabled:          true,
		BaseModel:        types.GetDefaultBaseModel(ctx),
	}
}

// IsEffectiveAt reports whether the rate is enabled and inside its validity window at t.
func (r *TaxRate) IsEffectiveAt(t time.Time) bool {
	if !r.Enabled {
		return false
	}
	if r.EffectiveDate != nil && r.EffectiveDate.After(t) {
		return false
	}
	if r.ExpirationDate != nil && r.ExpirationDate.Before(t) {
		return false
	}
	return true
}

func (r *TaxRate) Jurisdiction() types.Jurisdiction {
	return types.Jurisdiction{Country: r.Country, State: r.State}
}

// DisplayName is the human label used in tax breakdowns.
func (r *TaxRate) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.JurisdictionCode
}

func (r *TaxRate) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ierr.NewError("tax rate name is required").
			WithHint("Please provide a name for the tax rate").
			Mark(ierr.ErrValidation)
	}
	if err := r.Jurisdiction().Validate(); err != nil {
		return err
	}
	if err := r.TaxType.Validate(); err != nil {
		return err
	}
	if r.Rate.IsNegative() || r.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return ierr.NewError("tax rate must be between 0 and 1").
			WithHint("Rates are fractions, e.g. 0.0825 for 8.25%").
			WithReportableDetails(map[string]any{
				"rate": r.Rate.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if r.Threshold != nil && r.Threshold.IsNegative() {
		return ierr.NewError("threshold must not be negative").
			WithHint("Please provide a valid threshold").
			Mark(ierr.ErrValidation)
	}
	if r.EffectiveDate != nil && r.ExpirationDate != nil && r.ExpirationDate.Before(*r.EffectiveDate) {
		return ierr.NewError("expiration date must not precede effective date").
			WithHint("Please provide a valid validity window").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SelectMostRecent picks the rate with the latest effective date among
// candidates; rates without an effective date rank lowest.
func SelectMostRecent(candidates []*TaxRate) *TaxRate {
	if len(candidates) == 0 {
		return nil
	}
	return lo.MaxBy(candidates, func(a, b *TaxRate) bool {
		return effective(a).After(effective(b))
	})
}

func effective(r *TaxRate) time.Time {
	if r.EffectiveDate == nil {
		return time.Time{}
	}
	return *r.EffectiveDate
}
