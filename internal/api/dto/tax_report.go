package dto

import (
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/report"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/flexprice/billingcore/internal/validator"
)

// GenerateTaxReportRequest selects the period and, optionally, the
// jurisdiction a report covers.
type GenerateTaxReportRequest struct {
	PeriodStart time.Time           `json:"period_start" validate:"required"`
	PeriodEnd   time.Time           `json:"period_end" validate:"required"`
	Country     string              `json:"country,omitempty" validate:"omitempty,len=2"`
	State       *string             `json:"state,omitempty" validate:"omitempty,max=3"`
	ReportType  types.TaxReportType `json:"report_type" validate:"required"`
}

func (r *GenerateTaxReportRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.ReportType.Validate(); err != nil {
		return err
	}
	if !r.PeriodEnd.After(r.PeriodStart) {
		return ierr.NewError("period end must be after period start").
			WithHint("Please provide a valid report period").
			WithReportableDetails(map[string]any{
				"period_start": r.PeriodStart,
				"period_end":   r.PeriodEnd,
			}).
			Mark(ierr.ErrValidation)
	}
	if r.State != nil && r.Country == "" {
		return ierr.NewError("state requires a country").
			WithHint("Please provide the country of the state").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Jurisdiction returns nil when the report spans every jurisdiction.
func (r *GenerateTaxReportRequest) Jurisdiction() *types.Jurisdiction {
	if r.Country == "" {
		return nil
	}
	j := types.Jurisdiction{Country: r.Country, State: r.State}.Normalize()
	return &j
}

type TaxReportResponse struct {
	*report.TaxReport `json:",inline"`
}
