package types

import (
	"regexp"
	"strings"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/samber/lo"
)

type TaxType string

const (
	TaxTypeSalesTax TaxType = "sales_tax"
	TaxTypeVAT      TaxType = "vat"
	TaxTypeGST      TaxType = "gst"
	TaxTypeHST      TaxType = "hst"
	TaxTypePST      TaxType = "pst"
	TaxTypeQST      TaxType = "qst"
)

func (t TaxType) Validate() error {
	allowed := []TaxType{
		TaxTypeSalesTax,
		TaxTypeVAT,
		TaxTypeGST,
		TaxTypeHST,
		TaxTypePST,
		TaxTypeQST,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid tax type").
			WithHint("Please provide a valid tax type").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

type ExemptionStatus string

const (
	ExemptionStatusPending  ExemptionStatus = "pending"
	ExemptionStatusApproved ExemptionStatus = "approved"
	ExemptionStatusRejected ExemptionStatus = "rejected"
	ExemptionStatusExpired  ExemptionStatus = "expired"
)

func (s ExemptionStatus) Validate() error {
	allowed := []ExemptionStatus{
		ExemptionStatusPending,
		ExemptionStatusApproved,
		ExemptionStatusRejected,
		ExemptionStatusExpired,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid exemption status").
			WithHint("Please provide a valid exemption status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TaxProvider selects where tax is computed. Configured, never derived.
type TaxProvider string

const (
	TaxProviderManual             TaxProvider = "manual"
	TaxProviderIntegratedPlatform TaxProvider = "integrated-platform"
	TaxProviderExternal           TaxProvider = "external"
)

func (p TaxProvider) Validate() error {
	allowed := []TaxProvider{
		TaxProviderManual,
		TaxProviderIntegratedPlatform,
		TaxProviderExternal,
	}
	if !lo.Contains(allowed, p) {
		return ierr.NewError("invalid tax provider").
			WithHint("Tax provider must be manual, integrated-platform or external").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"value":   p,
			}).
			Mark(ierr.ErrConfiguration)
	}
	return nil
}

// TaxCalculationMethod records which path produced a tax result
type TaxCalculationMethod string

const (
	TaxCalculationManual   TaxCalculationMethod = "manual"
	TaxCalculationPlatform TaxCalculationMethod = "platform"
	TaxCalculationExternal TaxCalculationMethod = "external"
)

type TaxReportType string

const (
	TaxReportTypeSummary    TaxReportType = "summary"
	TaxReportTypeDetailed   TaxReportType = "detailed"
	TaxReportTypeExemptions TaxReportType = "exemptions"
	TaxReportTypeAudit      TaxReportType = "audit"
)

func (t TaxReportType) Validate() error {
	allowed := []TaxReportType{
		TaxReportTypeSummary,
		TaxReportTypeDetailed,
		TaxReportTypeExemptions,
		TaxReportTypeAudit,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid tax report type").
			WithHint("Report type must be summary, detailed, exemptions or audit").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

var (
	countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)
	stateCodePattern   = regexp.MustCompile(`^[A-Z0-9]{1,3}$`)
)

// Jurisdiction is a country plus optional subdivision, both upper-case codes.
type Jurisdiction struct {
	Country string  `json:"country" db:"country"`
	State   *string `json:"state,omitempty" db:"state"`
}

// Normalize upper-cases codes and drops an empty state.
func (j Jurisdiction) Normalize() Jurisdiction {
	out := Jurisdiction{Country: strings.ToUpper(strings.TrimSpace(j.Country))}
	if j.State != nil {
		if s := strings.ToUpper(strings.TrimSpace(*j.State)); s != "" {
			out.State = lo.ToPtr(s)
		}
	}
	return out
}

// Code renders the jurisdiction as COUNTRY or COUNTRY-STATE.
func (j Jurisdiction) Code() string {
	if j.State != nil && *j.State != "" {
		return j.Country + "-" + *j.State
	}
	return j.Country
}

func (j Jurisdiction) StateOrEmpty() string {
	return lo.FromPtr(j.State)
}

func (j Jurisdiction) Validate() error {
	n := j.Normalize()
	if !countryCodePattern.MatchString(n.Country) {
		return ierr.NewError("invalid country code").
			WithHint("Country must be an ISO 3166-1 alpha-2 code").
			WithReportableDetails(map[string]any{
				"country": j.Country,
			}).
			Mark(ierr.ErrValidation)
	}
	if n.State != nil && !stateCodePattern.MatchString(*n.State) {
		return ierr.NewError("invalid state code").
			WithHint("State must be alphanumeric and at most 3 characters").
			WithReportableDetails(map[string]any{
				"state": *j.State,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
