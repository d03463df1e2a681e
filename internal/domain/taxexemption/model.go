package taxexemption

import (
	"strings"
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

// TaxExemption certifies that a tenant or one of its customers does not owe
// tax in a jurisdiction. A nil CustomerID makes it tenant-level.
type TaxExemption struct {
	ID                string                `db:"id" json:"id"`
	CustomerID        *string               `db:"customer_id" json:"customer_id,omitempty"`
	ExemptionType     string                `db:"exemption_type" json:"exemption_type"`
	CertificateNumber string                `db:"certificate_number" json:"certificate_number"`
	Status            types.ExemptionStatus `db:"status" json:"status"`
	Country           string                `db:"country" json:"country"`
	State             *string               `db:"state" json:"state,omitempty"`
	// Jurisdictions lists extra jurisdiction codes (e.g. "US-CA") the certificate covers.
	Jurisdictions  pq.StringArray `db:"jurisdictions" json:"jurisdictions,omitempty"`
	IssueDate      time.Time      `db:"issue_date" json:"issue_date"`
	ExpirationDate *time.Time     `db:"expiration_date" json:"expiration_date,omitempty"`
	types.BaseModel
}

// IsValid reports whether the exemption is approved and unexpired at now.
func (e *TaxExemption) IsValid(now time.Time) bool {
	if e.Status != types.ExemptionStatusApproved {
		return false
	}
	return e.ExpirationDate == nil || !e.ExpirationDate.Before(now)
}

// IsTenantLevel reports whether the exemption covers every customer of the tenant.
func (e *TaxExemption) IsTenantLevel() bool {
	return e.CustomerID == nil || *e.CustomerID == ""
}

// AppliesTo reports whether the exemption covers the jurisdiction: either the
// country matches and the exemption has no state or the same state, or the
// jurisdiction code is listed explicitly.
func (e *TaxExemption) AppliesTo(j types.Jurisdiction) bool {
	j = j.Normalize()
	if lo.ContainsBy(e.Jurisdictions, func(code string) bool {
		return strings.EqualFold(code, j.Code())
	}) {
		return true
	}
	if !strings.EqualFold(e.Country, j.Country) {
		return false
	}
	if e.State == nil || *e.State == "" {
		return true
	}
	return j.State != nil && strings.EqualFold(*e.State, *j.State)
}

func (e *TaxExemption) Validate() error {
	if strings.TrimSpace(e.CertificateNumber) == "" {
		return ierr.NewError("certificate number is required").
			WithHint("Please provide the exemption certificate number").
			Mark(ierr.ErrValidation)
	}
	if err := e.Status.Validate(); err != nil {
		return err
	}
	if err := (types.Jurisdiction{Country: e.Country, State: e.State}).Validate(); err != nil {
		return err
	}
	if e.ExpirationDate != nil && e.ExpirationDate.Before(e.IssueDate) {
		return ierr.NewError("expiration date must not precede issue date").
			WithHint("Please provide a valid expiration date").
			Mark(ierr.ErrValidation)
	}
	return nil
}
