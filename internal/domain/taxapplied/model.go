package taxapplied

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// TaxApplied records one tax calculation performed for a tenant. Tax
// reports are generated from these records.
type TaxApplied struct {
	ID                string                     `db:"id" json:"id"`
	CustomerID        *string                    `db:"customer_id" json:"customer_id,omitempty"`
	InvoiceID         *string                    `db:"invoice_id" json:"invoice_id,omitempty"`
	JurisdictionCode  string                     `db:"jurisdiction_code" json:"jurisdiction_code"`
	JurisdictionName  string                     `db:"jurisdiction_name" json:"jurisdiction_name"`
	Country           string                     `db:"country" json:"country"`
	State             *string                    `db:"state" json:"state,omitempty"`
	TaxableAmount     decimal.Decimal            `db:"taxable_amount" json:"taxable_amount"`
	TaxAmount         decimal.Decimal            `db:"tax_amount" json:"tax_amount"`
	TaxRate           decimal.Decimal            `db:"tax_rate" json:"tax_rate"`
	Currency          string                     `db:"currency" json:"currency"`
	CalculationMethod types.TaxCalculationMethod `db:"calculation_method" json:"calculation_method"`
	ExemptionID       *string                    `db:"exemption_id" json:"exemption_id,omitempty"`
	ExemptionType     *string                    `db:"exemption_type" json:"exemption_type,omitempty"`
	AppliedAt         time.Time                  `db:"applied_at" json:"applied_at"`
	types.BaseModel
}

func New(ctx context.Context, appliedAt time.Time) *TaxApplied {
	return &TaxApplied{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TAX_APPLIED),
		AppliedAt: appliedAt.UTC(),
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
}

// IsExempt reports whether the calculation was short-circuited by an exemption.
func (t *TaxApplied) IsExempt() bool {
	return t.ExemptionID != nil
}
