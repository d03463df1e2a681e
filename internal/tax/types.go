package tax

import (
	"context"
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// LineItem is an optional per-line breakdown of the taxable amount. Providers
// that price tax per line use it; the manual path only uses Request.Amount.
type LineItem struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	TaxCode   string          `json:"tax_code,omitempty"`
}

// Address is the customer location sent to tax providers.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country"`
}

// Request is a fully hydrated tax calculation input.
type Request struct {
	CustomerID   *string            `json:"customer_id,omitempty"`
	Amount       decimal.Decimal    `json:"amount"`
	Currency     string             `json:"currency"`
	Jurisdiction types.Jurisdiction `json:"jurisdiction"`
	LineItems    []LineItem         `json:"line_items,omitempty"`
	ExemptionID  *string            `json:"exemption_id,omitempty"`
	Address      *Address           `json:"address,omitempty"`
	// At is the instant rates and exemptions are evaluated at.
	At time.Time `json:"at"`
}

func (r Request) Validate() error {
	if r.Amount.IsNegative() {
		return ierr.NewError("amount must not be negative").
			WithHint("Please provide a non-negative taxable amount").
			WithReportableDetails(map[string]any{
				"amount": r.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if err := r.Jurisdiction.Validate(); err != nil {
		return err
	}
	if err := types.ValidateCurrencyCode(types.NormalizeCurrency(r.Currency)); err != nil {
		return err
	}
	for _, li := range r.LineItems {
		if li.Amount.IsNegative() {
			return ierr.NewError("line item amount must not be negative").
				WithHint("Please provide non-negative line item amounts").
				WithReportableDetails(map[string]any{
					"reference": li.Reference,
				}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// JurisdictionInfo describes where the tax was resolved.
type JurisdictionInfo struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   *string `json:"state,omitempty"`
}

// TaxInfo is one component of a provider's tax breakdown.
type TaxInfo struct {
	Jurisdiction string          `json:"jurisdiction"`
	Rate         decimal.Decimal `json:"rate"`
	Amount       decimal.Decimal `json:"amount"`
}

// ExemptionInfo is attached when an exemption zeroed the tax.
type ExemptionInfo struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	CertificateNumber string `json:"certificate_number"`
}

// Result is the outcome of a tax calculation.
type Result struct {
	Amount            decimal.Decimal            `json:"amount"`
	TaxAmount         decimal.Decimal            `json:"tax_amount"`
	TotalAmount       decimal.Decimal            `json:"total_amount"`
	TaxRate           decimal.Decimal            `json:"tax_rate"`
	Currency          string                     `json:"currency"`
	CalculationMethod types.TaxCalculationMethod `json:"calculation_method"`
	Jurisdiction      *JurisdictionInfo          `json:"jurisdiction,omitempty"`
	Taxes             []TaxInfo                  `json:"taxes,omitempty"`
	Exemption         *ExemptionInfo             `json:"exemption,omitempty"`
	TaxRateID         *string                    `json:"tax_rate_id,omitempty"`
	// FallbackReason is set when a provider failed and manual rates were used.
	FallbackReason string `json:"fallback_reason,omitempty"`
}

func (r *Result) IsExempt() bool {
	return r.Exemption != nil
}

// PlatformLineItem crosses the tax platform boundary in minor units.
type PlatformLineItem struct {
	AmountMinorUnits int64
	Reference        string
	TaxCode          string
}

type PlatformTaxRequest struct {
	Currency        string
	LineItems       []PlatformLineItem
	CustomerAddress Address
}

type PlatformTaxBreakdown struct {
	Jurisdiction        string
	Rate                decimal.Decimal
	TaxAmountMinorUnits int64
}

type PlatformLineItemResult struct {
	Reference    string
	TaxBreakdown []PlatformTaxBreakdown
}

type PlatformTaxResponse struct {
	LineItems                    []PlatformLineItemResult
	TaxAmountExclusiveMinorUnits int64
}

// PlatformClient is a third party tax service such as Stripe Tax.
type PlatformClient interface {
	CalculateTax(ctx context.Context, req PlatformTaxRequest) (*PlatformTaxResponse, error)
}

// ExternalTaxRequest is the payload sent to a generic external tax provider.
type ExternalTaxRequest struct {
	TenantID     string          `json:"tenant_id"`
	CustomerID   *string         `json:"customer_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Country      string          `json:"country"`
	State        *string         `json:"state,omitempty"`
	LineItems    []LineItem      `json:"line_items,omitempty"`
	CalculatedAt time.Time       `json:"calculated_at"`
}

type ExternalTaxResponse struct {
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	JurisdictionCode string          `json:"jurisdiction_code"`
	JurisdictionName string          `json:"jurisdiction_name"`
	Taxes            []TaxInfo       `json:"taxes,omitempty"`
}

// ExternalClient delegates tax calculation to a configured HTTP provider.
type ExternalClient interface {
	CalculateTax(ctx context.Context, req ExternalTaxRequest) (*ExternalTaxResponse, error)
}
