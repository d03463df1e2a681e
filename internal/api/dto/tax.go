package dto

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/taxapplied"
	"github.com/flexprice/billingcore/internal/domain/taxexemption"
	"github.com/flexprice/billingcore/internal/domain/taxrate"
	"github.com/flexprice/billingcore/internal/tax"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/flexprice/billingcore/internal/validator"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// TaxLineItemRequest is one optional line of a tax calculation.
type TaxLineItemRequest struct {
	Reference string          `json:"reference" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	TaxCode   string          `json:"tax_code,omitempty"`
}

type AddressRequest struct {
	Line1      string `json:"line1,omitempty" validate:"omitempty,max=255"`
	City       string `json:"city,omitempty" validate:"omitempty,max=100"`
	PostalCode string `json:"postal_code,omitempty" validate:"omitempty,max=20"`
	State      string `json:"state,omitempty" validate:"omitempty,max=100"`
	Country    string `json:"country" validate:"required,len=2"`
}

// CalculateTaxRequest asks for the tax owed on a charge in a jurisdiction.
type CalculateTaxRequest struct {
	CustomerID  *string              `json:"customer_id,omitempty"`
	InvoiceID   *string              `json:"invoice_id,omitempty"`
	Amount      decimal.Decimal      `json:"amount"`
	Currency    string               `json:"currency" validate:"required,len=3"`
	Country     string               `json:"country" validate:"required,len=2"`
	State       *string              `json:"state,omitempty" validate:"omitempty,max=3"`
	ExemptionID *string              `json:"exemption_id,omitempty"`
	LineItems   []TaxLineItemRequest `json:"line_items,omitempty" validate:"omitempty,dive"`
	Address     *AddressRequest      `json:"address,omitempty"`
}

func (r *CalculateTaxRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.ToTaxRequest(time.Now()).Validate()
}

func (r *CalculateTaxRequest) Jurisdiction() types.Jurisdiction {
	return types.Jurisdiction{Country: r.Country, State: r.State}.Normalize()
}

// ToTaxRequest hydrates the resolver input evaluated at the given instant.
func (r *CalculateTaxRequest) ToTaxRequest(at time.Time) tax.Request {
	req := tax.Request{
		CustomerID:   r.CustomerID,
		Amount:       r.Amount,
		Currency:     types.NormalizeCurrency(r.Currency),
		Jurisdiction: r.Jurisdiction(),
		ExemptionID:  r.ExemptionID,
		At:           at,
		LineItems: lo.Map(r.LineItems, func(li TaxLineItemRequest, _ int) tax.LineItem {
			return tax.LineItem{Reference: li.Reference, Amount: li.Amount, TaxCode: li.TaxCode}
		}),
	}
	if r.Address != nil {
		req.Address = &tax.Address{
			Line1:      r.Address.Line1,
			City:       r.Address.City,
			PostalCode: r.Address.PostalCode,
			State:      r.Address.State,
			Country:    r.Address.Country,
		}
	}
	return req
}

type TaxCalculationResponse struct {
	*tax.Result `json:",inline"`
	// TaxAppliedID references the persisted record of this calculation.
	TaxAppliedID string `json:"tax_applied_id"`
}

// CreateTaxRateRequest represents the request to create a tax rate
type CreateTaxRateRequest struct {
	Name           string           `json:"name" validate:"required"`
	Country        string           `json:"country" validate:"required,len=2"`
	State          *string          `json:"state,omitempty" validate:"omitempty,max=3"`
	TaxType        types.TaxType    `json:"tax_type" validate:"required"`
	Rate           decimal.Decimal  `json:"rate"`
	Threshold      *decimal.Decimal `json:"threshold,omitempty"`
	Enabled        *bool            `json:"enabled,omitempty"`
	EffectiveDate  *time.Time       `json:"effective_date,omitempty"`
	ExpirationDate *time.Time       `json:"expiration_date,omitempty"`
}

func (r *CreateTaxRateRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.TaxType.Validate()
}

func (r *CreateTaxRateRequest) ToTaxRate(ctx context.Context) *taxrate.TaxRate {
	rate := taxrate.New(ctx, r.Name, types.Jurisdiction{Country: r.Country, State: r.State}, r.TaxType, r.Rate)
	rate.Threshold = r.Threshold
	rate.Enabled = lo.FromPtrOr(r.Enabled, true)
	rate.EffectiveDate = r.EffectiveDate
	rate.ExpirationDate = r.ExpirationDate
	return rate
}

// UpdateTaxRateRequest only changes the fields that are provided.
type UpdateTaxRateRequest struct {
	Name           *string          `json:"name,omitempty"`
	Rate           *decimal.Decimal `json:"rate,omitempty"`
	Threshold      *decimal.Decimal `json:"threshold,omitempty"`
	Enabled        *bool            `json:"enabled,omitempty"`
	EffectiveDate  *time.Time       `json:"effective_date,omitempty"`
	ExpirationDate *time.Time       `json:"expiration_date,omitempty"`
}

func (r *UpdateTaxRateRequest) Apply(rate *taxrate.TaxRate) {
	if r.Name != nil {
		rate.Name = *r.Name
	}
	if r.Rate != nil {
		rate.Rate = *r.Rate
	}
	if r.Threshold != nil {
		rate.Threshold = r.Threshold
	}
	if r.Enabled != nil {
		rate.Enabled = *r.Enabled
	}
	if r.EffectiveDate != nil {
		rate.EffectiveDate = r.EffectiveDate
	}
	if r.ExpirationDate != nil {
		rate.ExpirationDate = r.ExpirationDate
	}
}

type TaxRateResponse struct {
	*taxrate.TaxRate `json:",inline"`
}

type ListTaxRatesResponse = types.ListResponse[*TaxRateResponse]

// CreateTaxExemptionRequest registers an exemption certificate. Omit
// customer_id to exempt the whole tenant.
type CreateTaxExemptionRequest struct {
	CustomerID        *string               `json:"customer_id,omitempty"`
	ExemptionType     string                `json:"exemption_type" validate:"required"`
	CertificateNumber string                `json:"certificate_number" validate:"required"`
	Status            types.ExemptionStatus `json:"status,omitempty"`
	Country           string                `json:"country" validate:"required,len=2"`
	State             *string               `json:"state,omitempty" validate:"omitempty,max=3"`
	Jurisdictions     []string              `json:"jurisdictions,omitempty"`
	IssueDate         *time.Time            `json:"issue_date,omitempty"`
	ExpirationDate    *time.Time            `json:"expiration_date,omitempty"`
}

func (r *CreateTaxExemptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Status != "" {
		return r.Status.Validate()
	}
	return nil
}

func (r *CreateTaxExemptionRequest) ToTaxExemption(ctx context.Context, now time.Time) *taxexemption.TaxExemption {
	j := types.Jurisdiction{Country: r.Country, State: r.State}.Normalize()
	return &taxexemption.TaxExemption{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TAX_EXEMPTION),
		CustomerID:        r.CustomerID,
		ExemptionType:     r.ExemptionType,
		CertificateNumber: r.CertificateNumber,
		Status:            lo.Ternary(r.Status == "", types.ExemptionStatusPending, r.Status),
		Country:           j.Country,
		State:             j.State,
		Jurisdictions:     pq.StringArray(r.Jurisdictions),
		IssueDate:         lo.FromPtrOr(r.IssueDate, now.UTC()),
		ExpirationDate:    r.ExpirationDate,
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}
}

type UpdateTaxExemptionStatusRequest struct {
	Status types.ExemptionStatus `json:"status" validate:"required"`
}

func (r *UpdateTaxExemptionStatusRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Status.Validate()
}

type TaxExemptionResponse struct {
	*taxexemption.TaxExemption `json:",inline"`
}

type ListTaxExemptionsResponse = types.ListResponse[*TaxExemptionResponse]

type TaxAppliedResponse struct {
	*taxapplied.TaxApplied `json:",inline"`
}

type ListTaxAppliedResponse = types.ListResponse[*TaxAppliedResponse]

