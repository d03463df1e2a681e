package dto

import (
	"time"

	"github.com/flexprice/billingcore/internal/domain/invoice"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/flexprice/billingcore/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type InvoiceLineItemRequest struct {
	Description    string             `json:"description,omitempty"`
	LineItemType   types.LineItemType `json:"line_item_type,omitempty"`
	Quantity       decimal.Decimal    `json:"quantity"`
	UnitPrice      decimal.Decimal    `json:"unit_price"`
	TaxRate        *decimal.Decimal   `json:"tax_rate,omitempty"`
	DiscountAmount *decimal.Decimal   `json:"discount_amount,omitempty"`
	PeriodStart    *time.Time         `json:"period_start,omitempty"`
	PeriodEnd      *time.Time         `json:"period_end,omitempty"`
}

func (r InvoiceLineItemRequest) ToParams() invoice.LineItemParams {
	return invoice.LineItemParams{
		Description:    r.Description,
		LineItemType:   r.LineItemType,
		Quantity:       r.Quantity,
		UnitPrice:      r.UnitPrice,
		TaxRate:        r.TaxRate,
		DiscountAmount: r.DiscountAmount,
		PeriodStart:    r.PeriodStart,
		PeriodEnd:      r.PeriodEnd,
	}
}

func toLineItemParams(items []InvoiceLineItemRequest) []invoice.LineItemParams {
	return lo.Map(items, func(li InvoiceLineItemRequest, _ int) invoice.LineItemParams {
		return li.ToParams()
	})
}

// CreateInvoiceRequest represents the request to create a draft invoice
type CreateInvoiceRequest struct {
	CustomerID     string                   `json:"customer_id" validate:"required"`
	SubscriptionID *string                  `json:"subscription_id,omitempty"`
	BillingCycleID *string                  `json:"billing_cycle_id,omitempty"`
	Currency       string                   `json:"currency,omitempty" validate:"omitempty,len=3"`
	PaymentTerms   types.PaymentTerms       `json:"payment_terms,omitempty"`
	DueDate        *time.Time               `json:"due_date,omitempty"`
	Notes          string                   `json:"notes,omitempty"`
	LineItems      []InvoiceLineItemRequest `json:"line_items" validate:"required,min=1"`
}

func (r *CreateInvoiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.ToBuildParams().Validate()
}

func (r *CreateInvoiceRequest) ToBuildParams() invoice.BuildParams {
	return invoice.BuildParams{
		CustomerID:     r.CustomerID,
		SubscriptionID: r.SubscriptionID,
		BillingCycleID: r.BillingCycleID,
		Currency:       r.Currency,
		PaymentTerms:   r.PaymentTerms,
		DueDate:        r.DueDate,
		Notes:          r.Notes,
		LineItems:      toLineItemParams(r.LineItems),
	}
}

// UpdateInvoiceRequest replaces line items and/or the due date. Totals are
// always re-derived.
type UpdateInvoiceRequest struct {
	LineItems []InvoiceLineItemRequest `json:"line_items,omitempty"`
	DueDate   *time.Time               `json:"due_date,omitempty"`
	Notes     *string                  `json:"notes,omitempty"`
}

func (r *UpdateInvoiceRequest) Validate() error {
	if len(r.LineItems) == 0 && r.DueDate == nil && r.Notes == nil {
		return ierr.NewError("nothing to update").
			WithHint("Provide line items, a due date or notes").
			Mark(ierr.ErrValidation)
	}
	for i, li := range r.LineItems {
		if err := li.ToParams().Validate(); err != nil {
			return ierr.WithError(err).
				WithReportableDetails(map[string]any{
					"line_item_index": i,
				}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

func (r *UpdateInvoiceRequest) LineItemParams() []invoice.LineItemParams {
	return toLineItemParams(r.LineItems)
}

type MarkAsPaidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (r *MarkAsPaidRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return ierr.NewError("payment amount must be positive").
			WithHint("Please provide a positive payment amount").
			WithReportableDetails(map[string]any{
				"amount": r.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

type InvoiceResponse struct {
	*invoice.Invoice `json:",inline"`
}

func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	return &InvoiceResponse{Invoice: inv}
}

type ListInvoicesResponse = types.ListResponse[*InvoiceResponse]
