package invoice

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const numberPrefix = "INV"

// LineItemParams is the caller supplied description of a line item.
type LineItemParams struct {
	Description    string
	LineItemType   types.LineItemType
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	TaxRate        *decimal.Decimal
	DiscountAmount *decimal.Decimal
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
}

// BuildParams is everything needed to compute a draft invoice.
type BuildParams struct {
	CustomerID     string
	SubscriptionID *string
	BillingCycleID *string
	Currency       string
	PaymentTerms   types.PaymentTerms
	DueDate        *time.Time
	Notes          string
	LineItems      []LineItemParams
}

// Totals are the derived amounts of a set of line items.
type Totals struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
}

func (p LineItemParams) Validate() error {
	if !p.Quantity.IsPositive() {
		return ierr.NewError("line item quantity must be positive").
			WithHint("Please provide a positive quantity").
			WithReportableDetails(map[string]any{
				"quantity": p.Quantity.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if p.UnitPrice.IsNegative() {
		return ierr.NewError("line item unit price must not be negative").
			WithHint("Please provide a non-negative unit price").
			WithReportableDetails(map[string]any{
				"unit_price": p.UnitPrice.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if p.TaxRate != nil && (p.TaxRate.IsNegative() || p.TaxRate.GreaterThan(decimal.NewFromInt(1))) {
		return ierr.NewError("line item tax rate must be between 0 and 1").
			WithHint("Rates are fractions, e.g. 0.1 for 10%").
			Mark(ierr.ErrValidation)
	}
	if p.DiscountAmount != nil && p.DiscountAmount.IsNegative() {
		return ierr.NewError("line item discount must not be negative").
			WithHint("Please provide a non-negative discount").
			Mark(ierr.ErrValidation)
	}
	if p.LineItemType != "" {
		if err := p.LineItemType.Validate(); err != nil {
			return err
		}
	}
	if p.PeriodStart != nil && p.PeriodEnd != nil && p.PeriodEnd.Before(*p.PeriodStart) {
		return ierr.NewError("line item period end precedes start").
			WithHint("Please provide a valid service period").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (p BuildParams) Validate() error {
	if strings.TrimSpace(p.CustomerID) == "" {
		return ierr.NewError("customer_id is required").
			WithHint("Please provide the customer to invoice").
			Mark(ierr.ErrValidation)
	}
	if len(p.LineItems) == 0 {
		return ierr.NewError("at least one line item is required").
			WithHint("Please provide line items for the invoice").
			Mark(ierr.ErrValidation)
	}
	if err := types.ValidateCurrencyCode(types.NormalizeCurrency(p.Currency)); err != nil {
		return err
	}
	if err := p.PaymentTerms.Validate(); err != nil {
		return err
	}
	for i, item := range p.LineItems {
		if err := item.Validate(); err != nil {
			return ierr.WithError(err).
				WithReportableDetails(map[string]any{
					"line_item_index": i,
				}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// NewLineItems materializes params into line items owned by invoiceID.
func NewLineItems(ctx context.Context, invoiceID string, params []LineItemParams) []*LineItem {
	return lo.Map(params, func(p LineItemParams, _ int) *LineItem {
		return &LineItem{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
			InvoiceID:      invoiceID,
			Description:    p.Description,
			LineItemType:   lo.Ternary(p.LineItemType == "", types.LineItemTypeOneTime, p.LineItemType),
			Quantity:       p.Quantity,
			UnitPrice:      p.UnitPrice,
			TaxRate:        p.TaxRate,
			DiscountAmount: p.DiscountAmount,
			PeriodStart:    p.PeriodStart,
			PeriodEnd:      p.PeriodEnd,
			BaseModel:      types.GetDefaultBaseModel(ctx),
		}
	})
}

// ComputeTotals sums line items. Each item's tax uses its own rate; this is
// independent of the tax resolver's aggregate calculation.
func ComputeTotals(items []*LineItem) Totals {
	t := Totals{
		Subtotal:       decimal.Zero,
		TaxAmount:      decimal.Zero,
		DiscountAmount: decimal.Zero,
	}
	for _, item := range items {
		t.Subtotal = t.Subtotal.Add(item.Amount())
		t.TaxAmount = t.TaxAmount.Add(item.TaxAmount())
		t.DiscountAmount = t.DiscountAmount.Add(item.Discount())
	}
	t.DiscountAmount = types.RoundAmount(t.DiscountAmount)
	t.TotalAmount = t.Subtotal.Add(t.TaxAmount).Sub(t.DiscountAmount)
	return t
}

// DueDate returns the explicit due date or issued + payment term offset.
func DueDate(issued time.Time, terms types.PaymentTerms, explicit *time.Time) time.Time {
	if explicit != nil {
		return explicit.UTC()
	}
	return issued.AddDate(0, 0, terms.Days())
}

// Build computes a draft invoice. The caller supplies the invoice number
// because numbering needs the sequence store.
func Build(ctx context.Context, params BuildParams, number string, now time.Time) (*Invoice, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	terms := lo.Ternary(params.PaymentTerms == "", types.DefaultPaymentTerms, params.PaymentTerms)
	issued := now.UTC()

	inv := &Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		CustomerID:     params.CustomerID,
		SubscriptionID: params.SubscriptionID,
		BillingCycleID: params.BillingCycleID,
		InvoiceNumber:  number,
		Currency:       types.NormalizeCurrency(params.Currency),
		Status:         types.InvoiceStatusDraft,
		PaymentTerms:   terms,
		AmountPaid:     decimal.Zero,
		IssuedDate:     issued,
		DueDate:        DueDate(issued, terms, params.DueDate),
		Notes:          params.Notes,
		Version:        1,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	inv.LineItems = NewLineItems(ctx, inv.ID, params.LineItems)
	inv.applyTotals(ComputeTotals(inv.LineItems))

	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return inv, nil
}

func (inv *Invoice) applyTotals(t Totals) {
	inv.Subtotal = t.Subtotal
	inv.TaxAmount = t.TaxAmount
	inv.DiscountAmount = t.DiscountAmount
	inv.TotalAmount = t.TotalAmount
	inv.recomputeAmountDue()
}

func (inv *Invoice) recomputeAmountDue() {
	inv.AmountDue = decimal.Max(inv.TotalAmount.Sub(inv.AmountPaid), decimal.Zero)
}

// Validate asserts the monetary invariants. A failure is a defect in the
// caller, so it is reported as a system error rather than coerced.
func (inv *Invoice) Validate() error {
	expectedTotal := inv.Subtotal.Add(inv.TaxAmount).Sub(inv.DiscountAmount)
	if !inv.TotalAmount.Equal(expectedTotal) {
		return ierr.NewError("invoice total does not equal subtotal plus tax minus discount").
			WithReportableDetails(map[string]any{
				"invoice_id":      inv.ID,
				"subtotal":        inv.Subtotal.String(),
				"tax_amount":      inv.TaxAmount.String(),
				"discount_amount": inv.DiscountAmount.String(),
				"total_amount":    inv.TotalAmount.String(),
			}).
			Mark(ierr.ErrSystem)
	}
	expectedDue := decimal.Max(inv.TotalAmount.Sub(inv.AmountPaid), decimal.Zero)
	if !inv.AmountDue.Equal(expectedDue) || inv.AmountDue.IsNegative() {
		return ierr.NewError("invoice amount due is inconsistent with total and amount paid").
			WithReportableDetails(map[string]any{
				"invoice_id":   inv.ID,
				"total_amount": inv.TotalAmount.String(),
				"amount_paid":  inv.AmountPaid.String(),
				"amount_due":   inv.AmountDue.String(),
			}).
			Mark(ierr.ErrSystem)
	}
	return nil
}

// FormatNumber renders INV-YYYYMM-NNNN. Sequences past 9999 keep growing in width.
func FormatNumber(yearMonth string, sequence int64) string {
	return fmt.Sprintf("%s-%s-%04d", numberPrefix, yearMonth, sequence)
}

// FallbackNumber derives a suffix from the clock when no sequence source is
// available. Two invoices in the same millisecond window can collide; the
// store's unique constraint catches that.
func FallbackNumber(now time.Time) string {
	return FormatNumber(types.YearMonth(now), now.UnixMilli()%10000)
}

// ParseSequence extracts the NNNN part of an invoice number for the given month.
func ParseSequence(number, yearMonth string) (int64, bool) {
	prefix := fmt.Sprintf("%s-%s-", numberPrefix, yearMonth)
	if !strings.HasPrefix(number, prefix) {
		return 0, false
	}
	seq, err := strconv.ParseInt(strings.TrimPrefix(number, prefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}
