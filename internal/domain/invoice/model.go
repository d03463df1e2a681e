package invoice

import (
	"time"

	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Invoice is a billing document for one customer. Amount fields are always
// derived from line items and payments; see Compute and Validate.
type Invoice struct {
	ID             string              `db:"id" json:"id"`
	CustomerID     string              `db:"customer_id" json:"customer_id"`
	SubscriptionID *string             `db:"subscription_id" json:"subscription_id,omitempty"`
	BillingCycleID *string             `db:"billing_cycle_id" json:"billing_cycle_id,omitempty"`
	InvoiceNumber  string              `db:"invoice_number" json:"invoice_number"`
	Currency       string              `db:"currency" json:"currency"`
	Status         types.InvoiceStatus `db:"status" json:"status"`
	PaymentTerms   types.PaymentTerms  `db:"payment_terms" json:"payment_terms"`
	Subtotal       decimal.Decimal     `db:"subtotal" json:"subtotal"`
	TaxAmount      decimal.Decimal     `db:"tax_amount" json:"tax_amount"`
	DiscountAmount decimal.Decimal     `db:"discount_amount" json:"discount_amount"`
	TotalAmount    decimal.Decimal     `db:"total_amount" json:"total_amount"`
	AmountPaid     decimal.Decimal     `db:"amount_paid" json:"amount_paid"`
	AmountDue      decimal.Decimal     `db:"amount_due" json:"amount_due"`
	IssuedDate     time.Time           `db:"issued_date" json:"issued_date"`
	DueDate        time.Time           `db:"due_date" json:"due_date"`
	PaidDate       *time.Time          `db:"paid_date" json:"paid_date,omitempty"`
	VoidedDate     *time.Time          `db:"voided_date" json:"voided_date,omitempty"`
	Notes          string              `db:"notes" json:"notes,omitempty"`
	// Version is bumped on every update and used for optimistic locking.
	Version   int         `db:"version" json:"version"`
	LineItems []*LineItem `db:"-" json:"line_items"`
	types.BaseModel
}

// LineItem is one billable unit on an invoice.
type LineItem struct {
	ID             string             `db:"id" json:"id"`
	InvoiceID      string             `db:"invoice_id" json:"invoice_id"`
	Description    string             `db:"description" json:"description"`
	LineItemType   types.LineItemType `db:"line_item_type" json:"line_item_type"`
	Quantity       decimal.Decimal    `db:"quantity" json:"quantity"`
	UnitPrice      decimal.Decimal    `db:"unit_price" json:"unit_price"`
	TaxRate        *decimal.Decimal   `db:"tax_rate" json:"tax_rate,omitempty"`
	DiscountAmount *decimal.Decimal   `db:"discount_amount" json:"discount_amount,omitempty"`
	PeriodStart    *time.Time         `db:"period_start" json:"period_start,omitempty"`
	PeriodEnd      *time.Time         `db:"period_end" json:"period_end,omitempty"`
	types.BaseModel
}

// Amount is quantity times unit price, rounded to cents.
func (li *LineItem) Amount() decimal.Decimal {
	return types.RoundAmount(li.Quantity.Mul(li.UnitPrice))
}

// TaxAmount applies the item's own rate to its amount; zero when the item has no rate.
func (li *LineItem) TaxAmount() decimal.Decimal {
	if li.TaxRate == nil {
		return decimal.Zero
	}
	return types.RoundAmount(li.Amount().Mul(*li.TaxRate))
}

func (li *LineItem) Discount() decimal.Decimal {
	return lo.FromPtrOr(li.DiscountAmount, decimal.Zero)
}

func (inv *Invoice) IsPaid() bool {
	return inv.Status == types.InvoiceStatusPaid
}

func (inv *Invoice) IsVoided() bool {
	return inv.Status == types.InvoiceStatusVoided
}
