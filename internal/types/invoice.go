package types

import (
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus is the payment lifecycle of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusPending       InvoiceStatus = "pending"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusVoided        InvoiceStatus = "voided"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusPending,
		InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid,
		InvoiceStatusVoided,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentTerms determines the due date offset from the issued date
type PaymentTerms string

const (
	PaymentTermsDueOnReceipt PaymentTerms = "due_on_receipt"
	PaymentTermsNet15        PaymentTerms = "net_15"
	PaymentTermsNet30        PaymentTerms = "net_30"
	PaymentTermsNet45        PaymentTerms = "net_45"
	PaymentTermsNet60        PaymentTerms = "net_60"
	PaymentTermsNet90        PaymentTerms = "net_90"

	DefaultPaymentTerms = PaymentTermsNet30
)

var paymentTermDays = map[PaymentTerms]int{
	PaymentTermsDueOnReceipt: 0,
	PaymentTermsNet15:        15,
	PaymentTermsNet30:        30,
	PaymentTermsNet45:        45,
	PaymentTermsNet60:        60,
	PaymentTermsNet90:        90,
}

func (p PaymentTerms) String() string {
	return string(p)
}

// Days returns the due date offset in days. Unknown or empty terms fall back to net 30.
func (p PaymentTerms) Days() int {
	if days, ok := paymentTermDays[p]; ok {
		return days
	}
	return paymentTermDays[DefaultPaymentTerms]
}

func (p PaymentTerms) Validate() error {
	if p == "" {
		return nil
	}
	if _, ok := paymentTermDays[p]; !ok {
		return ierr.NewError("invalid payment terms").
			WithHint("Please provide valid payment terms").
			WithReportableDetails(map[string]any{
				"allowed": lo.Keys(paymentTermDays),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// LineItemType classifies what an invoice line item charges for
type LineItemType string

const (
	LineItemTypeSubscription LineItemType = "subscription"
	LineItemTypeOneTime      LineItemType = "one_time"
	LineItemTypeUsage        LineItemType = "usage"
	LineItemTypeProration    LineItemType = "proration"
)

func (t LineItemType) Validate() error {
	allowed := []LineItemType{
		LineItemTypeSubscription,
		LineItemTypeOneTime,
		LineItemTypeUsage,
		LineItemTypeProration,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid line item type").
			WithHint("Please provide a valid line item type").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
