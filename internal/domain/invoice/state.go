package invoice

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/audit"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

func (inv *Invoice) transition(to types.InvoiceStatus, now time.Time) *audit.StateTransition {
	t := audit.NewTransition(types.EntityTypeInvoice, inv.ID, inv.TenantID, string(inv.Status), string(to), now)
	inv.Status = to
	return t
}

func (inv *Invoice) conflict(op string, allowed ...types.InvoiceStatus) error {
	return ierr.NewErrorf("cannot %s invoice in status %s", op, inv.Status).
		WithHintf("Invoice %s is %s", inv.InvoiceNumber, inv.Status).
		WithReportableDetails(map[string]any{
			"invoice_id":       inv.ID,
			"status":           inv.Status,
			"allowed_statuses": allowed,
		}).
		Mark(ierr.ErrConflict)
}

// Send finalizes a draft so it can receive payments.
func (inv *Invoice) Send(now time.Time) (*audit.StateTransition, error) {
	if inv.Status != types.InvoiceStatusDraft {
		return nil, inv.conflict("send", types.InvoiceStatusDraft)
	}
	return inv.transition(types.InvoiceStatusPending, now).
		WithAmount("total_amount", inv.TotalAmount), nil
}

// MarkAsPaid records a payment. A payment that leaves nothing due moves the
// invoice to paid; anything less moves it to partially paid.
func (inv *Invoice) MarkAsPaid(amount decimal.Decimal, now time.Time) (*audit.StateTransition, error) {
	if !amount.IsPositive() {
		return nil, ierr.NewError("payment amount must be positive").
			WithHint("Please provide a positive payment amount").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
				"amount":     amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	payable := []types.InvoiceStatus{types.InvoiceStatusPending, types.InvoiceStatusPartiallyPaid}
	if !lo.Contains(payable, inv.Status) {
		return nil, inv.conflict("pay", payable...)
	}

	inv.AmountPaid = inv.AmountPaid.Add(amount)
	inv.recomputeAmountDue()

	var t *audit.StateTransition
	if inv.AmountDue.IsZero() {
		paidAt := now.UTC()
		inv.PaidDate = &paidAt
		t = inv.transition(types.InvoiceStatusPaid, now)
	} else {
		t = inv.transition(types.InvoiceStatusPartiallyPaid, now)
	}

	return t.WithAmount("payment_amount", amount).
		WithAmount("amount_paid", inv.AmountPaid).
		WithAmount("amount_due", inv.AmountDue), nil
}

// Void cancels an unpaid invoice. Voided and paid invoices are final.
func (inv *Invoice) Void(now time.Time) (*audit.StateTransition, error) {
	if inv.IsPaid() || inv.IsVoided() {
		return nil, inv.conflict("void",
			types.InvoiceStatusDraft,
			types.InvoiceStatusPending,
			types.InvoiceStatusPartiallyPaid,
		)
	}
	voidedAt := now.UTC()
	inv.VoidedDate = &voidedAt
	return inv.transition(types.InvoiceStatusVoided, now).
		WithAmount("amount_due", inv.AmountDue), nil
}

// CanUpdate reports whether line items may still change.
func (inv *Invoice) CanUpdate() error {
	if inv.IsPaid() || inv.IsVoided() {
		return inv.conflict("update",
			types.InvoiceStatusDraft,
			types.InvoiceStatusPending,
			types.InvoiceStatusPartiallyPaid,
		)
	}
	return nil
}

// CanDelete reports whether the invoice may be removed. Only paid invoices are protected.
func (inv *Invoice) CanDelete() error {
	if inv.IsPaid() {
		return inv.conflict("delete",
			types.InvoiceStatusDraft,
			types.InvoiceStatusPending,
			types.InvoiceStatusPartiallyPaid,
			types.InvoiceStatusVoided,
		)
	}
	return nil
}

// ReplaceLineItems swaps all line items and recomputes totals, keeping what
// has already been paid. If the new total is covered by earlier payments a
// partially paid invoice becomes paid and the transition is returned.
func (inv *Invoice) ReplaceLineItems(ctx context.Context, params []LineItemParams, now time.Time) (*audit.StateTransition, error) {
	if err := inv.CanUpdate(); err != nil {
		return nil, err
	}
	if len(params) == 0 {
		return nil, ierr.NewError("at least one line item is required").
			WithHint("Please provide line items for the invoice").
			Mark(ierr.ErrValidation)
	}
	for i, p := range params {
		if err := p.Validate(); err != nil {
			return nil, ierr.WithError(err).
				WithReportableDetails(map[string]any{
					"line_item_index": i,
				}).
				Mark(ierr.ErrValidation)
		}
	}

	inv.LineItems = NewLineItems(ctx, inv.ID, params)
	inv.applyTotals(ComputeTotals(inv.LineItems))
	inv.BaseModel.Touch(ctx, now)

	if inv.Status == types.InvoiceStatusPartiallyPaid && inv.AmountDue.IsZero() {
		paidAt := now.UTC()
		inv.PaidDate = &paidAt
		return inv.transition(types.InvoiceStatusPaid, now).
			WithAmount("amount_paid", inv.AmountPaid), nil
	}
	return nil, nil
}
