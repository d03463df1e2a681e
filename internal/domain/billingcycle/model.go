package billingcycle

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/audit"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// BillingCycle is one scheduled recurrence of invoice generation.
type BillingCycle struct {
	ID                  string                   `db:"id" json:"id"`
	SubscriptionID      *string                  `db:"subscription_id" json:"subscription_id,omitempty"`
	CycleType           types.BillingCycleType   `db:"cycle_type" json:"cycle_type"`
	StartDate           time.Time                `db:"start_date" json:"start_date"`
	EndDate             time.Time                `db:"end_date" json:"end_date"`
	BillingDate         time.Time                `db:"billing_date" json:"billing_date"`
	TotalAmount         decimal.Decimal          `db:"total_amount" json:"total_amount"`
	Currency            string                   `db:"currency" json:"currency"`
	Status              types.BillingCycleStatus `db:"status" json:"status"`
	InvoiceID           *string                  `db:"invoice_id" json:"invoice_id,omitempty"`
	ProcessingStartedAt *time.Time               `db:"processing_started_at" json:"processing_started_at,omitempty"`
	FailureReason       *string                  `db:"failure_reason" json:"failure_reason,omitempty"`
	types.BaseModel
}

// Period is a half open billing interval [Start, End).
type Period struct {
	Start       time.Time
	End         time.Time
	BillingDate time.Time
}

// NextPeriod starts one cycle unit after now and spans one unit.
func NextPeriod(now time.Time, cycle types.BillingCycleType) (Period, error) {
	start, err := types.NextBillingDate(now.UTC(), cycle)
	if err != nil {
		return Period{}, err
	}
	end, err := types.NextBillingDate(start, cycle)
	if err != nil {
		return Period{}, err
	}
	return Period{Start: start, End: end, BillingDate: start}, nil
}

// New creates a pending cycle for the tenant in ctx.
func New(ctx context.Context, subscriptionID *string, cycle types.BillingCycleType, p Period, amount decimal.Decimal, currency string) *BillingCycle {
	return &BillingCycle{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_CYCLE),
		SubscriptionID: subscriptionID,
		CycleType:      cycle,
		StartDate:      p.Start,
		EndDate:        p.End,
		BillingDate:    p.BillingDate,
		TotalAmount:    amount,
		Currency:       types.NormalizeCurrency(currency),
		Status:         types.BillingCycleStatusPending,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
}

func (c *BillingCycle) Validate() error {
	if err := c.CycleType.Validate(); err != nil {
		return err
	}
	if c.EndDate.Before(c.StartDate) {
		return ierr.NewError("billing cycle end date precedes start date").
			WithHint("Please provide a valid billing period").
			WithReportableDetails(map[string]any{
				"start_date": c.StartDate,
				"end_date":   c.EndDate,
			}).
			Mark(ierr.ErrValidation)
	}
	if c.TotalAmount.IsNegative() {
		return ierr.NewError("billing cycle amount must not be negative").
			WithHint("Please provide a non-negative amount").
			Mark(ierr.ErrValidation)
	}
	return types.ValidateCurrencyCode(c.Currency)
}

func (c *BillingCycle) transition(to types.BillingCycleStatus, now time.Time) *audit.StateTransition {
	t := audit.NewTransition(types.EntityTypeBillingCycle, c.ID, c.TenantID, string(c.Status), string(to), now)
	c.Status = to
	c.UpdatedAt = now.UTC()
	return t
}

func (c *BillingCycle) conflict(op string, required types.BillingCycleStatus) error {
	return ierr.NewErrorf("cannot %s billing cycle: status is %s, not %s", op, c.Status, required).
		WithHintf("Billing cycle is %s", c.Status).
		WithReportableDetails(map[string]any{
			"billing_cycle_id": c.ID,
			"status":           c.Status,
			"required_status":  required,
		}).
		Mark(ierr.ErrConflict)
}

// BeginProcessing claims a pending cycle. The store must persist it with a
// compare-and-set on the pending status so only one caller wins.
func (c *BillingCycle) BeginProcessing(now time.Time) (*audit.StateTransition, error) {
	if c.Status != types.BillingCycleStatusPending {
		return nil, c.conflict("process", types.BillingCycleStatusPending)
	}
	started := now.UTC()
	c.ProcessingStartedAt = &started
	c.FailureReason = nil
	return c.transition(types.BillingCycleStatusProcessing, now), nil
}

// CompleteProcessing links the generated invoice and marks the cycle paid.
// No payment has been collected at this point; the cycle is paid as soon as
// it is invoiced.
func (c *BillingCycle) CompleteProcessing(invoiceID string, total decimal.Decimal, currency string, now time.Time) (*audit.StateTransition, error) {
	if c.Status != types.BillingCycleStatusProcessing {
		return nil, c.conflict("complete", types.BillingCycleStatusProcessing)
	}
	c.InvoiceID = &invoiceID
	c.TotalAmount = total
	c.Currency = currency
	c.ProcessingStartedAt = nil
	return c.transition(types.BillingCycleStatusPaid, now).
		WithAmount("total_amount", total), nil
}

// RevertProcessing returns a failed cycle to pending so it can be retried.
func (c *BillingCycle) RevertProcessing(reason string, now time.Time) (*audit.StateTransition, error) {
	if c.Status != types.BillingCycleStatusProcessing {
		return nil, c.conflict("revert", types.BillingCycleStatusProcessing)
	}
	c.ProcessingStartedAt = nil
	c.FailureReason = &reason
	return c.transition(types.BillingCycleStatusPending, now), nil
}

// Cancel is only legal while the cycle is pending. Paid is terminal.
func (c *BillingCycle) Cancel(now time.Time) (*audit.StateTransition, error) {
	if c.Status != types.BillingCycleStatusPending {
		return nil, c.conflict("cancel", types.BillingCycleStatusPending)
	}
	return c.transition(types.BillingCycleStatusCancelled, now), nil
}
