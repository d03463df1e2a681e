package proration

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
)

// Params is the hydrated input of a proration: the subscription's current
// period and amounts plus the instant of change.
type Params struct {
	SubscriptionID string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	CurrentAmount  decimal.Decimal
	NewAmount      decimal.Decimal
	ChangeDate     time.Time
}

// Result is the signed adjustment for the remainder of the period.
// Exactly one of ChargeAmount and CreditAmount is non-zero unless the
// adjustment itself is zero.
type Result struct {
	SubscriptionID  string          `json:"subscription_id"`
	PreviousAmount  decimal.Decimal `json:"previous_amount"`
	NewAmount       decimal.Decimal `json:"new_amount"`
	Fraction        decimal.Decimal `json:"fraction"`
	ProrationAmount decimal.Decimal `json:"proration_amount"`
	ChargeAmount    decimal.Decimal `json:"charge_amount"`
	CreditAmount    decimal.Decimal `json:"credit_amount"`
	ChangeDate      time.Time       `json:"change_date"`
}

// ZeroResult is returned when there is nothing to prorate.
func ZeroResult(subscriptionID string, changeDate time.Time) *Result {
	return &Result{
		SubscriptionID:  subscriptionID,
		PreviousAmount:  decimal.Zero,
		NewAmount:       decimal.Zero,
		Fraction:        decimal.Zero,
		ProrationAmount: decimal.Zero,
		ChargeAmount:    decimal.Zero,
		CreditAmount:    decimal.Zero,
		ChangeDate:      changeDate,
	}
}

// Calculate prorates the amount delta over the unused part of the period.
// The fraction is measured in wall-clock nanoseconds and clamped to [0,1],
// so changes before the period charge the full delta and changes after it
// charge nothing.
func Calculate(p Params) (*Result, error) {
	if p.NewAmount.IsNegative() {
		return nil, ierr.NewError("new amount must not be negative").
			WithHint("Please provide a non-negative subscription amount").
			WithReportableDetails(map[string]any{
				"subscription_id": p.SubscriptionID,
				"new_amount":      p.NewAmount.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	fraction := RemainingFraction(p.PeriodStart, p.PeriodEnd, p.ChangeDate)
	delta := p.NewAmount.Sub(p.CurrentAmount)
	amount := types.RoundAmount(delta.Mul(fraction))

	return &Result{
		SubscriptionID:  p.SubscriptionID,
		PreviousAmount:  p.CurrentAmount,
		NewAmount:       p.NewAmount,
		Fraction:        fraction,
		ProrationAmount: amount,
		ChargeAmount:    decimal.Max(amount, decimal.Zero),
		CreditAmount:    decimal.Max(amount.Neg(), decimal.Zero),
		ChangeDate:      p.ChangeDate,
	}, nil
}

// RemainingFraction is (end - change) / (end - start) clamped to [0,1].
// A zero or negative length period yields zero.
func RemainingFraction(start, end, change time.Time) decimal.Decimal {
	total := end.Sub(start)
	if total <= 0 {
		return decimal.Zero
	}
	remaining := end.Sub(change)
	if remaining <= 0 {
		return decimal.Zero
	}
	if remaining >= total {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(int64(remaining)).Div(decimal.NewFromInt(int64(total)))
}
