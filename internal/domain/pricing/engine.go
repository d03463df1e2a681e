package pricing

import (
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// Result is the outcome of applying the rule chain to one charge.
type Result struct {
	GrossAmount decimal.Decimal `json:"gross_amount"`
	FinalAmount decimal.Decimal `json:"final_amount"`
	// DiscountApplied is gross minus final. It is negative when the minimum
	// price floor raised the amount above gross.
	DiscountApplied decimal.Decimal `json:"discount_applied"`
	RulesApplied    []string        `json:"rules_applied"`
}

// Engine folds an ordered rule chain over a gross amount. It holds no state
// and is safe for concurrent use.
type Engine struct {
	rules []Rule
}

// NewEngine returns an engine running DefaultRules.
func NewEngine() *Engine {
	return &Engine{rules: DefaultRules}
}

// NewEngineWithRules returns an engine running a custom chain.
func NewEngineWithRules(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// Apply prices quantity units of baseAmount for the cycle type.
func (e *Engine) Apply(baseAmount decimal.Decimal, cycle types.BillingCycleType, quantity int, custom *CustomRule) (*Result, error) {
	if baseAmount.IsNegative() {
		return nil, ierr.NewError("base amount must not be negative").
			WithHint("Please provide a non-negative base amount").
			WithReportableDetails(map[string]any{
				"base_amount": baseAmount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if quantity < 1 {
		return nil, ierr.NewError("quantity must be at least 1").
			WithHint("Please provide a positive quantity").
			WithReportableDetails(map[string]any{
				"quantity": quantity,
			}).
			Mark(ierr.ErrValidation)
	}
	if err := cycle.Validate(); err != nil {
		return nil, err
	}
	if err := custom.Validate(); err != nil {
		return nil, err
	}

	rc := RuleContext{
		Gross:     baseAmount.Mul(decimal.NewFromInt(int64(quantity))),
		CycleType: cycle,
		Quantity:  quantity,
		Custom:    custom,
	}

	running := rc.Gross
	applied := make([]string, 0, len(e.rules))
	for _, rule := range e.rules {
		next, description := rule(running, rc)
		if !next.Equal(running) {
			applied = append(applied, description)
		}
		running = next
	}

	final := types.RoundAmount(running)
	return &Result{
		GrossAmount:     types.RoundAmount(rc.Gross),
		FinalAmount:     final,
		DiscountApplied: types.RoundAmount(rc.Gross.Sub(final)),
		RulesApplied:    applied,
	}, nil
}
