package pricing

import (
	"fmt"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	annualDiscountPercent     = decimal.NewFromInt(20)
	enterpriseDiscountPercent = decimal.NewFromInt(15)
	enterpriseThreshold       = decimal.NewFromInt(1000)
	maxDiscountPercent        = decimal.NewFromInt(50)

	// DefaultMinimumPrice is the floor applied when no minimum commitment is configured.
	DefaultMinimumPrice = decimal.NewFromInt(5)
)

// volumeTiers are checked from the highest threshold down; quantity must
// strictly exceed the threshold.
var volumeTiers = []struct {
	above   int
	percent decimal.Decimal
}{
	{above: 100, percent: decimal.NewFromInt(15)},
	{above: 50, percent: decimal.NewFromInt(10)},
	{above: 10, percent: decimal.NewFromInt(5)},
}

// CustomRule carries per-customer pricing overrides.
type CustomRule struct {
	// DiscountPercent is a percentage in [0,100] applied after the built-in discounts.
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	// MinimumCommitment replaces the default minimum price.
	MinimumCommitment *decimal.Decimal `json:"minimum_commitment,omitempty"`
}

// RuleContext is the immutable input every rule sees.
type RuleContext struct {
	Gross     decimal.Decimal
	CycleType types.BillingCycleType
	Quantity  int
	Custom    *CustomRule
}

// Rule maps the running amount to a new amount. The description is only
// recorded when the amount actually changes.
type Rule func(running decimal.Decimal, rc RuleContext) (decimal.Decimal, string)

// DefaultRules is the ordered rule chain.
var DefaultRules = []Rule{
	AnnualDiscount,
	VolumeDiscount,
	EnterpriseDiscount,
	CustomDiscount,
	MaximumDiscountCap,
	MinimumPriceFloor,
}

// AnnualDiscount takes 20% off annually billed subscriptions.
func AnnualDiscount(running decimal.Decimal, rc RuleContext) (decimal.Decimal, string) {
	if rc.CycleType != types.BillingCycleAnnually {
		return running, ""
	}
	return percentOff(running, annualDiscountPercent), fmt.Sprintf("Annual billing discount: %s%%", annualDiscountPercent)
}

// VolumeDiscount applies the highest volume tier the quantity exceeds.
func VolumeDiscount(running decimal.Decimal, rc RuleContext) (decimal.Decimal, string) {
	for _, tier := range volumeTiers {
		if rc.Quantity > tier.above {
			return percentOff(running, tier.percent), fmt.Sprintf("Volume discount: %s%%", tier.percent)
		}
	}
	return running, ""
}

// EnterpriseDiscount keys off the original gross so that earlier discounts
// cannot push an enterprise-sized order below the threshold.
func EnterpriseDiscount(running decimal.Decimal, rc RuleContext) (decimal.Decimal, string) {
	if !rc.Gross.GreaterThan(enterpriseThreshold) {
		return running, ""
	}
	return percentOff(running, enterpriseDiscountPercent), fmt.Sprintf("Enterprise discount: %s%%", enterpriseDiscountPercent)
}

// CustomDiscount applies the customer specific percentage, if any.
func CustomDiscount(running decimal.Decimal, rc RuleContext) (decimal.Decimal, string) {
	if rc.Custom == nil || rc.Custom.DiscountPercent == nil || rc.Custom.DiscountPercent.IsZero() {
		return running, ""
	}
	pct := *rc.Custom.DiscountPercent
	return percentOff(running, pct), fmt.Sprintf("Custom discount: %s%%", pct)
}

// MaximumDiscountCap limits the total discount to 50% of the gross amount.
func MaximumDiscountCap(running decimal.Decimal, rc RuleContext) (decimal.Decimal, string) {
	maxDiscount := rc.Gross.Mul(maxDiscountPercent).Div(hundred)
	if rc.Gross.Sub(running).LessThanOrEqual(maxDiscount) {
		return running, ""
	}
	return rc.Gross.Sub(maxDiscount), fmt.Sprintf("Maximum discount cap: %s%%", maxDiscountPercent)
}

// MinimumPriceFloor raises the price to the minimum commitment, or $5 when
// none is set.
func MinimumPriceFloor(running decimal.Decimal, rc RuleContext) (decimal.Decimal, string) {
	floor := DefaultMinimumPrice
	if rc.Custom != nil && rc.Custom.MinimumCommitment != nil {
		floor = *rc.Custom.MinimumCommitment
	}
	if !running.LessThan(floor) {
		return running, ""
	}
	return floor, fmt.Sprintf("Minimum price: $%s", floor.StringFixed(types.MoneyPrecision))
}

func percentOff(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(hundred.Sub(percent)).Div(hundred)
}

func (c *CustomRule) Validate() error {
	if c == nil {
		return nil
	}
	if c.DiscountPercent != nil && (c.DiscountPercent.IsNegative() || c.DiscountPercent.GreaterThan(hundred)) {
		return ierr.NewError("custom discount percent must be between 0 and 100").
			WithHint("Please provide a valid discount percent").
			WithReportableDetails(map[string]any{
				"discount_percent": c.DiscountPercent.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if c.MinimumCommitment != nil && c.MinimumCommitment.IsNegative() {
		return ierr.NewError("minimum commitment must not be negative").
			WithHint("Please provide a valid minimum commitment").
			Mark(ierr.ErrValidation)
	}
	return nil
}
