package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/idempotency"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/tax"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

var _ tax.PlatformClient = (*TaxClient)(nil)

// taxCalculations is the slice of the Stripe API the adapter uses.
type taxCalculations interface {
	Create(ctx context.Context, params *stripe.TaxCalculationCreateParams) (*stripe.TaxCalculation, error)
}

// TaxClient calculates tax with Stripe Tax.
type TaxClient struct {
	calculations taxCalculations
	logger       *logger.Logger
}

// NewTaxClient builds a Stripe Tax client from the integrated platform config.
// It returns nil when the platform is disabled so the resolver reports a
// configuration error instead of calling Stripe.
func NewTaxClient(cfg *config.Configuration, log *logger.Logger) (*TaxClient, error) {
	platform := cfg.Tax.IntegratedPlatform
	if !platform.Enabled {
		return nil, nil
	}
	if platform.SecretKey == "" {
		return nil, ierr.NewError("stripe secret key is required").
			WithHint("Set tax.integrated_platform.secret_key when the integrated tax platform is enabled").
			Mark(ierr.ErrConfiguration)
	}

	client := stripe.NewClient(platform.SecretKey, nil)
	return newTaxClient(client.V1TaxCalculations, log), nil
}

func newTaxClient(calculations taxCalculations, log *logger.Logger) *TaxClient {
	return &TaxClient{calculations: calculations, logger: log}
}

func (c *TaxClient) CalculateTax(ctx context.Context, req tax.PlatformTaxRequest) (*tax.PlatformTaxResponse, error) {
	params := toCalculationParams(req)
	params.SetIdempotencyKey(calculationKey(req))

	calc, err := c.calculations.Create(ctx, params)
	if err != nil {
		c.logger.Errorw("stripe tax calculation failed",
			"currency", req.Currency,
			"line_items", len(req.LineItems),
			"error", err,
		)
		return nil, ierr.WithError(err).
			WithHint("Stripe Tax calculation failed").
			Mark(ierr.ErrHTTPClient)
	}

	c.logger.Debugw("stripe tax calculation created",
		"calculation_id", calc.ID,
		"tax_amount_exclusive", calc.TaxAmountExclusive,
	)
	return fromCalculation(calc), nil
}

func toCalculationParams(req tax.PlatformTaxRequest) *stripe.TaxCalculationCreateParams {
	address := req.CustomerAddress
	params := &stripe.TaxCalculationCreateParams{
		Currency: stripe.String(strings.ToLower(req.Currency)),
		LineItems: lo.Map(req.LineItems, func(li tax.PlatformLineItem, _ int) *stripe.TaxCalculationCreateLineItemParams {
			item := &stripe.TaxCalculationCreateLineItemParams{
				Amount:    stripe.Int64(li.AmountMinorUnits),
				Reference: stripe.String(li.Reference),
			}
			if li.TaxCode != "" {
				item.TaxCode = stripe.String(li.TaxCode)
			}
			return item
		}),
		CustomerDetails: &stripe.TaxCalculationCreateCustomerDetailsParams{
			Address: &stripe.AddressParams{
				Line1:      optional(address.Line1),
				City:       optional(address.City),
				PostalCode: optional(address.PostalCode),
				State:      optional(address.State),
				Country:    stripe.String(address.Country),
			},
			AddressSource: stripe.String("billing"),
		},
	}
	params.AddExpand("line_items.data.tax_breakdown")
	return params
}

func fromCalculation(calc *stripe.TaxCalculation) *tax.PlatformTaxResponse {
	resp := &tax.PlatformTaxResponse{
		TaxAmountExclusiveMinorUnits: calc.TaxAmountExclusive,
	}
	if calc.LineItems == nil {
		return resp
	}

	for _, li := range calc.LineItems.Data {
		result := tax.PlatformLineItemResult{Reference: li.Reference}
		for _, b := range li.TaxBreakdown {
			result.TaxBreakdown = append(result.TaxBreakdown, tax.PlatformTaxBreakdown{
				Jurisdiction:        jurisdictionName(b),
				Rate:                breakdownRate(b),
				TaxAmountMinorUnits: b.Amount,
			})
		}
		resp.LineItems = append(resp.LineItems, result)
	}
	return resp
}

func jurisdictionName(b *stripe.TaxCalculationLineItemTaxBreakdown) string {
	if b.Jurisdiction == nil {
		return ""
	}
	if b.Jurisdiction.DisplayName != "" {
		return b.Jurisdiction.DisplayName
	}
	return b.Jurisdiction.Country
}

// breakdownRate converts Stripe's percentage string ("7.25") to a fraction.
func breakdownRate(b *stripe.TaxCalculationLineItemTaxBreakdown) decimal.Decimal {
	if b.TaxRateDetails == nil || b.TaxRateDetails.PercentageDecimal == "" {
		return decimal.Zero
	}
	pct, err := decimal.NewFromString(b.TaxRateDetails.PercentageDecimal)
	if err != nil {
		return decimal.Zero
	}
	return pct.Div(decimal.NewFromInt(100))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return stripe.String(s)
}

// calculationKey lets Stripe deduplicate retried calculations.
func calculationKey(req tax.PlatformTaxRequest) string {
	params := map[string]interface{}{
		"currency": strings.ToLower(req.Currency),
		"country":  req.CustomerAddress.Country,
		"state":    req.CustomerAddress.State,
		"postal":   req.CustomerAddress.PostalCode,
	}
	for i, li := range req.LineItems {
		params[fmt.Sprintf("line_%d", i)] = fmt.Sprintf("%s/%d/%s", li.Reference, li.AmountMinorUnits, li.TaxCode)
	}
	return idempotency.NewGenerator().GenerateKey(idempotency.ScopePlatformTax, params)
}
