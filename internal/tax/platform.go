package tax

import (
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const defaultLineReference = "charge"

// toPlatformRequest converts decimal amounts to minor units at the provider boundary.
func toPlatformRequest(req Request, defaultTaxCode string) PlatformTaxRequest {
	currency := types.NormalizeCurrency(req.Currency)
	items := req.LineItems
	if len(items) == 0 {
		items = []LineItem{{Reference: defaultLineReference, Amount: req.Amount}}
	}

	j := req.Jurisdiction.Normalize()
	address := Address{Country: j.Country, State: j.StateOrEmpty()}
	if req.Address != nil {
		address = *req.Address
	}

	return PlatformTaxRequest{
		Currency: currency,
		LineItems: lo.Map(items, func(li LineItem, i int) PlatformLineItem {
			return PlatformLineItem{
				AmountMinorUnits: types.ToMinorUnits(li.Amount, currency),
				Reference:        lo.Ternary(li.Reference == "", defaultLineReference, li.Reference),
				TaxCode:          lo.Ternary(li.TaxCode == "", defaultTaxCode, li.TaxCode),
			}
		}),
		CustomerAddress: address,
	}
}

// fromPlatformResponse folds the per-line breakdown into one TaxInfo per
// jurisdiction and converts minor units back to decimals.
func fromPlatformResponse(req Request, resp *PlatformTaxResponse) *Result {
	currency := types.NormalizeCurrency(req.Currency)
	j := req.Jurisdiction.Normalize()

	var taxes []TaxInfo
	index := make(map[string]int)
	for _, line := range resp.LineItems {
		for _, b := range line.TaxBreakdown {
			amount := types.FromMinorUnits(b.TaxAmountMinorUnits, currency)
			if i, ok := index[b.Jurisdiction]; ok {
				taxes[i].Amount = taxes[i].Amount.Add(amount)
				continue
			}
			index[b.Jurisdiction] = len(taxes)
			taxes = append(taxes, TaxInfo{
				Jurisdiction: b.Jurisdiction,
				Rate:         b.Rate,
				Amount:       amount,
			})
		}
	}

	taxAmount := types.FromMinorUnits(resp.TaxAmountExclusiveMinorUnits, currency)
	rate := decimal.Zero
	if req.Amount.IsPositive() {
		rate = taxAmount.Div(req.Amount).Round(6)
	}

	name := j.Code()
	if len(taxes) > 0 && taxes[0].Jurisdiction != "" {
		name = taxes[0].Jurisdiction
	}

	return &Result{
		Amount:            req.Amount,
		TaxAmount:         taxAmount,
		TotalAmount:       req.Amount.Add(taxAmount),
		TaxRate:           rate,
		Currency:          currency,
		CalculationMethod: types.TaxCalculationPlatform,
		Jurisdiction: &JurisdictionInfo{
			Code:    j.Code(),
			Name:    name,
			Country: j.Country,
			State:   j.State,
		},
		Taxes: taxes,
	}
}

func fromExternalResponse(req Request, resp *ExternalTaxResponse) *Result {
	j := req.Jurisdiction.Normalize()
	taxAmount := types.RoundAmount(resp.TaxAmount)
	return &Result{
		Amount:            req.Amount,
		TaxAmount:         taxAmount,
		TotalAmount:       req.Amount.Add(taxAmount),
		TaxRate:           resp.TaxRate,
		Currency:          types.NormalizeCurrency(req.Currency),
		CalculationMethod: types.TaxCalculationExternal,
		Jurisdiction: &JurisdictionInfo{
			Code:    lo.Ternary(resp.JurisdictionCode == "", j.Code(), resp.JurisdictionCode),
			Name:    lo.Ternary(resp.JurisdictionName == "", j.Code(), resp.JurisdictionName),
			Country: j.Country,
			State:   j.State,
		},
		Taxes: resp.Taxes,
	}
}
