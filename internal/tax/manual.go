package tax

import (
	"strings"
	"time"

	"github.com/flexprice/billingcore/internal/domain/taxexemption"
	"github.com/flexprice/billingcore/internal/domain/taxrate"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// SelectRate picks the rate for j at the given instant. A state specific rate
// wins over a country level one; within a level the latest effective date wins.
func SelectRate(rates []*taxrate.TaxRate, j types.Jurisdiction, at time.Time) *taxrate.TaxRate {
	j = j.Normalize()
	effective := lo.Filter(rates, func(r *taxrate.TaxRate, _ int) bool {
		return r.IsEffectiveAt(at) && strings.EqualFold(r.Country, j.Country)
	})

	if j.State != nil {
		stateRates := lo.Filter(effective, func(r *taxrate.TaxRate, _ int) bool {
			return r.State != nil && strings.EqualFold(*r.State, *j.State)
		})
		if len(stateRates) > 0 {
			return taxrate.SelectMostRecent(stateRates)
		}
	}

	countryRates := lo.Filter(effective, func(r *taxrate.TaxRate, _ int) bool {
		return r.State == nil || *r.State == ""
	})
	return taxrate.SelectMostRecent(countryRates)
}

// CalculateManual applies rate to the request amount. A nil rate means no
// jurisdiction rate is configured: tax is zero and the requested
// jurisdiction is echoed back. The rate's threshold is stored for reporting
// and does not gate the calculation.
func CalculateManual(req Request, rate *taxrate.TaxRate) *Result {
	j := req.Jurisdiction.Normalize()
	result := &Result{
		Amount:            req.Amount,
		TaxAmount:         decimal.Zero,
		TotalAmount:       req.Amount,
		TaxRate:           decimal.Zero,
		Currency:          types.NormalizeCurrency(req.Currency),
		CalculationMethod: types.TaxCalculationManual,
		Jurisdiction: &JurisdictionInfo{
			Code:    j.Code(),
			Name:    j.Code(),
			Country: j.Country,
			State:   j.State,
		},
	}
	if rate == nil {
		return result
	}

	result.TaxRateID = lo.ToPtr(rate.ID)
	result.Jurisdiction = &JurisdictionInfo{
		Code:    rate.JurisdictionCode,
		Name:    rate.DisplayName(),
		Country: rate.Country,
		State:   rate.State,
	}
	taxAmount := types.RoundAmount(req.Amount.Mul(rate.Rate))
	result.TaxRate = rate.Rate
	result.TaxAmount = taxAmount
	result.TotalAmount = req.Amount.Add(taxAmount)
	result.Taxes = []TaxInfo{{
		Jurisdiction: rate.DisplayName(),
		Rate:         rate.Rate,
		Amount:       taxAmount,
	}}
	return result
}

// ExemptResult is the zero tax result for an exempt charge.
func ExemptResult(req Request, e *taxexemption.TaxExemption) *Result {
	j := req.Jurisdiction.Normalize()
	return &Result{
		Amount:            req.Amount,
		TaxAmount:         decimal.Zero,
		TotalAmount:       req.Amount,
		TaxRate:           decimal.Zero,
		Currency:          types.NormalizeCurrency(req.Currency),
		CalculationMethod: types.TaxCalculationManual,
		Jurisdiction: &JurisdictionInfo{
			Code:    j.Code(),
			Name:    j.Code(),
			Country: j.Country,
			State:   j.State,
		},
		Exemption: &ExemptionInfo{
			ID:                e.ID,
			Type:              e.ExemptionType,
			CertificateNumber: e.CertificateNumber,
		},
	}
}
