package report

import (
	"sort"
	"time"

	"github.com/flexprice/billingcore/internal/domain/taxapplied"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// RatePrecision keeps effective rates at four decimals of a percent so they
// survive a CSV round trip unchanged.
const RatePrecision = 6

// Params describes the report being generated.
type Params struct {
	ReportType   types.TaxReportType
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Jurisdiction *types.Jurisdiction
	TenantID     string
	GeneratedAt  time.Time
}

// Totals aggregates every record in the report period.
type Totals struct {
	TotalTransactions  int             `json:"total_transactions"`
	TotalTaxableAmount decimal.Decimal `json:"total_taxable_amount"`
	TotalTaxAmount     decimal.Decimal `json:"total_tax_amount"`
	TotalExemptAmount  decimal.Decimal `json:"total_exempt_amount"`
	ExemptTransactions int             `json:"exempt_transactions"`
	EffectiveTaxRate   decimal.Decimal `json:"effective_tax_rate"`
}

type JurisdictionSummary struct {
	JurisdictionCode string          `json:"jurisdiction_code"`
	JurisdictionName string          `json:"jurisdiction_name"`
	Transactions     int             `json:"transactions"`
	TaxableAmount    decimal.Decimal `json:"taxable_amount"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	EffectiveRate    decimal.Decimal `json:"effective_rate"`
}

type ExemptionBreakdown struct {
	ExemptionType string          `json:"exemption_type"`
	Transactions  int             `json:"transactions"`
	ExemptAmount  decimal.Decimal `json:"exempt_amount"`
}

// Record is one tax calculation as it appears in detailed, exemption and
// audit reports.
type Record struct {
	ID                string                     `json:"id"`
	AppliedAt         time.Time                  `json:"applied_at"`
	CustomerID        string                     `json:"customer_id,omitempty"`
	InvoiceID         string                     `json:"invoice_id,omitempty"`
	JurisdictionCode  string                     `json:"jurisdiction_code"`
	JurisdictionName  string                     `json:"jurisdiction_name"`
	TaxableAmount     decimal.Decimal            `json:"taxable_amount"`
	TaxAmount         decimal.Decimal            `json:"tax_amount"`
	TaxRate           decimal.Decimal            `json:"tax_rate"`
	Currency          string                     `json:"currency"`
	CalculationMethod types.TaxCalculationMethod `json:"calculation_method"`
	ExemptionID       string                     `json:"exemption_id,omitempty"`
	ExemptionType     string                     `json:"exemption_type,omitempty"`
	CreatedBy         string                     `json:"created_by,omitempty"`
}

func (r Record) IsExempt() bool {
	return r.ExemptionID != ""
}

type TaxReport struct {
	ID            string                `json:"id"`
	TenantID      string                `json:"tenant_id"`
	ReportType    types.TaxReportType   `json:"report_type"`
	PeriodStart   time.Time             `json:"period_start"`
	PeriodEnd     time.Time             `json:"period_end"`
	Jurisdiction  *types.Jurisdiction   `json:"jurisdiction,omitempty"`
	GeneratedAt   time.Time             `json:"generated_at"`
	Totals        Totals                `json:"totals"`
	Jurisdictions []JurisdictionSummary `json:"jurisdictions,omitempty"`
	Exemptions    []ExemptionBreakdown  `json:"exemptions,omitempty"`
	Records       []Record              `json:"records,omitempty"`
}

// Build assembles a report from the tax records of the period. Summary
// reports carry per-jurisdiction rows, detailed and audit reports carry every
// record, and exemption reports carry only exempt records.
func Build(p Params, applied []*taxapplied.TaxApplied) *TaxReport {
	records := lo.Map(applied, func(t *taxapplied.TaxApplied, _ int) Record {
		return toRecord(t)
	})
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].AppliedAt.Before(records[j].AppliedAt)
	})

	r := &TaxReport{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TAX_REPORT),
		TenantID:     p.TenantID,
		ReportType:   p.ReportType,
		PeriodStart:  p.PeriodStart,
		PeriodEnd:    p.PeriodEnd,
		Jurisdiction: p.Jurisdiction,
		GeneratedAt:  p.GeneratedAt,
		Totals:       ComputeTotals(records),
	}

	switch p.ReportType {
	case types.TaxReportTypeSummary:
		r.Jurisdictions = summarizeJurisdictions(records)
		r.Exemptions = breakdownExemptions(records)
	case types.TaxReportTypeExemptions:
		r.Records = lo.Filter(records, func(rec Record, _ int) bool { return rec.IsExempt() })
		r.Exemptions = breakdownExemptions(records)
	default:
		r.Records = records
	}
	return r
}

// ComputeTotals sums taxable and exempt amounts separately. The effective
// rate is tax over taxable, excluding exempt transactions.
func ComputeTotals(records []Record) Totals {
	t := Totals{
		TotalTaxableAmount: decimal.Zero,
		TotalTaxAmount:     decimal.Zero,
		TotalExemptAmount:  decimal.Zero,
		EffectiveTaxRate:   decimal.Zero,
	}
	for _, rec := range records {
		t.TotalTransactions++
		if rec.IsExempt() {
			t.ExemptTransactions++
			t.TotalExemptAmount = t.TotalExemptAmount.Add(rec.TaxableAmount)
			continue
		}
		t.TotalTaxableAmount = t.TotalTaxableAmount.Add(rec.TaxableAmount)
		t.TotalTaxAmount = t.TotalTaxAmount.Add(rec.TaxAmount)
	}
	t.TotalTaxableAmount = types.RoundAmount(t.TotalTaxableAmount)
	t.TotalTaxAmount = types.RoundAmount(t.TotalTaxAmount)
	t.TotalExemptAmount = types.RoundAmount(t.TotalExemptAmount)
	t.EffectiveTaxRate = effectiveRate(t.TotalTaxAmount, t.TotalTaxableAmount)
	return t
}

func summarizeJurisdictions(records []Record) []JurisdictionSummary {
	byCode := lo.GroupBy(lo.Filter(records, func(rec Record, _ int) bool { return !rec.IsExempt() }),
		func(rec Record) string { return rec.JurisdictionCode })

	out := make([]JurisdictionSummary, 0, len(byCode))
	for code, recs := range byCode {
		s := JurisdictionSummary{
			JurisdictionCode: code,
			JurisdictionName: recs[0].JurisdictionName,
			Transactions:     len(recs),
			TaxableAmount:    decimal.Zero,
			TaxAmount:        decimal.Zero,
		}
		for _, rec := range recs {
			s.TaxableAmount = s.TaxableAmount.Add(rec.TaxableAmount)
			s.TaxAmount = s.TaxAmount.Add(rec.TaxAmount)
		}
		s.TaxableAmount = types.RoundAmount(s.TaxableAmount)
		s.TaxAmount = types.RoundAmount(s.TaxAmount)
		s.EffectiveRate = effectiveRate(s.TaxAmount, s.TaxableAmount)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JurisdictionCode < out[j].JurisdictionCode })
	return out
}

func breakdownExemptions(records []Record) []ExemptionBreakdown {
	byType := lo.GroupBy(lo.Filter(records, func(rec Record, _ int) bool { return rec.IsExempt() }),
		func(rec Record) string { return lo.Ternary(rec.ExemptionType == "", "unspecified", rec.ExemptionType) })

	out := make([]ExemptionBreakdown, 0, len(byType))
	for exemptionType, recs := range byType {
		b := ExemptionBreakdown{ExemptionType: exemptionType, Transactions: len(recs), ExemptAmount: decimal.Zero}
		for _, rec := range recs {
			b.ExemptAmount = b.ExemptAmount.Add(rec.TaxableAmount)
		}
		b.ExemptAmount = types.RoundAmount(b.ExemptAmount)
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExemptionType < out[j].ExemptionType })
	return out
}

func effectiveRate(tax, taxable decimal.Decimal) decimal.Decimal {
	if !taxable.IsPositive() {
		return decimal.Zero
	}
	return tax.DivRound(taxable, RatePrecision)
}

func toRecord(t *taxapplied.TaxApplied) Record {
	return Record{
		ID:                t.ID,
		AppliedAt:         t.AppliedAt,
		CustomerID:        lo.FromPtr(t.CustomerID),
		InvoiceID:         lo.FromPtr(t.InvoiceID),
		JurisdictionCode:  t.JurisdictionCode,
		JurisdictionName:  lo.Ternary(t.JurisdictionName == "", t.JurisdictionCode, t.JurisdictionName),
		TaxableAmount:     t.TaxableAmount,
		TaxAmount:         t.TaxAmount,
		TaxRate:           t.TaxRate,
		Currency:          t.Currency,
		CalculationMethod: t.CalculationMethod,
		ExemptionID:       lo.FromPtr(t.ExemptionID),
		ExemptionType:     lo.FromPtr(t.ExemptionType),
		CreatedBy:         t.CreatedBy,
	}
}
