package report

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/gocarina/gocsv"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	totalsSection    = "TOTALS"
	exemptionSection = "EXEMPTION BREAKDOWN"
)

type jurisdictionCSV struct {
	JurisdictionCode string `csv:"Jurisdiction Code"`
	JurisdictionName string `csv:"Jurisdiction Name"`
	Transactions     string `csv:"Transactions"`
	TaxableAmount    string `csv:"Taxable Amount"`
	TaxAmount        string `csv:"Tax Amount"`
	EffectiveRate    string `csv:"Effective Rate"`
}

type totalsCSV struct {
	TotalTransactions  string `csv:"Total Transactions"`
	TotalTaxableAmount string `csv:"Total Taxable Amount"`
	TotalTaxAmount     string `csv:"Total Tax Amount"`
	TotalExemptAmount  string `csv:"Total Exempt Amount"`
	ExemptTransactions string `csv:"Exempt Transactions"`
	EffectiveTaxRate   string `csv:"Effective Tax Rate"`
}

type exemptionCSV struct {
	ExemptionType string `csv:"Exemption Type"`
	Transactions  string `csv:"Transactions"`
	ExemptAmount  string `csv:"Exempt Amount"`
}

type recordCSV struct {
	Date              string `csv:"Date"`
	TransactionID     string `csv:"Transaction ID"`
	CustomerID        string `csv:"Customer ID"`
	InvoiceID         string `csv:"Invoice ID"`
	JurisdictionCode  string `csv:"Jurisdiction Code"`
	JurisdictionName  string `csv:"Jurisdiction Name"`
	TaxableAmount     string `csv:"Taxable Amount"`
	TaxRate           string `csv:"Tax Rate"`
	TaxAmount         string `csv:"Tax Amount"`
	Currency          string `csv:"Currency"`
	CalculationMethod string `csv:"Calculation Method"`
	ExemptionType     string `csv:"Exemption Type"`
}

type auditRecordCSV struct {
	Date              string `csv:"Date"`
	TransactionID     string `csv:"Transaction ID"`
	CustomerID        string `csv:"Customer ID"`
	InvoiceID         string `csv:"Invoice ID"`
	JurisdictionCode  string `csv:"Jurisdiction Code"`
	JurisdictionName  string `csv:"Jurisdiction Name"`
	TaxableAmount     string `csv:"Taxable Amount"`
	TaxRate           string `csv:"Tax Rate"`
	TaxAmount         string `csv:"Tax Amount"`
	Currency          string `csv:"Currency"`
	CalculationMethod string `csv:"Calculation Method"`
	ExemptionType     string `csv:"Exemption Type"`
	ExemptionID       string `csv:"Exemption ID"`
	CreatedBy         string `csv:"Created By"`
}

// ExportReportToCSV renders the report. Summary reports are written as
// sections separated by a blank line: jurisdictions, TOTALS and, when any
// exempt transaction exists, EXEMPTION BREAKDOWN.
func ExportReportToCSV(r *TaxReport) ([]byte, error) {
	if r == nil {
		return nil, ierr.NewError("report is required").
			WithHint("Please generate a report before exporting it").
			Mark(ierr.ErrValidation)
	}

	var buf bytes.Buffer
	var err error
	switch r.ReportType {
	case types.TaxReportTypeSummary:
		err = writeSummary(&buf, r)
	case types.TaxReportTypeAudit:
		rows := lo.Map(r.Records, func(rec Record, _ int) auditRecordCSV {
			row := toRecordCSV(rec)
			return auditRecordCSV{
				Date:              row.Date,
				TransactionID:     row.TransactionID,
				CustomerID:        row.CustomerID,
				InvoiceID:         row.InvoiceID,
				JurisdictionCode:  row.JurisdictionCode,
				JurisdictionName:  row.JurisdictionName,
				TaxableAmount:     row.TaxableAmount,
				TaxRate:           row.TaxRate,
				TaxAmount:         row.TaxAmount,
				Currency:          row.Currency,
				CalculationMethod: row.CalculationMethod,
				ExemptionType:     row.ExemptionType,
				ExemptionID:       rec.ExemptionID,
				CreatedBy:         rec.CreatedBy,
			}
		})
		err = marshalSection(&buf, rows)
	default:
		rows := lo.Map(r.Records, func(rec Record, _ int) recordCSV { return toRecordCSV(rec) })
		err = marshalSection(&buf, rows)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to export tax report").
			WithReportableDetails(map[string]any{
				"report_id":   r.ID,
				"report_type": r.ReportType,
			}).
			Mark(ierr.ErrSystem)
	}
	return buf.Bytes(), nil
}

func writeSummary(buf *bytes.Buffer, r *TaxReport) error {
	rows := lo.Map(r.Jurisdictions, func(s JurisdictionSummary, _ int) jurisdictionCSV {
		return jurisdictionCSV{
			JurisdictionCode: s.JurisdictionCode,
			JurisdictionName: s.JurisdictionName,
			Transactions:     strconv.Itoa(s.Transactions),
			TaxableAmount:    formatMoney(s.TaxableAmount),
			TaxAmount:        formatMoney(s.TaxAmount),
			EffectiveRate:    formatRate(s.EffectiveRate),
		}
	})
	if err := marshalSection(buf, rows); err != nil {
		return err
	}

	buf.WriteString("\n" + totalsSection + "\n")
	t := r.Totals
	if err := marshalSection(buf, []totalsCSV{{
		TotalTransactions:  strconv.Itoa(t.TotalTransactions),
		TotalTaxableAmount: formatMoney(t.TotalTaxableAmount),
		TotalTaxAmount:     formatMoney(t.TotalTaxAmount),
		TotalExemptAmount:  formatMoney(t.TotalExemptAmount),
		ExemptTransactions: strconv.Itoa(t.ExemptTransactions),
		EffectiveTaxRate:   formatRate(t.EffectiveTaxRate),
	}}); err != nil {
		return err
	}

	if len(r.Exemptions) == 0 {
		return nil
	}
	buf.WriteString("\n" + exemptionSection + "\n")
	return marshalSection(buf, lo.Map(r.Exemptions, func(e ExemptionBreakdown, _ int) exemptionCSV {
		return exemptionCSV{
			ExemptionType: e.ExemptionType,
			Transactions:  strconv.Itoa(e.Transactions),
			ExemptAmount:  formatMoney(e.ExemptAmount),
		}
	}))
}

func marshalSection[T any](buf *bytes.Buffer, rows []T) error {
	return gocsv.Marshal(rows, buf)
}

// ParseSummaryTotalsCSV reads the TOTALS section back out of an exported
// summary report.
func ParseSummaryTotalsCSV(data []byte) (Totals, error) {
	section, ok := findSection(string(data), totalsSection)
	if !ok {
		return Totals{}, ierr.NewError("csv has no TOTALS section").
			WithHint("Only summary reports can be parsed for totals").
			Mark(ierr.ErrValidation)
	}

	var rows []totalsCSV
	if err := gocsv.UnmarshalString(section, &rows); err != nil {
		return Totals{}, ierr.WithError(err).
			WithHint("TOTALS section is not valid CSV").
			Mark(ierr.ErrValidation)
	}
	if len(rows) != 1 {
		return Totals{}, ierr.NewErrorf("expected one TOTALS row, got %d", len(rows)).
			WithHint("TOTALS section is malformed").
			Mark(ierr.ErrValidation)
	}

	row := rows[0]
	var t Totals
	var err error
	if t.TotalTransactions, err = parseInt("Total Transactions", row.TotalTransactions); err != nil {
		return Totals{}, err
	}
	if t.TotalTaxableAmount, err = parseDecimal("Total Taxable Amount", row.TotalTaxableAmount); err != nil {
		return Totals{}, err
	}
	if t.TotalTaxAmount, err = parseDecimal("Total Tax Amount", row.TotalTaxAmount); err != nil {
		return Totals{}, err
	}
	if t.TotalExemptAmount, err = parseDecimal("Total Exempt Amount", row.TotalExemptAmount); err != nil {
		return Totals{}, err
	}
	if t.ExemptTransactions, err = parseInt("Exempt Transactions", row.ExemptTransactions); err != nil {
		return Totals{}, err
	}
	if t.EffectiveTaxRate, err = parseRate("Effective Tax Rate", row.EffectiveTaxRate); err != nil {
		return Totals{}, err
	}
	return t, nil
}

// findSection returns the lines after a title line up to the next blank line.
func findSection(doc, title string) (string, bool) {
	lines := strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != title {
			continue
		}
		var out []string
		for _, l := range lines[i+1:] {
			if strings.TrimSpace(l) == "" {
				break
			}
			out = append(out, l)
		}
		return strings.Join(out, "\n") + "\n", len(out) > 0
	}
	return "", false
}

func toRecordCSV(rec Record) recordCSV {
	return recordCSV{
		Date:              rec.AppliedAt.UTC().Format(time.RFC3339),
		TransactionID:     rec.ID,
		CustomerID:        rec.CustomerID,
		InvoiceID:         rec.InvoiceID,
		JurisdictionCode:  rec.JurisdictionCode,
		JurisdictionName:  rec.JurisdictionName,
		TaxableAmount:     formatMoney(rec.TaxableAmount),
		TaxRate:           formatRate(rec.TaxRate),
		TaxAmount:         formatMoney(rec.TaxAmount),
		Currency:          rec.Currency,
		CalculationMethod: string(rec.CalculationMethod),
		ExemptionType:     rec.ExemptionType,
	}
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatRate(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).StringFixed(4) + "%"
}

func parseInt(field, v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, invalidField(field, v, err)
	}
	return n, nil
}

func parseDecimal(field, v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, invalidField(field, v, err)
	}
	return d, nil
}

func parseRate(field, v string) (decimal.Decimal, error) {
	pct, err := parseDecimal(field, strings.TrimSuffix(strings.TrimSpace(v), "%"))
	if err != nil {
		return decimal.Zero, err
	}
	return pct.Div(decimal.NewFromInt(100)), nil
}

func invalidField(field, v string, err error) error {
	return ierr.WithError(err).
		WithHintf("%s is not a number", field).
		WithReportableDetails(map[string]any{
			"field": field,
			"value": v,
		}).
		Mark(ierr.ErrValidation)
}
