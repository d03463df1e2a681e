package service

import (
	"testing"
	"time"

	"github.com/flexprice/billingcore/internal/api/dto"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/report"
	"github.com/flexprice/billingcore/internal/testutil"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type TaxReportServiceSuite struct {
	testutil.BaseServiceTestSuite
	tax     TaxService
	service TaxReportService
}

func TestTaxReportService(t *testing.T) {
	suite.Run(t, new(TaxReportServiceSuite))
}

func (s *TaxReportServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.tax = NewTaxService(params)
	s.service = NewTaxReportService(params)

	for _, rate := range []dto.CreateTaxRateRequest{
		{Name: "California", Country: "US", State: lo.ToPtr("CA"), TaxType: types.TaxTypeSalesTax, Rate: d("0.0725")},
		{Name: "Germany", Country: "DE", TaxType: types.TaxTypeVAT, Rate: d("0.19")},
	} {
		_, err := s.tax.CreateTaxRate(s.GetContext(), rate)
		s.Require().NoError(err)
	}

	s.calculate("US", lo.ToPtr("CA"), "100")
	s.calculate("DE", nil, "100")

	// outside the reporting period
	s.GetClock().Advance(40 * 24 * time.Hour)
	s.calculate("US", lo.ToPtr("CA"), "500")
	s.GetClock().Set(s.GetNow())
}

func (s *TaxReportServiceSuite) calculate(country string, state *string, amount string) {
	_, err := s.tax.CalculateTax(s.GetContext(), dto.CalculateTaxRequest{
		Amount:   d(amount),
		Currency: "USD",
		Country:  country,
		State:    state,
	})
	s.Require().NoError(err)
}

func (s *TaxReportServiceSuite) request(reportType types.TaxReportType) dto.GenerateTaxReportRequest {
	return dto.GenerateTaxReportRequest{
		PeriodStart: s.GetNow().Add(-time.Hour),
		PeriodEnd:   s.GetNow().AddDate(0, 0, 1),
		ReportType:  reportType,
	}
}

func (s *TaxReportServiceSuite) TestGenerateSummary() {
	resp, err := s.service.GenerateTaxReport(s.GetContext(), s.request(types.TaxReportTypeSummary))
	s.Require().NoError(err)

	s.Equal(types.DefaultTenantID, resp.TenantID)
	s.Equal(2, resp.Totals.TotalTransactions)
	s.Equal("200.00", resp.Totals.TotalTaxableAmount.StringFixed(2))
	s.Equal("26.25", resp.Totals.TotalTaxAmount.StringFixed(2))
	s.Require().Len(resp.Jurisdictions, 2)
	s.Equal("DE", resp.Jurisdictions[0].JurisdictionCode)
	s.Equal("US-CA", resp.Jurisdictions[1].JurisdictionCode)
	s.Equal(s.GetNow(), resp.GeneratedAt)
}

func (s *TaxReportServiceSuite) TestGenerateForJurisdiction() {
	req := s.request(types.TaxReportTypeDetailed)
	req.Country = "us"
	req.State = lo.ToPtr("ca")

	resp, err := s.service.GenerateTaxReport(s.GetContext(), req)
	s.Require().NoError(err)
	s.Require().Len(resp.Records, 1)
	s.Equal("US-CA", resp.Records[0].JurisdictionCode)
	s.Equal("California", resp.Records[0].JurisdictionName)
	s.Equal("7.25", resp.Records[0].TaxAmount.StringFixed(2))
}

func (s *TaxReportServiceSuite) TestExportSummaryRoundTrips() {
	data, err := s.service.ExportTaxReport(s.GetContext(), s.request(types.TaxReportTypeSummary))
	s.Require().NoError(err)
	s.Contains(string(data), "US-CA,California,1,100.00,7.25,7.2500%")

	totals, err := report.ParseSummaryTotalsCSV(data)
	s.Require().NoError(err)
	s.Equal(2, totals.TotalTransactions)
	s.Equal("26.25", totals.TotalTaxAmount.StringFixed(2))
}

func (s *TaxReportServiceSuite) TestValidation() {
	req := s.request(types.TaxReportTypeSummary)
	req.PeriodEnd = req.PeriodStart
	_, err := s.service.GenerateTaxReport(s.GetContext(), req)
	s.True(ierr.IsValidation(err))

	req = s.request("quarterly")
	_, err = s.service.GenerateTaxReport(s.GetContext(), req)
	s.True(ierr.IsValidation(err))

	req = s.request(types.TaxReportTypeSummary)
	req.State = lo.ToPtr("CA")
	_, err = s.service.ExportTaxReport(s.GetContext(), req)
	s.True(ierr.IsValidation(err))
}
