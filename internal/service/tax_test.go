package service

import (
	"testing"

	"github.com/flexprice/billingcore/internal/api/dto"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/testutil"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type TaxServiceSuite struct {
	testutil.BaseServiceTestSuite
	service TaxService
}

func TestTaxService(t *testing.T) {
	suite.Run(t, new(TaxServiceSuite))
}

func (s *TaxServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewTaxService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *TaxServiceSuite) createRate(name, country string, state *string, rate string) *dto.TaxRateResponse {
	resp, err := s.service.CreateTaxRate(s.GetContext(), dto.CreateTaxRateRequest{
		Name:    name,
		Country: country,
		State:   state,
		TaxType: types.TaxTypeSalesTax,
		Rate:    d(rate),
	})
	s.Require().NoError(err)
	return resp
}

func (s *TaxServiceSuite) TestCalculateTax_RecordsAppliedTax() {
	s.createRate("California", "us", lo.ToPtr("ca"), "0.0725")

	resp, err := s.service.CalculateTax(s.GetContext(), dto.CalculateTaxRequest{
		CustomerID: lo.ToPtr("cust_1"),
		InvoiceID:  lo.ToPtr("inv_1"),
		Amount:     d("100"),
		Currency:   "usd",
		Country:    "US",
		State:      lo.ToPtr("CA"),
	})
	s.Require().NoError(err)
	s.Equal("7.25", resp.TaxAmount.StringFixed(2))
	s.Equal("107.25", resp.TotalAmount.StringFixed(2))
	s.Equal(types.TaxCalculationManual, resp.CalculationMethod)
	s.NotEmpty(resp.TaxAppliedID)

	applied, err := s.service.ListTaxApplied(s.GetContext(), &types.TaxAppliedFilter{InvoiceID: "inv_1"})
	s.Require().NoError(err)
	s.Require().Len(applied.Items, 1)
	record := applied.Items[0]
	s.Equal(resp.TaxAppliedID, record.ID)
	s.Equal("US-CA", record.JurisdictionCode)
	s.Equal("California", record.JurisdictionName)
	s.Equal("7.25", record.TaxAmount.StringFixed(2))
	s.Equal("cust_1", lo.FromPtr(record.CustomerID))
	s.Equal(s.GetNow(), record.AppliedAt)
	s.False(record.IsExempt())
}

func (s *TaxServiceSuite) TestCalculateTax_ExemptionIsRecorded() {
	exemption, err := s.service.CreateTaxExemption(s.GetContext(), dto.CreateTaxExemptionRequest{
		ExemptionType:     "resale",
		CertificateNumber: "CERT-1",
		Status:            types.ExemptionStatusApproved,
		Country:           "US",
	})
	s.Require().NoError(err)
	s.createRate("California", "US", lo.ToPtr("CA"), "0.0725")

	resp, err := s.service.CalculateTax(s.GetContext(), dto.CalculateTaxRequest{
		Amount:   d("100"),
		Currency: "USD",
		Country:  "US",
		State:    lo.ToPtr("CA"),
	})
	s.Require().NoError(err)
	s.True(resp.TaxAmount.IsZero())
	s.Require().NotNil(resp.Exemption)
	s.Equal(exemption.ID, resp.Exemption.ID)

	applied, err := s.service.ListTaxApplied(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Require().Len(applied.Items, 1)
	s.Equal(exemption.ID, lo.FromPtr(applied.Items[0].ExemptionID))
	s.Equal("resale", lo.FromPtr(applied.Items[0].ExemptionType))
}

func (s *TaxServiceSuite) TestCalculateTax_Validation() {
	tests := []struct {
		name string
		req  dto.CalculateTaxRequest
	}{
		{"negative amount", dto.CalculateTaxRequest{Amount: d("-1"), Currency: "USD", Country: "US"}},
		{"missing country", dto.CalculateTaxRequest{Amount: d("1"), Currency: "USD"}},
		{"bad country", dto.CalculateTaxRequest{Amount: d("1"), Currency: "USD", Country: "U1"}},
		{"bad state", dto.CalculateTaxRequest{Amount: d("1"), Currency: "USD", Country: "US", State: lo.ToPtr("CALI")}},
		{"bad currency", dto.CalculateTaxRequest{Amount: d("1"), Currency: "DOLLARS", Country: "US"}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.CalculateTax(s.GetContext(), tt.req)
			s.Require().Error(err)
			s.True(ierr.IsValidation(err), "got %v", err)
		})
	}

	applied, err := s.service.ListTaxApplied(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Empty(applied.Items)
}

func (s *TaxServiceSuite) TestRateWritesInvalidateCache() {
	rate := s.createRate("Germany", "DE", nil, "0.05")
	req := dto.CalculateTaxRequest{Amount: d("100"), Currency: "EUR", Country: "DE"}

	resp, err := s.service.CalculateTax(s.GetContext(), req)
	s.Require().NoError(err)
	s.Equal("5.00", resp.TaxAmount.StringFixed(2))

	_, err = s.service.UpdateTaxRate(s.GetContext(), rate.ID, dto.UpdateTaxRateRequest{Rate: lo.ToPtr(d("0.19"))})
	s.Require().NoError(err)

	resp, err = s.service.CalculateTax(s.GetContext(), req)
	s.Require().NoError(err)
	s.Equal("19.00", resp.TaxAmount.StringFixed(2))

	s.Require().NoError(s.service.DeleteTaxRate(s.GetContext(), rate.ID))

	resp, err = s.service.CalculateTax(s.GetContext(), req)
	s.Require().NoError(err)
	s.True(resp.TaxAmount.IsZero())

	_, err = s.service.GetTaxRate(s.GetContext(), rate.ID)
	s.True(ierr.IsNotFound(err))
}

func (s *TaxServiceSuite) TestCreateTaxRate_Validation() {
	_, err := s.service.CreateTaxRate(s.GetContext(), dto.CreateTaxRateRequest{
		Name:    "Bad",
		Country: "US",
		TaxType: types.TaxTypeSalesTax,
		Rate:    d("1.5"),
	})
	s.True(ierr.IsValidation(err))

	_, err = s.service.CreateTaxRate(s.GetContext(), dto.CreateTaxRateRequest{
		Name:    "Bad",
		Country: "US",
		TaxType: "excise",
		Rate:    d("0.1"),
	})
	s.True(ierr.IsValidation(err))
}

func (s *TaxServiceSuite) TestListTaxRates_Paginates() {
	s.createRate("A", "US", lo.ToPtr("CA"), "0.07")
	s.createRate("B", "US", lo.ToPtr("NY"), "0.04")
	s.createRate("C", "US", nil, "0.01")

	resp, err := s.service.ListTaxRates(s.GetContext(), &types.TaxRateFilter{
		QueryFilter: &types.QueryFilter{Limit: lo.ToPtr(2), Offset: lo.ToPtr(0)},
		Country:     "US",
	})
	s.Require().NoError(err)
	s.Len(resp.Items, 2)
	s.Equal(3, resp.Pagination.Total)

	_, err = s.service.ListTaxRates(s.GetContext(), &types.TaxRateFilter{
		QueryFilter: &types.QueryFilter{Limit: lo.ToPtr(-1)},
	})
	s.True(ierr.IsValidation(err))
}

func (s *TaxServiceSuite) TestTaxRatesAreTenantScoped() {
	s.createRate("California", "US", lo.ToPtr("CA"), "0.0725")

	other := testutil.WithTenant(s.GetContext(), "tenant_other")
	resp, err := s.service.CalculateTax(other, dto.CalculateTaxRequest{
		Amount: d("100"), Currency: "USD", Country: "US", State: lo.ToPtr("CA"),
	})
	s.Require().NoError(err)
	s.True(resp.TaxAmount.IsZero())
}

func (s *TaxServiceSuite) TestUpdateTaxExemptionStatus() {
	created, err := s.service.CreateTaxExemption(s.GetContext(), dto.CreateTaxExemptionRequest{
		CustomerID:        lo.ToPtr("cust_1"),
		ExemptionType:     "nonprofit",
		CertificateNumber: "NP-1",
		Country:           "US",
	})
	s.Require().NoError(err)
	s.Equal(types.ExemptionStatusPending, created.Status)
	s.Equal(s.GetNow(), created.IssueDate)

	updated, err := s.service.UpdateTaxExemptionStatus(s.GetContext(), created.ID, dto.UpdateTaxExemptionStatusRequest{
		Status: types.ExemptionStatusApproved,
	})
	s.Require().NoError(err)
	s.Equal(types.ExemptionStatusApproved, updated.Status)

	resp, err := s.service.CalculateTax(s.GetContext(), dto.CalculateTaxRequest{
		CustomerID: lo.ToPtr("cust_1"), Amount: d("10"), Currency: "USD", Country: "US",
	})
	s.Require().NoError(err)
	s.True(resp.IsExempt())

	_, err = s.service.UpdateTaxExemptionStatus(s.GetContext(), created.ID, dto.UpdateTaxExemptionStatusRequest{
		Status: types.ExemptionStatusExpired,
	})
	s.Require().NoError(err)
	_, err = s.service.UpdateTaxExemptionStatus(s.GetContext(), created.ID, dto.UpdateTaxExemptionStatusRequest{
		Status: types.ExemptionStatusApproved,
	})
	s.True(ierr.IsConflict(err))

	_, err = s.service.UpdateTaxExemptionStatus(s.GetContext(), created.ID, dto.UpdateTaxExemptionStatusRequest{
		Status: "revoked",
	})
	s.True(ierr.IsValidation(err))

	list, err := s.service.ListTaxExemptions(s.GetContext(), &types.TaxExemptionFilter{CustomerID: lo.ToPtr("cust_1")})
	s.Require().NoError(err)
	s.Len(list.Items, 1)
}
