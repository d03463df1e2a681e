package tax_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/domain/taxexemption"
	"github.com/flexprice/billingcore/internal/domain/taxrate"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/tax"
	"github.com/flexprice/billingcore/internal/testutil"
	"github.com/flexprice/billingcore/internal/types"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ResolverSuite struct {
	testutil.BaseServiceTestSuite
	rates    *tax.CachedRateSource
	platform *testutil.MockPlatformClient
	external *testutil.MockExternalClient
}

func TestResolver(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.rates = tax.NewCachedRateSource(s.GetStores().TaxRateRepo, s.GetCache())
	s.platform = new(testutil.MockPlatformClient)
	s.external = new(testutil.MockExternalClient)
}

func (s *ResolverSuite) resolver(mutate func(cfg *config.TaxConfig)) *tax.Resolver {
	cfg := s.GetConfig().Tax
	if mutate != nil {
		mutate(&cfg)
	}
	return tax.NewResolver(tax.ResolverParams{
		Config:     cfg,
		Rates:      s.rates,
		Exemptions: s.GetStores().TaxExemptionRepo,
		Platform:   s.platform,
		External:   s.external,
		Logger:     s.GetLogger(),
		Metrics:    s.GetMetrics(),
	})
}

func (s *ResolverSuite) createRate(country string, state *string, rate string) *taxrate.TaxRate {
	r := taxrate.New(s.GetContext(), country+" tax", types.Jurisdiction{Country: country, State: state}, types.TaxTypeSalesTax, decimal.RequireFromString(rate))
	s.Require().NoError(s.GetStores().TaxRateRepo.Create(s.GetContext(), r))
	return r
}

func (s *ResolverSuite) createExemption(customerID *string, country string, status types.ExemptionStatus) *taxexemption.TaxExemption {
	e := &taxexemption.TaxExemption{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TAX_EXEMPTION),
		CustomerID:        customerID,
		ExemptionType:     "resale",
		CertificateNumber: "CERT-" + country,
		Status:            status,
		Country:           country,
		IssueDate:         s.GetNow().AddDate(-1, 0, 0),
		BaseModel:         types.GetDefaultBaseModel(s.GetContext()),
	}
	s.Require().NoError(s.GetStores().TaxExemptionRepo.Create(s.GetContext(), e))
	return e
}

func (s *ResolverSuite) request(amount string, country string, state *string) tax.Request {
	return tax.Request{
		CustomerID:   lo.ToPtr("cust_1"),
		Amount:       decimal.RequireFromString(amount),
		Currency:     "usd",
		Jurisdiction: types.Jurisdiction{Country: country, State: state},
		At:           s.GetNow(),
	}
}

func (s *ResolverSuite) TestManual_StateRateWins() {
	s.createRate("US", nil, "0.05")
	stateRate := s.createRate("US", lo.ToPtr("CA"), "0.0725")

	result, err := s.resolver(nil).CalculateTax(s.GetContext(), s.request("100", "us", lo.ToPtr("ca")))
	s.Require().NoError(err)

	s.Equal(types.TaxCalculationManual, result.CalculationMethod)
	s.Equal("7.25", result.TaxAmount.StringFixed(2))
	s.Equal("107.25", result.TotalAmount.StringFixed(2))
	s.Equal("USD", result.Currency)
	s.Equal("US-CA", result.Jurisdiction.Code)
	s.Equal(stateRate.ID, lo.FromPtr(result.TaxRateID))
	s.Len(result.Taxes, 1)
}

func (s *ResolverSuite) TestManual_FallsBackToCountryRate() {
	countryRate := s.createRate("US", nil, "0.05")

	result, err := s.resolver(nil).CalculateTax(s.GetContext(), s.request("19.99", "US", lo.ToPtr("NY")))
	s.Require().NoError(err)

	s.Equal("1.00", result.TaxAmount.StringFixed(2))
	s.Equal(countryRate.ID, lo.FromPtr(result.TaxRateID))
	s.Equal("US", result.Jurisdiction.Code)
}

func (s *ResolverSuite) TestManual_NoRateIsZeroTax() {
	result, err := s.resolver(nil).CalculateTax(s.GetContext(), s.request("250", "DE", nil))
	s.Require().NoError(err)

	s.True(result.TaxAmount.IsZero())
	s.Equal("250", result.TotalAmount.String())
	s.Equal("DE", result.Jurisdiction.Code)
	s.Nil(result.TaxRateID)
}

func (s *ResolverSuite) TestManual_IgnoresOtherTenants() {
	other := testutil.WithTenant(s.GetContext(), "tenant_other")
	r := taxrate.New(other, "foreign", types.Jurisdiction{Country: "US"}, types.TaxTypeSalesTax, decimal.RequireFromString("0.5"))
	s.Require().NoError(s.GetStores().TaxRateRepo.Create(other, r))

	result, err := s.resolver(nil).CalculateTax(s.GetContext(), s.request("100", "US", nil))
	s.Require().NoError(err)
	s.True(result.TaxAmount.IsZero())
}

func (s *ResolverSuite) TestValidation() {
	tests := []struct {
		name string
		req  tax.Request
	}{
		{"negative amount", s.request("-1", "US", nil)},
		{"bad country", s.request("10", "USA", nil)},
		{"bad state", s.request("10", "US", lo.ToPtr("CALI"))},
		{"bad currency", func() tax.Request { r := s.request("10", "US", nil); r.Currency = "dollar"; return r }()},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.resolver(nil).CalculateTax(s.GetContext(), tt.req)
			s.True(ierr.IsValidation(err))
		})
	}
}

func (s *ResolverSuite) TestExemption_ZeroesTaxRegardlessOfRates() {
	s.createRate("US", nil, "0.1")
	e := s.createExemption(lo.ToPtr("cust_1"), "US", types.ExemptionStatusApproved)

	result, err := s.resolver(nil).CalculateTax(s.GetContext(), s.request("100", "US", lo.ToPtr("TX")))
	s.Require().NoError(err)

	s.True(result.TaxAmount.IsZero())
	s.Equal("100", result.TotalAmount.String())
	s.Require().True(result.IsExempt())
	s.Equal(e.ID, result.Exemption.ID)
	s.Equal("CERT-US", result.Exemption.CertificateNumber)
}

func (s *ResolverSuite) TestExemption_TenantLevelBeforeCustomer() {
	s.createExemption(lo.ToPtr("cust_1"), "US", types.ExemptionStatusApproved)
	tenantWide := s.createExemption(nil, "US", types.ExemptionStatusApproved)

	result, err := s.resolver(nil).CalculateTax(s.GetContext(), s.request("100", "US", nil))
	s.Require().NoError(err)
	s.Equal(tenantWide.ID, result.Exemption.ID)
}

func (s *ResolverSuite) TestExemption_ExplicitFirst() {
	s.createExemption(nil, "US", types.ExemptionStatusApproved)
	explicit := s.createExemption(lo.ToPtr("cust_1"), "US", types.ExemptionStatusApproved)

	req := s.request("100", "US", nil)
	req.ExemptionID = lo.ToPtr(explicit.ID)

	result, err := s.resolver(nil).CalculateTax(s.GetContext(), req)
	s.Require().NoError(err)
	s.Equal(explicit.ID, result.Exemption.ID)
}

func (s *ResolverSuite) TestExemption_InvalidOrForeignIsIgnored() {
	s.createRate("US", nil, "0.1")
	s.createExemption(lo.ToPtr("cust_1"), "US", types.ExemptionStatusPending)
	s.createExemption(lo.ToPtr("cust_2"), "US", types.ExemptionStatusApproved)
	expired := s.createExemption(lo.ToPtr("cust_1"), "US", types.ExemptionStatusApproved)
	expired.ExpirationDate = lo.ToPtr(s.GetNow().Add(-time.Hour))
	s.Require().NoError(s.GetStores().TaxExemptionRepo.Update(s.GetContext(), expired))
	s.createExemption(lo.ToPtr("cust_1"), "CA", types.ExemptionStatusApproved)

	result, err := s.resolver(nil).CalculateTax(s.GetContext(), s.request("100", "US", nil))
	s.Require().NoError(err)
	s.False(result.IsExempt())
	s.Equal("10.00", result.TaxAmount.StringFixed(2))
}

func (s *ResolverSuite) TestExemption_UnknownExplicitIsNotFound() {
	req := s.request("100", "US", nil)
	req.ExemptionID = lo.ToPtr("txe_missing")

	_, err := s.resolver(nil).CalculateTax(s.GetContext(), req)
	s.True(ierr.IsNotFound(err))
}

func (s *ResolverSuite) TestPlatform_Success() {
	s.platform.On("CalculateTax", mock.Anything, mock.MatchedBy(func(req tax.PlatformTaxRequest) bool {
		return req.Currency == "USD" &&
			len(req.LineItems) == 1 &&
			req.LineItems[0].AmountMinorUnits == 10000 &&
			req.CustomerAddress.State == "CA"
	})).Return(&tax.PlatformTaxResponse{
		LineItems: []tax.PlatformLineItemResult{{
			Reference: "charge",
			TaxBreakdown: []tax.PlatformTaxBreakdown{
				{Jurisdiction: "California", Rate: decimal.RequireFromString("0.06"), TaxAmountMinorUnits: 600},
				{Jurisdiction: "Los Angeles County", Rate: decimal.RequireFromString("0.0125"), TaxAmountMinorUnits: 125},
			},
		}},
		TaxAmountExclusiveMinorUnits: 725,
	}, nil).Once()

	r := s.resolver(func(cfg *config.TaxConfig) {
		cfg.Provider = types.TaxProviderIntegratedPlatform
		cfg.IntegratedPlatform.Enabled = true
	})
	result, err := r.CalculateTax(s.GetContext(), s.request("100", "US", lo.ToPtr("CA")))
	s.Require().NoError(err)

	s.Equal(types.TaxCalculationPlatform, result.CalculationMethod)
	s.Equal("7.25", result.TaxAmount.StringFixed(2))
	s.Equal("0.0725", result.TaxRate.String())
	s.Len(result.Taxes, 2)
	s.Equal("California", result.Jurisdiction.Name)
	s.Empty(result.FallbackReason)
	s.platform.AssertExpectations(s.T())
}

func (s *ResolverSuite) TestPlatform_FailureFallsBackToManual() {
	s.createRate("US", nil, "0.05")
	s.platform.On("CalculateTax", mock.Anything, mock.Anything).
		Return(nil, errors.New("stripe unavailable")).Once()

	r := s.resolver(func(cfg *config.TaxConfig) {
		cfg.Provider = types.TaxProviderIntegratedPlatform
		cfg.IntegratedPlatform.Enabled = true
	})
	result, err := r.CalculateTax(s.GetContext(), s.request("100", "US", nil))
	s.Require().NoError(err)

	s.Equal(types.TaxCalculationManual, result.CalculationMethod)
	s.Equal("5.00", result.TaxAmount.StringFixed(2))
	s.Contains(result.FallbackReason, "stripe unavailable")

	count, err := promtestutil.GatherAndCount(s.GetRegistry(), "billingcore_tax_provider_fallbacks_total")
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *ResolverSuite) TestPlatform_CancelledCallerIsSurfaced() {
	ctx, cancel := context.WithCancel(s.GetContext())
	s.platform.On("CalculateTax", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled).Once()

	r := s.resolver(func(cfg *config.TaxConfig) {
		cfg.Provider = types.TaxProviderIntegratedPlatform
		cfg.IntegratedPlatform.Enabled = true
	})
	_, err := r.CalculateTax(ctx, s.request("100", "US", nil))
	s.Require().Error(err)
	s.True(ierr.IsSystem(err))
}

func (s *ResolverSuite) TestPlatform_DisabledIsConfigurationError() {
	r := s.resolver(func(cfg *config.TaxConfig) {
		cfg.Provider = types.TaxProviderIntegratedPlatform
		cfg.IntegratedPlatform.Enabled = false
	})
	_, err := r.CalculateTax(s.GetContext(), s.request("100", "US", nil))
	s.True(ierr.IsConfiguration(err))
	s.platform.AssertNotCalled(s.T(), "CalculateTax", mock.Anything, mock.Anything)
}

func (s *ResolverSuite) TestExternal_UnconfiguredIsConfigurationError() {
	r := s.resolver(func(cfg *config.TaxConfig) {
		cfg.Provider = types.TaxProviderExternal
		cfg.External.APIURL = ""
	})
	_, err := r.CalculateTax(s.GetContext(), s.request("100", "US", nil))
	s.True(ierr.IsConfiguration(err))
}

func (s *ResolverSuite) TestExternal_Success() {
	s.external.On("CalculateTax", mock.Anything, mock.MatchedBy(func(req tax.ExternalTaxRequest) bool {
		return req.Country == "US" && req.Currency == "USD" && req.TenantID == types.DefaultTenantID
	})).Return(&tax.ExternalTaxResponse{
		TaxAmount:        decimal.RequireFromString("8.875"),
		TaxRate:          decimal.RequireFromString("0.08875"),
		JurisdictionCode: "US-NY",
		JurisdictionName: "New York",
	}, nil).Once()

	r := s.resolver(func(cfg *config.TaxConfig) {
		cfg.Provider = types.TaxProviderExternal
		cfg.External.APIURL = "https://tax.example.com"
	})
	result, err := r.CalculateTax(s.GetContext(), s.request("100", "US", lo.ToPtr("NY")))
	s.Require().NoError(err)

	s.Equal(types.TaxCalculationExternal, result.CalculationMethod)
	s.Equal("8.88", result.TaxAmount.StringFixed(2))
	s.Equal("108.88", result.TotalAmount.StringFixed(2))
	s.Equal("New York", result.Jurisdiction.Name)
}

func (s *ResolverSuite) TestExternal_ErrorIsSurfaced() {
	s.createRate("US", nil, "0.05")
	s.external.On("CalculateTax", mock.Anything, mock.Anything).
		Return(nil, errors.New("502 bad gateway")).Once()

	r := s.resolver(func(cfg *config.TaxConfig) {
		cfg.Provider = types.TaxProviderExternal
		cfg.External.APIURL = "https://tax.example.com"
	})
	_, err := r.CalculateTax(s.GetContext(), s.request("100", "US", nil))
	s.True(ierr.IsProvider(err))
}

func (s *ResolverSuite) TestCachedRateSource_ReadsThroughAndInvalidates() {
	s.createRate("US", nil, "0.05")

	rates, err := s.rates.RatesForCountry(s.GetContext(), "us")
	s.Require().NoError(err)
	s.Len(rates, 1)

	s.createRate("US", lo.ToPtr("CA"), "0.0725")
	rates, err = s.rates.RatesForCountry(s.GetContext(), "US")
	s.Require().NoError(err)
	s.Len(rates, 1, "served from cache")

	s.rates.Invalidate(s.GetContext())
	rates, err = s.rates.RatesForCountry(s.GetContext(), "US")
	s.Require().NoError(err)
	s.Len(rates, 2)
}
