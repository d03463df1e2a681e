package service

import (
	"strings"

	"github.com/flexprice/billingcore/internal/domain/pricing"
	"github.com/flexprice/billingcore/internal/tax"
	"github.com/flexprice/billingcore/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	cfg := s.GetConfig()
	rates := tax.NewCachedRateSource(stores.TaxRateRepo, s.GetCache())

	return ServiceParams{
		Logger:           s.GetLogger(),
		Config:           cfg,
		DB:               s.GetDB(),
		Clock:            s.GetClock(),
		Metrics:          s.GetMetrics(),
		TaxRateRepo:      stores.TaxRateRepo,
		TaxExemptionRepo: stores.TaxExemptionRepo,
		TaxAppliedRepo:   stores.TaxAppliedRepo,
		SubRepo:          stores.SubscriptionRepo,
		InvoiceRepo:      stores.InvoiceRepo,
		BillingCycleRepo: stores.BillingCycleRepo,
		TaxResolver: tax.NewResolver(tax.ResolverParams{
			Config:     cfg.Tax,
			Rates:      rates,
			Exemptions: stores.TaxExemptionRepo,
			Logger:     s.GetLogger(),
			Metrics:    s.GetMetrics(),
		}),
		RateCache:           rates,
		PricingEngine:       pricing.NewEngine(),
		TransitionPublisher: s.GetPublisher(),
	}
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// gatherCompare checks the exposition text of the named metric families.
func gatherCompare(reg *prometheus.Registry, expected string, names ...string) error {
	return promtestutil.GatherAndCompare(reg, strings.NewReader(expected), names...)
}
