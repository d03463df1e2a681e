package service

import (
	"testing"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/subscription"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/testutil"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type PricingServiceSuite struct {
	testutil.BaseServiceTestSuite
	service PricingService
}

func TestPricingService(t *testing.T) {
	suite.Run(t, new(PricingServiceSuite))
}

func (s *PricingServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewPricingService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *PricingServiceSuite) TestApplyPricingRules() {
	tests := []struct {
		name      string
		req       dto.ApplyPricingRulesRequest
		wantFinal string
		wantDisc  string
		wantRules []string
	}{
		{
			name:      "no discounts",
			req:       dto.ApplyPricingRulesRequest{BaseAmount: d("20"), CycleType: types.BillingCycleMonthly, Quantity: 1},
			wantFinal: "20.00",
			wantDisc:  "0.00",
			wantRules: []string{},
		},
		{
			name:      "annual volume enterprise",
			req:       dto.ApplyPricingRulesRequest{BaseAmount: d("100"), CycleType: types.BillingCycleAnnually, Quantity: 20},
			wantFinal: "1292.00",
			wantDisc:  "708.00",
			wantRules: []string{
				"Annual billing discount: 20%",
				"Volume discount: 5%",
				"Enterprise discount: 15%",
			},
		},
		{
			name: "custom discount capped",
			req: dto.ApplyPricingRulesRequest{
				BaseAmount:      d("100"),
				CycleType:       types.BillingCycleMonthly,
				Quantity:        1,
				DiscountPercent: lo.ToPtr(d("80")),
			},
			wantFinal: "50.00",
			wantDisc:  "50.00",
			wantRules: []string{"Custom discount: 80%", "Maximum discount cap: 50%"},
		},
		{
			name:      "minimum price floor",
			req:       dto.ApplyPricingRulesRequest{BaseAmount: d("1"), CycleType: types.BillingCycleMonthly, Quantity: 1},
			wantFinal: "5.00",
			wantDisc:  "-4.00",
			wantRules: []string{"Minimum price: $5.00"},
		},
		{
			name: "minimum commitment",
			req: dto.ApplyPricingRulesRequest{
				BaseAmount:        d("10"),
				CycleType:         types.BillingCycleMonthly,
				Quantity:          1,
				MinimumCommitment: lo.ToPtr(d("25")),
			},
			wantFinal: "25.00",
			wantDisc:  "-15.00",
			wantRules: []string{"Minimum price: $25.00"},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp, err := s.service.ApplyPricingRules(s.GetContext(), tt.req)
			s.Require().NoError(err)
			s.Equal(tt.wantFinal, resp.FinalAmount.StringFixed(2))
			s.Equal(tt.wantDisc, resp.DiscountApplied.StringFixed(2))
			s.Equal(tt.wantRules, resp.RulesApplied)
		})
	}
}

func (s *PricingServiceSuite) TestApplyPricingRules_Validation() {
	tests := []struct {
		name string
		req  dto.ApplyPricingRulesRequest
	}{
		{"zero quantity", dto.ApplyPricingRulesRequest{BaseAmount: d("10"), CycleType: types.BillingCycleMonthly}},
		{"negative base", dto.ApplyPricingRulesRequest{BaseAmount: d("-10"), CycleType: types.BillingCycleMonthly, Quantity: 1}},
		{"unknown cycle", dto.ApplyPricingRulesRequest{BaseAmount: d("10"), CycleType: "hourly", Quantity: 1}},
		{"discount above hundred", dto.ApplyPricingRulesRequest{
			BaseAmount: d("10"), CycleType: types.BillingCycleMonthly, Quantity: 1, DiscountPercent: lo.ToPtr(d("150")),
		}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.ApplyPricingRules(s.GetContext(), tt.req)
			s.True(ierr.IsValidation(err), "got %v", err)
		})
	}
}

func (s *PricingServiceSuite) TestPriceSubscription_UsesOverrides() {
	sub := subscription.New(s.GetContext(), "cust_1", d("50"), types.BillingCycleMonthly, s.GetNow(), s.GetNow().AddDate(0, 1, 0))
	sub.Quantity = 12
	sub.DiscountPercent = lo.ToPtr(d("10"))

	result, err := s.service.PriceSubscription(s.GetContext(), sub)
	s.Require().NoError(err)
	s.Equal("600.00", result.GrossAmount.StringFixed(2))
	s.Equal("513.00", result.FinalAmount.StringFixed(2))
	s.Equal([]string{"Volume discount: 5%", "Custom discount: 10%"}, result.RulesApplied)

	sub.Quantity = 0
	sub.DiscountPercent = nil
	result, err = s.service.PriceSubscription(s.GetContext(), sub)
	s.Require().NoError(err)
	s.Equal("50.00", result.FinalAmount.StringFixed(2))
}
