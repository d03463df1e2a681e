package service

import (
	"context"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/domain/pricing"
	"github.com/flexprice/billingcore/internal/domain/subscription"
)

// PricingService applies the pricing rule chain to charges and subscriptions.
type PricingService interface {
	ApplyPricingRules(ctx context.Context, req dto.ApplyPricingRulesRequest) (*dto.PricingResponse, error)
	PriceSubscription(ctx context.Context, sub *subscription.Subscription) (*pricing.Result, error)
}

type pricingService struct {
	ServiceParams
}

func NewPricingService(params ServiceParams) PricingService {
	return &pricingService{
		ServiceParams: params,
	}
}

func (s *pricingService) engine() *pricing.Engine {
	if s.PricingEngine == nil {
		return pricing.NewEngine()
	}
	return s.PricingEngine
}

func (s *pricingService) ApplyPricingRules(_ context.Context, req dto.ApplyPricingRulesRequest) (*dto.PricingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	result, err := s.engine().Apply(req.BaseAmount, req.CycleType, req.Quantity, req.CustomRule())
	if err != nil {
		return nil, err
	}
	return &dto.PricingResponse{Result: result}, nil
}

// PriceSubscription prices one period of the subscription, using its
// per-customer overrides as the custom rule.
func (s *pricingService) PriceSubscription(_ context.Context, sub *subscription.Subscription) (*pricing.Result, error) {
	var custom *pricing.CustomRule
	if sub.DiscountPercent != nil || sub.MinimumCommitment != nil {
		custom = &pricing.CustomRule{
			DiscountPercent:   sub.DiscountPercent,
			MinimumCommitment: sub.MinimumCommitment,
		}
	}
	return s.engine().Apply(sub.Amount, sub.CycleType, sub.EffectiveQuantity(), custom)
}
