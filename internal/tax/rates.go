package tax

import (
	"context"
	"strings"

	"github.com/flexprice/billingcore/internal/cache"
	"github.com/flexprice/billingcore/internal/domain/taxrate"
	"github.com/flexprice/billingcore/internal/types"
)

// RateSource returns every enabled rate of a country for the tenant in ctx.
type RateSource interface {
	RatesForCountry(ctx context.Context, country string) ([]*taxrate.TaxRate, error)
}

// CachedRateSource reads through a cache keyed by tenant and country.
// Cached slices are shared; callers must not mutate the returned rates.
type CachedRateSource struct {
	repo  taxrate.Repository
	cache cache.Cache
}

func NewCachedRateSource(repo taxrate.Repository, c cache.Cache) *CachedRateSource {
	return &CachedRateSource{repo: repo, cache: c}
}

func (s *CachedRateSource) RatesForCountry(ctx context.Context, country string) ([]*taxrate.TaxRate, error) {
	country = strings.ToUpper(country)
	key := cache.GenerateKey(cache.PrefixTaxRate, types.GetTenantID(ctx), country)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			if rates, ok := cached.([]*taxrate.TaxRate); ok {
				return rates, nil
			}
		}
	}

	rates, err := s.repo.List(ctx, &types.TaxRateFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		Country:     country,
		EnabledOnly: true,
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, rates, 0)
	}
	return rates, nil
}

// Invalidate drops every cached country of the tenant in ctx. Call it after
// any tax rate write.
func (s *CachedRateSource) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cache.DeleteByPrefix(ctx, cache.GenerateKey(cache.PrefixTaxRate, types.GetTenantID(ctx), ""))
}
