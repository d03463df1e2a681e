package testutil

import (
	"context"
	"strings"

	"github.com/flexprice/billingcore/internal/domain/taxrate"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

// InMemoryTaxRateStore implements taxrate.Repository
type InMemoryTaxRateStore struct {
	*InMemoryStore[*taxrate.TaxRate]
}

func NewInMemoryTaxRateStore() *InMemoryTaxRateStore {
	return &InMemoryTaxRateStore{
		InMemoryStore: NewInMemoryStore[*taxrate.TaxRate](),
	}
}

func copyTaxRate(r *taxrate.TaxRate) *taxrate.TaxRate {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func taxRateFilterFn(ctx context.Context, r *taxrate.TaxRate, filter interface{}) bool {
	if r == nil {
		return false
	}
	if !CheckTenantFilter(ctx, r.TenantID) {
		return false
	}

	f, ok := filter.(*types.TaxRateFilter)
	if !ok || f == nil {
		return true
	}

	if len(f.TaxRateIDs) > 0 && !lo.Contains(f.TaxRateIDs, r.ID) {
		return false
	}
	if f.Country != "" && !strings.EqualFold(f.Country, r.Country) {
		return false
	}
	if f.StateUnset && r.State != nil && *r.State != "" {
		return false
	}
	if f.State != nil && (r.State == nil || !strings.EqualFold(*f.State, *r.State)) {
		return false
	}
	if f.EnabledOnly && !r.Enabled {
		return false
	}
	if f.EffectiveAt != nil && !r.IsEffectiveAt(*f.EffectiveAt) {
		return false
	}
	return true
}

func taxRateSortFn(i, j *taxrate.TaxRate) bool {
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryTaxRateStore) Create(ctx context.Context, r *taxrate.TaxRate) error {
	if r == nil {
		return ierr.NewError("tax rate cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, r.ID, copyTaxRate(r))
}

func (s *InMemoryTaxRateStore) Get(ctx context.Context, id string) (*taxrate.TaxRate, error) {
	r, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || !CheckTenantFilter(ctx, r.TenantID) {
		return nil, notFound("Tax rate", id)
	}
	return copyTaxRate(r), nil
}

func (s *InMemoryTaxRateStore) List(ctx context.Context, filter *types.TaxRateFilter) ([]*taxrate.TaxRate, error) {
	items, err := s.InMemoryStore.List(ctx, filter, taxRateFilterFn, taxRateSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(r *taxrate.TaxRate, _ int) *taxrate.TaxRate { return copyTaxRate(r) }), nil
}

func (s *InMemoryTaxRateStore) Count(ctx context.Context, filter *types.TaxRateFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, taxRateFilterFn)
}

func (s *InMemoryTaxRateStore) Update(ctx context.Context, r *taxrate.TaxRate) error {
	if r == nil {
		return ierr.NewError("tax rate cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, r.ID, copyTaxRate(r))
}

func (s *InMemoryTaxRateStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}
