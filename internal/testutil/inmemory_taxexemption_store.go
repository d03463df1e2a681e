package testutil

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/taxexemption"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

// InMemoryTaxExemptionStore implements taxexemption.Repository
type InMemoryTaxExemptionStore struct {
	*InMemoryStore[*taxexemption.TaxExemption]
}

func NewInMemoryTaxExemptionStore() *InMemoryTaxExemptionStore {
	return &InMemoryTaxExemptionStore{
		InMemoryStore: NewInMemoryStore[*taxexemption.TaxExemption](),
	}
}

func copyTaxExemption(e *taxexemption.TaxExemption) *taxexemption.TaxExemption {
	if e == nil {
		return nil
	}
	c := *e
	c.Jurisdictions = append([]string(nil), e.Jurisdictions...)
	return &c
}

func taxExemptionFilterFn(ctx context.Context, e *taxexemption.TaxExemption, filter interface{}) bool {
	if e == nil || !CheckTenantFilter(ctx, e.TenantID) {
		return false
	}

	f, ok := filter.(*types.TaxExemptionFilter)
	if !ok || f == nil {
		return true
	}

	if len(f.ExemptionIDs) > 0 && !lo.Contains(f.ExemptionIDs, e.ID) {
		return false
	}
	if f.TenantLevel && !e.IsTenantLevel() {
		return false
	}
	if f.CustomerID != nil && lo.FromPtr(e.CustomerID) != *f.CustomerID {
		return false
	}
	if f.Status != nil && e.Status != *f.Status {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, e.Status) {
		return false
	}
	return true
}

func taxExemptionSortFn(i, j *taxexemption.TaxExemption) bool {
	return i.CreatedAt.Before(j.CreatedAt)
}

func (s *InMemoryTaxExemptionStore) Create(ctx context.Context, e *taxexemption.TaxExemption) error {
	if e == nil {
		return ierr.NewError("tax exemption cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, e.ID, copyTaxExemption(e))
}

func (s *InMemoryTaxExemptionStore) Get(ctx context.Context, id string) (*taxexemption.TaxExemption, error) {
	e, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || !CheckTenantFilter(ctx, e.TenantID) {
		return nil, notFound("Tax exemption", id)
	}
	return copyTaxExemption(e), nil
}

func (s *InMemoryTaxExemptionStore) List(ctx context.Context, filter *types.TaxExemptionFilter) ([]*taxexemption.TaxExemption, error) {
	items, err := s.InMemoryStore.List(ctx, filter, taxExemptionFilterFn, taxExemptionSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(e *taxexemption.TaxExemption, _ int) *taxexemption.TaxExemption {
		return copyTaxExemption(e)
	}), nil
}

func (s *InMemoryTaxExemptionStore) Update(ctx context.Context, e *taxexemption.TaxExemption) error {
	if e == nil {
		return ierr.NewError("tax exemption cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, e.ID, copyTaxExemption(e))
}
