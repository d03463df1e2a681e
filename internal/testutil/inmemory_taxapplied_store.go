package testutil

import (
	"context"
	"strings"

	"github.com/flexprice/billingcore/internal/domain/taxapplied"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

// InMemoryTaxAppliedStore implements taxapplied.Repository
type InMemoryTaxAppliedStore struct {
	*InMemoryStore[*taxapplied.TaxApplied]
}

func NewInMemoryTaxAppliedStore() *InMemoryTaxAppliedStore {
	return &InMemoryTaxAppliedStore{
		InMemoryStore: NewInMemoryStore[*taxapplied.TaxApplied](),
	}
}

func taxAppliedFilterFn(ctx context.Context, t *taxapplied.TaxApplied, filter interface{}) bool {
	if t == nil || !CheckTenantFilter(ctx, t.TenantID) {
		return false
	}

	f, ok := filter.(*types.TaxAppliedFilter)
	if !ok || f == nil {
		return true
	}

	if f.CreatedAfter != nil && t.AppliedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && t.AppliedAt.After(*f.CreatedBefore) {
		return false
	}
	if f.Country != "" && !strings.EqualFold(t.Country, f.Country) {
		return false
	}
	if f.State != nil && !strings.EqualFold(lo.FromPtr(t.State), *f.State) {
		return false
	}
	if f.CustomerID != "" && lo.FromPtr(t.CustomerID) != f.CustomerID {
		return false
	}
	if f.InvoiceID != "" && lo.FromPtr(t.InvoiceID) != f.InvoiceID {
		return false
	}
	return true
}

func (s *InMemoryTaxAppliedStore) Create(ctx context.Context, t *taxapplied.TaxApplied) error {
	if t == nil {
		return ierr.NewError("tax applied record cannot be nil").
			Mark(ierr.ErrValidation)
	}
	c := *t
	return s.InMemoryStore.Create(ctx, t.ID, &c)
}

func (s *InMemoryTaxAppliedStore) List(ctx context.Context, filter *types.TaxAppliedFilter) ([]*taxapplied.TaxApplied, error) {
	return s.InMemoryStore.List(ctx, filter, taxAppliedFilterFn, func(i, j *taxapplied.TaxApplied) bool {
		return i.AppliedAt.Before(j.AppliedAt)
	})
}
