package testutil

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/billingcycle"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

// InMemoryBillingCycleStore implements billingcycle.Repository. The status
// compare-and-set runs under the store's write lock.
type InMemoryBillingCycleStore struct {
	*InMemoryStore[*billingcycle.BillingCycle]
}

func NewInMemoryBillingCycleStore() *InMemoryBillingCycleStore {
	return &InMemoryBillingCycleStore{
		InMemoryStore: NewInMemoryStore[*billingcycle.BillingCycle](),
	}
}

func copyBillingCycle(c *billingcycle.BillingCycle) *billingcycle.BillingCycle {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func billingCycleFilterFn(ctx context.Context, c *billingcycle.BillingCycle, filter interface{}) bool {
	if c == nil || !CheckTenantFilter(ctx, c.TenantID) {
		return false
	}

	f, ok := filter.(*types.BillingCycleFilter)
	if !ok || f == nil {
		return true
	}

	if len(f.CycleIDs) > 0 && !lo.Contains(f.CycleIDs, c.ID) {
		return false
	}
	if f.SubscriptionID != "" && lo.FromPtr(c.SubscriptionID) != f.SubscriptionID {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, c.Status) {
		return false
	}
	if f.BillingDateBefore != nil && c.BillingDate.After(*f.BillingDateBefore) {
		return false
	}
	return true
}

func billingCycleSortFn(i, j *billingcycle.BillingCycle) bool {
	return i.BillingDate.Before(j.BillingDate)
}

func (s *InMemoryBillingCycleStore) Create(ctx context.Context, c *billingcycle.BillingCycle) error {
	if c == nil {
		return ierr.NewError("billing cycle cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, c.ID, copyBillingCycle(c))
}

func (s *InMemoryBillingCycleStore) Get(ctx context.Context, id string) (*billingcycle.BillingCycle, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || !CheckTenantFilter(ctx, c.TenantID) {
		return nil, notFound("Billing cycle", id)
	}
	return copyBillingCycle(c), nil
}

func (s *InMemoryBillingCycleStore) List(ctx context.Context, filter *types.BillingCycleFilter) ([]*billingcycle.BillingCycle, error) {
	items, err := s.InMemoryStore.List(ctx, filter, billingCycleFilterFn, billingCycleSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(c *billingcycle.BillingCycle, _ int) *billingcycle.BillingCycle {
		return copyBillingCycle(c)
	}), nil
}

func (s *InMemoryBillingCycleStore) Count(ctx context.Context, filter *types.BillingCycleFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, billingCycleFilterFn)
}

func (s *InMemoryBillingCycleStore) UpdateIfStatus(ctx context.Context, c *billingcycle.BillingCycle, expected types.BillingCycleStatus) error {
	if c == nil {
		return ierr.NewError("billing cycle cannot be nil").
			Mark(ierr.ErrValidation)
	}

	return s.InMemoryStore.UpdateFunc(ctx, c.ID, func(current *billingcycle.BillingCycle) (*billingcycle.BillingCycle, error) {
		if !CheckTenantFilter(ctx, current.TenantID) {
			return nil, notFound("Billing cycle", c.ID)
		}
		if current.Status != expected {
			return nil, ierr.NewErrorf("billing cycle %s is %s, not %s", c.ID, current.Status, expected).
				WithHintf("Billing cycle is %s", current.Status).
				WithReportableDetails(map[string]any{
					"billing_cycle_id": c.ID,
					"status":           current.Status,
					"expected_status":  expected,
				}).
				Mark(ierr.ErrConflict)
		}
		return copyBillingCycle(c), nil
	})
}
