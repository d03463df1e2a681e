package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/billingcore/internal/domain/invoice"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]

	mu        sync.Mutex
	sequences map[string]int64
	createErr error
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore[*invoice.Invoice](),
		sequences:     make(map[string]int64),
	}
}

// FailCreates makes every subsequent Create return err; nil restores normal behaviour.
func (s *InMemoryInvoiceStore) FailCreates(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = err
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	c.LineItems = lo.Map(inv.LineItems, func(li *invoice.LineItem, _ int) *invoice.LineItem {
		cp := *li
		return &cp
	})
	return &c
}

func invoiceFilterFn(ctx context.Context, inv *invoice.Invoice, filter interface{}) bool {
	if inv == nil || !CheckTenantFilter(ctx, inv.TenantID) {
		return false
	}

	f, ok := filter.(*types.InvoiceFilter)
	if !ok || f == nil {
		return true
	}

	if len(f.InvoiceIDs) > 0 && !lo.Contains(f.InvoiceIDs, inv.ID) {
		return false
	}
	if f.CustomerID != "" && inv.CustomerID != f.CustomerID {
		return false
	}
	if f.SubscriptionID != "" && lo.FromPtr(inv.SubscriptionID) != f.SubscriptionID {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, inv.Status) {
		return false
	}
	if f.IssuedAfter != nil && inv.IssuedDate.Before(*f.IssuedAfter) {
		return false
	}
	if f.IssuedBefore != nil && !inv.IssuedDate.Before(*f.IssuedBefore) {
		return false
	}
	return true
}

func invoiceSortFn(i, j *invoice.Invoice) bool {
	return i.InvoiceNumber > j.InvoiceNumber
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return s.createErr
	}

	// UNIQUE(tenant_id, invoice_number)
	existing, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, other *invoice.Invoice, _ interface{}) bool {
		return other.TenantID == inv.TenantID && other.InvoiceNumber == inv.InvoiceNumber
	}, nil)
	if len(existing) > 0 {
		return ierr.NewErrorf("invoice number %s already exists", inv.InvoiceNumber).
			WithHint("An invoice with this number already exists").
			WithReportableDetails(map[string]any{
				"invoice_number": inv.InvoiceNumber,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	return s.InMemoryStore.Create(ctx, inv.ID, copyInvoice(inv))
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || !CheckTenantFilter(ctx, inv.TenantID) {
		return nil, notFound("Invoice", id)
	}
	return copyInvoice(inv), nil
}

func (s *InMemoryInvoiceStore) GetByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	items, err := s.InMemoryStore.List(ctx, nil, func(ctx context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return CheckTenantFilter(ctx, inv.TenantID) && inv.InvoiceNumber == number
	}, nil)
	if err != nil || len(items) == 0 {
		return nil, notFound("Invoice", number)
	}
	return copyInvoice(items[0]), nil
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	items, err := s.InMemoryStore.List(ctx, filter, invoiceFilterFn, invoiceSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(inv *invoice.Invoice, _ int) *invoice.Invoice { return copyInvoice(inv) }), nil
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, invoiceFilterFn)
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").
			Mark(ierr.ErrValidation)
	}

	err := s.InMemoryStore.UpdateFunc(ctx, inv.ID, func(current *invoice.Invoice) (*invoice.Invoice, error) {
		if !CheckTenantFilter(ctx, current.TenantID) {
			return nil, notFound("Invoice", inv.ID)
		}
		if current.Version != inv.Version {
			return nil, staleInvoice(inv, current)
		}
		next := copyInvoice(inv)
		next.Version++
		return next, nil
	})
	if err != nil {
		return err
	}
	inv.Version++
	return nil
}

func (s *InMemoryInvoiceStore) Delete(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").
			Mark(ierr.ErrValidation)
	}

	err := s.InMemoryStore.DeleteFunc(ctx, inv.ID, func(current *invoice.Invoice) error {
		if !CheckTenantFilter(ctx, current.TenantID) {
			return notFound("Invoice", inv.ID)
		}
		if current.Version != inv.Version {
			return staleInvoice(inv, current)
		}
		return nil
	})
	if ierr.IsNotFound(err) {
		return notFound("Invoice", inv.ID)
	}
	return err
}

func staleInvoice(inv, current *invoice.Invoice) error {
	return ierr.NewErrorf("invoice %s was modified concurrently", inv.ID).
		WithHint("The invoice was changed by another request, please retry").
		WithReportableDetails(map[string]any{
			"invoice_id":       inv.ID,
			"expected_version": inv.Version,
			"current_version":  current.Version,
		}).
		Mark(ierr.ErrConflict)
}

func (s *InMemoryInvoiceStore) NextSequence(ctx context.Context, yearMonth string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := types.GetTenantID(ctx) + ":" + yearMonth
	s.sequences[key]++
	return s.sequences[key], nil
}

// Clear removes invoices and resets sequences.
func (s *InMemoryInvoiceStore) Clear() {
	s.InMemoryStore.Clear()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences = make(map[string]int64)
	s.createErr = nil
}
