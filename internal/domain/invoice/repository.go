package invoice

import (
	"context"

	"github.com/flexprice/billingcore/internal/types"
)

// Repository persists invoices together with their line items.
type Repository interface {
	// Create stores the invoice and its line items atomically. A duplicate
	// invoice number yields ErrAlreadyExists.
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
	GetByNumber(ctx context.Context, number string) (*Invoice, error)
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)
	Count(ctx context.Context, filter *types.InvoiceFilter) (int, error)
	// Update writes the invoice if its stored version equals inv.Version and
	// bumps the version. A stale version yields ErrConflict.
	Update(ctx context.Context, inv *Invoice) error
	// Delete removes the invoice and its line items if its stored version
	// equals inv.Version. A stale version yields ErrConflict.
	Delete(ctx context.Context, inv *Invoice) error
	// NextSequence atomically returns the next invoice number sequence for
	// the tenant and month, starting at 1.
	NextSequence(ctx context.Context, yearMonth string) (int64, error)
}
