package taxrate

import (
	"context"

	"github.com/flexprice/billingcore/internal/types"
)

// Repository defines the interface for tax rate persistence operations.
// All operations are scoped to the tenant in ctx.
type Repository interface {
	Create(ctx context.Context, rate *TaxRate) error
	Get(ctx context.Context, id string) (*TaxRate, error)
	List(ctx context.Context, filter *types.TaxRateFilter) ([]*TaxRate, error)
	Count(ctx context.Context, filter *types.TaxRateFilter) (int, error)
	Update(ctx context.Context, rate *TaxRate) error
	Delete(ctx context.Context, id string) error
}
