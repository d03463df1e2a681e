package taxapplied

import (
	"context"

	"github.com/flexprice/billingcore/internal/types"
)

type Repository interface {
	Create(ctx context.Context, record *TaxApplied) error
	List(ctx context.Context, filter *types.TaxAppliedFilter) ([]*TaxApplied, error)
}
