package taxexemption

import (
	"context"

	"github.com/flexprice/billingcore/internal/types"
)

type Repository interface {
	Create(ctx context.Context, exemption *TaxExemption) error
	Get(ctx context.Context, id string) (*TaxExemption, error)
	List(ctx context.Context, filter *types.TaxExemptionFilter) ([]*TaxExemption, error)
	Update(ctx context.Context, exemption *TaxExemption) error
}
