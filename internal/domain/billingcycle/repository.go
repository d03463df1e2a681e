package billingcycle

import (
	"context"

	"github.com/flexprice/billingcore/internal/types"
)

type Repository interface {
	Create(ctx context.Context, cycle *BillingCycle) error
	Get(ctx context.Context, id string) (*BillingCycle, error)
	List(ctx context.Context, filter *types.BillingCycleFilter) ([]*BillingCycle, error)
	Count(ctx context.Context, filter *types.BillingCycleFilter) (int, error)
	// UpdateIfStatus writes cycle only when the stored status still equals
	// expected. Otherwise it returns ErrConflict and leaves the row untouched.
	UpdateIfStatus(ctx context.Context, cycle *BillingCycle, expected types.BillingCycleStatus) error
}
