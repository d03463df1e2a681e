package subscription

import (
	"context"

	"github.com/flexprice/billingcore/internal/types"
)

type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
}
