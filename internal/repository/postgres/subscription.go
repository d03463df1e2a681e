package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/subscription"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const subscriptionColumns = `
	id, customer_id, amount, quantity, currency, cycle_type,
	current_period_start, current_period_end, status,
	discount_percent, minimum_commitment,
	tenant_id, created_at, updated_at, created_by, updated_by`

var subscriptionSortable = []string{"created_at", "updated_at", "current_period_end"}

type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `
		) VALUES (
			:id, :customer_id, :amount, :quantity, :currency, :cycle_type,
			:current_period_start, :current_period_end, :status,
			:discount_percent, :minimum_commitment,
			:tenant_id, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, sub); err != nil {
		return dbError(err, "create subscription")
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	q := r.db.GetQuerier(ctx)
	query := q.Rebind(`SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = ? AND tenant_id = ?`)

	var sub subscription.Subscription
	if err := q.GetContext(ctx, &sub, query, id, types.GetTenantID(ctx)); err != nil {
		return nil, getError(err, "subscription", id)
	}
	return &sub, nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	c := tenantScoped(ctx)
	var qf *types.QueryFilter
	if filter != nil {
		qf = filter.QueryFilter
		if len(filter.SubscriptionIDs) > 0 {
			c.add("id IN (?)", filter.SubscriptionIDs)
		}
		if filter.CustomerID != "" {
			c.add("customer_id = ?", filter.CustomerID)
		}
		if len(filter.Statuses) > 0 {
			c.add("status IN (?)", filter.Statuses)
		}
	}

	var subs []*subscription.Subscription
	err := selectAll(ctx, r.db.GetQuerier(ctx), &subs,
		`SELECT `+subscriptionColumns+` FROM subscriptions`, c, c.page(qf, subscriptionSortable, "created_at"))
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		UPDATE subscriptions SET
			amount = :amount,
			quantity = :quantity,
			currency = :currency,
			cycle_type = :cycle_type,
			current_period_start = :current_period_start,
			current_period_end = :current_period_end,
			status = :status,
			discount_percent = :discount_percent,
			minimum_commitment = :minimum_commitment,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	res, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, sub)
	if err != nil {
		return dbError(err, "update subscription")
	}
	return requireRow(res, "subscription", sub.ID)
}
