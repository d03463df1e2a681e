package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/billingcycle"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

const billingCycleColumns = `
	id, subscription_id, cycle_type, start_date, end_date, billing_date,
	total_amount, currency, status, invoice_id, processing_started_at, failure_reason,
	tenant_id, created_at, updated_at, created_by, updated_by`

var billingCycleSortable = []string{"created_at", "updated_at", "billing_date", "start_date"}

type billingCycleRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewBillingCycleRepository(db *postgres.DB, logger *logger.Logger) billingcycle.Repository {
	return &billingCycleRepository{db: db, logger: logger}
}

func (r *billingCycleRepository) Create(ctx context.Context, cycle *billingcycle.BillingCycle) error {
	query := `
		INSERT INTO billing_cycles (` + billingCycleColumns + `
		) VALUES (
			:id, :subscription_id, :cycle_type, :start_date, :end_date, :billing_date,
			:total_amount, :currency, :status, :invoice_id, :processing_started_at, :failure_reason,
			:tenant_id, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, cycle); err != nil {
		return dbError(err, "create billing cycle")
	}
	return nil
}

func (r *billingCycleRepository) Get(ctx context.Context, id string) (*billingcycle.BillingCycle, error) {
	q := r.db.GetQuerier(ctx)
	query := q.Rebind(`SELECT ` + billingCycleColumns + ` FROM billing_cycles WHERE id = ? AND tenant_id = ?`)

	var cycle billingcycle.BillingCycle
	if err := q.GetContext(ctx, &cycle, query, id, types.GetTenantID(ctx)); err != nil {
		return nil, getError(err, "billing cycle", id)
	}
	return &cycle, nil
}

// List orders due cycle queries by billing date so the oldest are processed first.
func (r *billingCycleRepository) List(ctx context.Context, filter *types.BillingCycleFilter) ([]*billingcycle.BillingCycle, error) {
	c := billingCycleConditions(ctx, filter)
	var qf *types.QueryFilter
	if filter != nil {
		qf = filter.QueryFilter
		if filter.BillingDateBefore != nil && (qf == nil || qf.Sort == nil) {
			due := &types.QueryFilter{Sort: lo.ToPtr("billing_date"), Order: lo.ToPtr("asc")}
			if qf != nil {
				due.Limit, due.Offset = qf.Limit, qf.Offset
			}
			qf = due
		}
	}

	var cycles []*billingcycle.BillingCycle
	err := selectAll(ctx, r.db.GetQuerier(ctx), &cycles,
		`SELECT `+billingCycleColumns+` FROM billing_cycles`, c, c.page(qf, billingCycleSortable, "created_at"))
	if err != nil {
		return nil, err
	}
	return cycles, nil
}

func (r *billingCycleRepository) Count(ctx context.Context, filter *types.BillingCycleFilter) (int, error) {
	return countAll(ctx, r.db.GetQuerier(ctx), "billing_cycles", billingCycleConditions(ctx, filter))
}

// UpdateIfStatus is a compare-and-set on status. The WHERE clause reads the
// stored row, so two processors racing on the same pending cycle cannot both
// succeed.
func (r *billingCycleRepository) UpdateIfStatus(ctx context.Context, cycle *billingcycle.BillingCycle, expected types.BillingCycleStatus) error {
	q := r.db.GetQuerier(ctx)
	query := q.Rebind(`
		UPDATE billing_cycles SET
			status = ?,
			total_amount = ?,
			currency = ?,
			invoice_id = ?,
			processing_started_at = ?,
			failure_reason = ?,
			updated_at = ?,
			updated_by = ?
		WHERE id = ? AND tenant_id = ? AND status = ?`)

	res, err := q.ExecContext(ctx, query,
		cycle.Status,
		cycle.TotalAmount,
		cycle.Currency,
		cycle.InvoiceID,
		cycle.ProcessingStartedAt,
		cycle.FailureReason,
		cycle.UpdatedAt,
		cycle.UpdatedBy,
		cycle.ID,
		cycle.TenantID,
		expected,
	)
	if err != nil {
		return dbError(err, "update billing cycle")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, "rows affected")
	}
	if n > 0 {
		return nil
	}

	var current types.BillingCycleStatus
	err = q.GetContext(ctx, &current,
		q.Rebind(`SELECT status FROM billing_cycles WHERE id = ? AND tenant_id = ?`), cycle.ID, cycle.TenantID)
	if err != nil {
		return getError(err, "billing cycle", cycle.ID)
	}
	return ierr.NewErrorf("billing cycle %s is %s, expected %s", cycle.ID, current, expected).
		WithHintf("Billing cycle is %s", current).
		WithReportableDetails(map[string]any{
			"billing_cycle_id": cycle.ID,
			"status":           current,
			"expected_status":  expected,
		}).
		Mark(ierr.ErrConflict)
}

func billingCycleConditions(ctx context.Context, f *types.BillingCycleFilter) *conditions {
	c := tenantScoped(ctx)
	if f == nil {
		return c
	}
	if len(f.CycleIDs) > 0 {
		c.add("id IN (?)", f.CycleIDs)
	}
	if f.SubscriptionID != "" {
		c.add("subscription_id = ?", f.SubscriptionID)
	}
	if len(f.Statuses) > 0 {
		c.add("status IN (?)", f.Statuses)
	}
	if f.BillingDateBefore != nil {
		c.add("billing_date <= ?", *f.BillingDateBefore)
	}
	return c
}
