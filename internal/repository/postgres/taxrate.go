package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/taxrate"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const taxRateColumns = `
	id, jurisdiction_code, name, country, state, tax_type, rate, threshold,
	enabled, effective_date, expiration_date,
	tenant_id, created_at, updated_at, created_by, updated_by`

var taxRateSortable = []string{"created_at", "updated_at", "name", "jurisdiction_code", "effective_date"}

type taxRateRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewTaxRateRepository(db *postgres.DB, logger *logger.Logger) taxrate.Repository {
	return &taxRateRepository{db: db, logger: logger}
}

func (r *taxRateRepository) Create(ctx context.Context, rate *taxrate.TaxRate) error {
	query := `
		INSERT INTO tax_rates (` + taxRateColumns + `
		) VALUES (
			:id, :jurisdiction_code, :name, :country, :state, :tax_type, :rate, :threshold,
			:enabled, :effective_date, :expiration_date,
			:tenant_id, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, rate); err != nil {
		return dbError(err, "create tax rate")
	}
	return nil
}

func (r *taxRateRepository) Get(ctx context.Context, id string) (*taxrate.TaxRate, error) {
	q := r.db.GetQuerier(ctx)
	query := q.Rebind(`SELECT ` + taxRateColumns + ` FROM tax_rates WHERE id = ? AND tenant_id = ?`)

	var rate taxrate.TaxRate
	if err := q.GetContext(ctx, &rate, query, id, types.GetTenantID(ctx)); err != nil {
		return nil, getError(err, "tax rate", id)
	}
	return &rate, nil
}

func (r *taxRateRepository) List(ctx context.Context, filter *types.TaxRateFilter) ([]*taxrate.TaxRate, error) {
	c := taxRateConditions(ctx, filter)
	var qf *types.QueryFilter
	if filter != nil {
		qf = filter.QueryFilter
	}

	var rates []*taxrate.TaxRate
	err := selectAll(ctx, r.db.GetQuerier(ctx), &rates,
		`SELECT `+taxRateColumns+` FROM tax_rates`, c, c.page(qf, taxRateSortable, "created_at"))
	if err != nil {
		return nil, err
	}
	return rates, nil
}

func (r *taxRateRepository) Count(ctx context.Context, filter *types.TaxRateFilter) (int, error) {
	return countAll(ctx, r.db.GetQuerier(ctx), "tax_rates", taxRateConditions(ctx, filter))
}

func (r *taxRateRepository) Update(ctx context.Context, rate *taxrate.TaxRate) error {
	query := `
		UPDATE tax_rates SET
			name = :name,
			rate = :rate,
			threshold = :threshold,
			enabled = :enabled,
			effective_date = :effective_date,
			expiration_date = :expiration_date,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	res, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, rate)
	if err != nil {
		return dbError(err, "update tax rate")
	}
	return requireRow(res, "tax rate", rate.ID)
}

func (r *taxRateRepository) Delete(ctx context.Context, id string) error {
	q := r.db.GetQuerier(ctx)
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM tax_rates WHERE id = ? AND tenant_id = ?`), id, types.GetTenantID(ctx))
	if err != nil {
		return dbError(err, "delete tax rate")
	}
	return requireRow(res, "tax rate", id)
}

func taxRateConditions(ctx context.Context, f *types.TaxRateFilter) *conditions {
	c := tenantScoped(ctx)
	if f == nil {
		return c
	}
	if len(f.TaxRateIDs) > 0 {
		c.add("id IN (?)", f.TaxRateIDs)
	}
	if f.Country != "" {
		c.add("UPPER(country) = UPPER(?)", f.Country)
	}
	if f.StateUnset {
		c.add("(state IS NULL OR state = '')")
	}
	if f.State != nil {
		c.add("UPPER(state) = UPPER(?)", *f.State)
	}
	if f.EnabledOnly {
		c.add("enabled = TRUE")
	}
	if f.EffectiveAt != nil {
		c.add("enabled = TRUE")
		c.add("(effective_date IS NULL OR effective_date <= ?)", *f.EffectiveAt)
		c.add("(expiration_date IS NULL OR expiration_date >= ?)", *f.EffectiveAt)
	}
	return c
}
