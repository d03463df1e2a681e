package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/taxapplied"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const taxAppliedColumns = `
	id, customer_id, invoice_id, jurisdiction_code, jurisdiction_name, country, state,
	taxable_amount, tax_amount, tax_rate, currency, calculation_method,
	exemption_id, exemption_type, applied_at,
	tenant_id, created_at, updated_at, created_by, updated_by`

type taxAppliedRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewTaxAppliedRepository(db *postgres.DB, logger *logger.Logger) taxapplied.Repository {
	return &taxAppliedRepository{db: db, logger: logger}
}

// Create appends a record. Applied tax is never updated.
func (r *taxAppliedRepository) Create(ctx context.Context, record *taxapplied.TaxApplied) error {
	query := `
		INSERT INTO tax_applied (` + taxAppliedColumns + `
		) VALUES (
			:id, :customer_id, :invoice_id, :jurisdiction_code, :jurisdiction_name, :country, :state,
			:taxable_amount, :tax_amount, :tax_rate, :currency, :calculation_method,
			:exemption_id, :exemption_type, :applied_at,
			:tenant_id, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, record); err != nil {
		return dbError(err, "create tax applied")
	}
	return nil
}

// List returns records oldest first. Period bounds are inclusive.
func (r *taxAppliedRepository) List(ctx context.Context, filter *types.TaxAppliedFilter) ([]*taxapplied.TaxApplied, error) {
	c := tenantScoped(ctx)
	var qf *types.QueryFilter
	if filter != nil {
		qf = filter.QueryFilter
		if filter.CreatedAfter != nil {
			c.add("applied_at >= ?", *filter.CreatedAfter)
		}
		if filter.CreatedBefore != nil {
			c.add("applied_at <= ?", *filter.CreatedBefore)
		}
		if filter.Country != "" {
			c.add("UPPER(country) = UPPER(?)", filter.Country)
		}
		if filter.State != nil {
			c.add("UPPER(state) = UPPER(?)", *filter.State)
		}
		if filter.CustomerID != "" {
			c.add("customer_id = ?", filter.CustomerID)
		}
		if filter.InvoiceID != "" {
			c.add("invoice_id = ?", filter.InvoiceID)
		}
	}

	suffix := " ORDER BY applied_at ASC, id ASC"
	if !qf.IsUnlimited() && qf.GetLimit() > 0 {
		suffix += " LIMIT ? OFFSET ?"
		c.args = append(c.args, qf.GetLimit(), qf.GetOffset())
	}

	var records []*taxapplied.TaxApplied
	if err := selectAll(ctx, r.db.GetQuerier(ctx), &records, `SELECT `+taxAppliedColumns+` FROM tax_applied`, c, suffix); err != nil {
		return nil, err
	}
	return records, nil
}
