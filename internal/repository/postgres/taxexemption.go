package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/taxexemption"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
)

const taxExemptionColumns = `
	id, customer_id, exemption_type, certificate_number, status, country, state,
	jurisdictions, issue_date, expiration_date,
	tenant_id, created_at, updated_at, created_by, updated_by`

var taxExemptionSortable = []string{"created_at", "updated_at", "issue_date", "expiration_date"}

type taxExemptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewTaxExemptionRepository(db *postgres.DB, logger *logger.Logger) taxexemption.Repository {
	return &taxExemptionRepository{db: db, logger: logger}
}

func (r *taxExemptionRepository) Create(ctx context.Context, e *taxexemption.TaxExemption) error {
	query := `
		INSERT INTO tax_exemptions (` + taxExemptionColumns + `
		) VALUES (
			:id, :customer_id, :exemption_type, :certificate_number, :status, :country, :state,
			:jurisdictions, :issue_date, :expiration_date,
			:tenant_id, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, e); err != nil {
		return dbError(err, "create tax exemption")
	}
	return nil
}

func (r *taxExemptionRepository) Get(ctx context.Context, id string) (*taxexemption.TaxExemption, error) {
	q := r.db.GetQuerier(ctx)
	query := q.Rebind(`SELECT ` + taxExemptionColumns + ` FROM tax_exemptions WHERE id = ? AND tenant_id = ?`)

	var e taxexemption.TaxExemption
	if err := q.GetContext(ctx, &e, query, id, types.GetTenantID(ctx)); err != nil {
		return nil, getError(err, "tax exemption", id)
	}
	return &e, nil
}

func (r *taxExemptionRepository) List(ctx context.Context, filter *types.TaxExemptionFilter) ([]*taxexemption.TaxExemption, error) {
	c := tenantScoped(ctx)
	var qf *types.QueryFilter
	if filter != nil {
		qf = filter.QueryFilter
		if len(filter.ExemptionIDs) > 0 {
			c.add("id IN (?)", filter.ExemptionIDs)
		}
		if filter.TenantLevel {
			c.add("(customer_id IS NULL OR customer_id = '')")
		}
		if filter.CustomerID != nil {
			c.add("customer_id = ?", *filter.CustomerID)
		}
		if filter.Status != nil {
			c.add("status = ?", *filter.Status)
		}
		if len(filter.Statuses) > 0 {
			c.add("status IN (?)", filter.Statuses)
		}
	}

	var exemptions []*taxexemption.TaxExemption
	err := selectAll(ctx, r.db.GetQuerier(ctx), &exemptions,
		`SELECT `+taxExemptionColumns+` FROM tax_exemptions`, c, c.page(qf, taxExemptionSortable, "created_at"))
	if err != nil {
		return nil, err
	}
	return exemptions, nil
}

func (r *taxExemptionRepository) Update(ctx context.Context, e *taxexemption.TaxExemption) error {
	query := `
		UPDATE tax_exemptions SET
			status = :status,
			jurisdictions = :jurisdictions,
			expiration_date = :expiration_date,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id`

	res, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, e)
	if err != nil {
		return dbError(err, "update tax exemption")
	}
	return requireRow(res, "tax exemption", e.ID)
}
