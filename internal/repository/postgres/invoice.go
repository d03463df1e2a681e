package postgres

import (
	"context"

	"github.com/flexprice/billingcore/internal/domain/invoice"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

const invoiceColumns = `
	id, customer_id, subscription_id, billing_cycle_id, invoice_number, currency,
	status, payment_terms, subtotal, tax_amount, discount_amount, total_amount,
	amount_paid, amount_due, issued_date, due_date, paid_date, voided_date, notes, version,
	tenant_id, created_at, updated_at, created_by, updated_by`

const lineItemColumns = `
	id, invoice_id, description, line_item_type, quantity, unit_price, tax_rate,
	discount_amount, period_start, period_end,
	tenant_id, created_at, updated_at, created_by, updated_by`

var invoiceSortable = []string{"created_at", "updated_at", "issued_date", "due_date", "invoice_number", "total_amount"}

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{db: db, logger: logger}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `
		) VALUES (
			:id, :customer_id, :subscription_id, :billing_cycle_id, :invoice_number, :currency,
			:status, :payment_terms, :subtotal, :tax_amount, :discount_amount, :total_amount,
			:amount_paid, :amount_due, :issued_date, :due_date, :paid_date, :voided_date, :notes, :version,
			:tenant_id, :created_at, :updated_at, :created_by, :updated_by
		)`

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, inv); err != nil {
			return dbError(err, "create invoice")
		}
		return r.insertLineItems(ctx, inv.LineItems)
	})
}

func (r *invoiceRepository) insertLineItems(ctx context.Context, items []*invoice.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `
		INSERT INTO invoice_line_items (` + lineItemColumns + `
		) VALUES (
			:id, :invoice_id, :description, :line_item_type, :quantity, :unit_price, :tax_rate,
			:discount_amount, :period_start, :period_end,
			:tenant_id, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, items); err != nil {
		return dbError(err, "create invoice line items")
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.getBy(ctx, "id", id)
}

func (r *invoiceRepository) GetByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	return r.getBy(ctx, "invoice_number", number)
}

func (r *invoiceRepository) getBy(ctx context.Context, column, value string) (*invoice.Invoice, error) {
	q := r.db.GetQuerier(ctx)
	query := q.Rebind(`SELECT ` + invoiceColumns + ` FROM invoices WHERE ` + column + ` = ? AND tenant_id = ?`)

	var inv invoice.Invoice
	if err := q.GetContext(ctx, &inv, query, value, types.GetTenantID(ctx)); err != nil {
		return nil, getError(err, "invoice", value)
	}
	if err := r.attachLineItems(ctx, []*invoice.Invoice{&inv}); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	c := invoiceConditions(ctx, filter)
	var qf *types.QueryFilter
	if filter != nil {
		qf = filter.QueryFilter
	}

	var invoices []*invoice.Invoice
	err := selectAll(ctx, r.db.GetQuerier(ctx), &invoices,
		`SELECT `+invoiceColumns+` FROM invoices`, c, c.page(qf, invoiceSortable, "created_at"))
	if err != nil {
		return nil, err
	}
	if err := r.attachLineItems(ctx, invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	return countAll(ctx, r.db.GetQuerier(ctx), "invoices", invoiceConditions(ctx, filter))
}

// attachLineItems loads the line items of every invoice in one query.
func (r *invoiceRepository) attachLineItems(ctx context.Context, invoices []*invoice.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	ids := lo.Map(invoices, func(inv *invoice.Invoice, _ int) string { return inv.ID })
	c := tenantScoped(ctx).add("invoice_id IN (?)", ids)

	var items []*invoice.LineItem
	err := selectAll(ctx, r.db.GetQuerier(ctx), &items,
		`SELECT `+lineItemColumns+` FROM invoice_line_items`, c, " ORDER BY created_at ASC, id ASC")
	if err != nil {
		return err
	}

	byInvoice := lo.GroupBy(items, func(li *invoice.LineItem) string { return li.InvoiceID })
	for _, inv := range invoices {
		inv.LineItems = byInvoice[inv.ID]
		if inv.LineItems == nil {
			inv.LineItems = []*invoice.LineItem{}
		}
	}
	return nil
}

// Update writes the invoice when the stored version matches, bumps the
// version and replaces the line items.
func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		UPDATE invoices SET
			status = :status,
			due_date = :due_date,
			paid_date = :paid_date,
			voided_date = :voided_date,
			subtotal = :subtotal,
			tax_amount = :tax_amount,
			discount_amount = :discount_amount,
			total_amount = :total_amount,
			amount_paid = :amount_paid,
			amount_due = :amount_due,
			notes = :notes,
			version = version + 1,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id AND version = :version`

	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.GetQuerier(ctx)
		res, err := q.NamedExecContext(ctx, query, inv)
		if err != nil {
			return dbError(err, "update invoice")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return dbError(err, "rows affected")
		}
		if n == 0 {
			return r.versionConflict(ctx, inv)
		}

		del := q.Rebind(`DELETE FROM invoice_line_items WHERE invoice_id = ? AND tenant_id = ?`)
		if _, err := q.ExecContext(ctx, del, inv.ID, inv.TenantID); err != nil {
			return dbError(err, "delete invoice line items")
		}
		return r.insertLineItems(ctx, inv.LineItems)
	})
	if err != nil {
		return err
	}
	inv.Version++
	return nil
}

// versionConflict distinguishes a missing invoice from a stale version.
func (r *invoiceRepository) versionConflict(ctx context.Context, inv *invoice.Invoice) error {
	q := r.db.GetQuerier(ctx)
	var current int
	err := q.GetContext(ctx, &current,
		q.Rebind(`SELECT version FROM invoices WHERE id = ? AND tenant_id = ?`), inv.ID, inv.TenantID)
	if err != nil {
		return getError(err, "invoice", inv.ID)
	}
	return ierr.NewErrorf("invoice %s was modified concurrently", inv.ID).
		WithHint("The invoice was changed by another request, please retry").
		WithReportableDetails(map[string]any{
			"invoice_id":       inv.ID,
			"expected_version": inv.Version,
			"current_version":  current,
		}).
		Mark(ierr.ErrConflict)
}

// Delete removes the invoice when the stored version still matches, so a
// payment recorded after the caller loaded inv cannot be deleted.
func (r *invoiceRepository) Delete(ctx context.Context, inv *invoice.Invoice) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.GetQuerier(ctx)
		tenantID := types.GetTenantID(ctx)
		res, err := q.ExecContext(ctx,
			q.Rebind(`DELETE FROM invoices WHERE id = ? AND tenant_id = ? AND version = ?`), inv.ID, tenantID, inv.Version)
		if err != nil {
			return dbError(err, "delete invoice")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return dbError(err, "rows affected")
		}
		if n == 0 {
			return r.versionConflict(ctx, inv)
		}

		if _, err := q.ExecContext(ctx,
			q.Rebind(`DELETE FROM invoice_line_items WHERE invoice_id = ? AND tenant_id = ?`), inv.ID, tenantID); err != nil {
			return dbError(err, "delete invoice line items")
		}
		return nil
	})
}

// NextSequence increments the per tenant and month counter in a single
// upsert so concurrent callers never observe the same value.
func (r *invoiceRepository) NextSequence(ctx context.Context, yearMonth string) (int64, error) {
	q := r.db.GetQuerier(ctx)
	query := q.Rebind(`
		INSERT INTO invoice_sequences (tenant_id, year_month, last_value, updated_at)
		VALUES (?, ?, 1, NOW())
		ON CONFLICT (tenant_id, year_month)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1, updated_at = NOW()
		RETURNING last_value`)

	var seq int64
	if err := q.GetContext(ctx, &seq, query, types.GetTenantID(ctx), yearMonth); err != nil {
		return 0, dbError(err, "next invoice sequence")
	}
	return seq, nil
}

func invoiceConditions(ctx context.Context, f *types.InvoiceFilter) *conditions {
	c := tenantScoped(ctx)
	if f == nil {
		return c
	}
	if len(f.InvoiceIDs) > 0 {
		c.add("id IN (?)", f.InvoiceIDs)
	}
	if f.CustomerID != "" {
		c.add("customer_id = ?", f.CustomerID)
	}
	if f.SubscriptionID != "" {
		c.add("subscription_id = ?", f.SubscriptionID)
	}
	if len(f.Statuses) > 0 {
		c.add("status IN (?)", f.Statuses)
	}
	if f.IssuedAfter != nil {
		c.add("issued_date >= ?", *f.IssuedAfter)
	}
	if f.IssuedBefore != nil {
		c.add("issued_date < ?", *f.IssuedBefore)
	}
	return c
}
