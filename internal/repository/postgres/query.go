package postgres

import (
	"context"
	"fmt"
	"strings"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
)

// conditions collects WHERE clauses written with ? placeholders. Slice
// arguments are expanded with sqlx.In and the query is rebound to $n.
type conditions struct {
	clauses []string
	args    []interface{}
}

// tenantScoped starts every query with the tenant in ctx.
func tenantScoped(ctx context.Context) *conditions {
	c := &conditions{}
	return c.add("tenant_id = ?", types.GetTenantID(ctx))
}

func (c *conditions) add(clause string, args ...interface{}) *conditions {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
	return c
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// page renders ORDER BY, LIMIT and OFFSET. Only whitelisted sort columns are
// accepted; anything else falls back to the default column.
func (c *conditions) page(f *types.QueryFilter, sortable []string, fallback string) string {
	column := f.GetSort()
	if !lo.Contains(sortable, column) {
		column = fallback
	}
	order := "DESC"
	if strings.EqualFold(f.GetOrder(), "asc") {
		order = "ASC"
	}

	out := fmt.Sprintf(" ORDER BY %s %s, id %s", column, order, order)
	if !f.IsUnlimited() && f.GetLimit() > 0 {
		out += " LIMIT ?"
		c.args = append(c.args, f.GetLimit())
		if f.GetOffset() > 0 {
			out += " OFFSET ?"
			c.args = append(c.args, f.GetOffset())
		}
	}
	return out
}

// bind expands IN lists and rebinds the query for the querier's driver.
func bind(q postgres.Querier, query string, args []interface{}) (string, []interface{}, error) {
	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, ierr.WithError(err).
			WithHint("Failed to build query").
			Mark(ierr.ErrSystem)
	}
	return q.Rebind(expanded), expandedArgs, nil
}

// selectAll runs a SELECT built from base, the conditions and an optional suffix.
func selectAll(ctx context.Context, q postgres.Querier, dest interface{}, base string, c *conditions, suffix string) error {
	query, args, err := bind(q, base+c.where()+suffix, c.args)
	if err != nil {
		return err
	}
	if err := q.SelectContext(ctx, dest, query, args...); err != nil {
		return dbError(err, "query")
	}
	return nil
}

func countAll(ctx context.Context, q postgres.Querier, table string, c *conditions) (int, error) {
	query, args, err := bind(q, "SELECT COUNT(*) FROM "+table+c.where(), c.args)
	if err != nil {
		return 0, err
	}
	var n int
	if err := q.GetContext(ctx, &n, query, args...); err != nil {
		return 0, dbError(err, "count")
	}
	return n, nil
}
