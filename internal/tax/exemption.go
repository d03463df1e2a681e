package tax

import (
	"time"

	"github.com/flexprice/billingcore/internal/domain/taxexemption"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

// SelectExemption applies exemption precedence: the explicitly requested
// exemption, then a tenant-level exemption, then one issued to the customer.
// Only approved, unexpired exemptions covering the jurisdiction qualify.
// Returns nil when tax is owed.
func SelectExemption(
	explicit *taxexemption.TaxExemption,
	candidates []*taxexemption.TaxExemption,
	customerID *string,
	j types.Jurisdiction,
	now time.Time,
) *taxexemption.TaxExemption {
	applies := func(e *taxexemption.TaxExemption) bool {
		return e != nil && e.IsValid(now) && e.AppliesTo(j)
	}
	ownedByCustomer := func(e *taxexemption.TaxExemption) bool {
		return customerID != nil && !e.IsTenantLevel() && *e.CustomerID == *customerID
	}

	if applies(explicit) && (explicit.IsTenantLevel() || ownedByCustomer(explicit)) {
		return explicit
	}

	if e, ok := lo.Find(candidates, func(e *taxexemption.TaxExemption) bool {
		return e.IsTenantLevel() && applies(e)
	}); ok {
		return e
	}

	if e, ok := lo.Find(candidates, func(e *taxexemption.TaxExemption) bool {
		return ownedByCustomer(e) && applies(e)
	}); ok {
		return e
	}
	return nil
}
