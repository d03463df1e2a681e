package audit

import (
	"time"

	"github.com/flexprice/billingcore/internal/types"
	"github.com/shopspring/decimal"
)

// StateTransition describes one status change of an invoice or billing cycle.
// Every state-machine operation returns one; storing them is the caller's concern.
type StateTransition struct {
	ID         string                     `json:"id"`
	EntityType types.EntityType           `json:"entity_type"`
	EntityID   string                     `json:"entity_id"`
	TenantID   string                     `json:"tenant_id"`
	FromStatus string                     `json:"from_status"`
	ToStatus   string                     `json:"to_status"`
	Amounts    map[string]decimal.Decimal `json:"amounts,omitempty"`
	Actor      string                     `json:"actor,omitempty"`
	OccurredAt time.Time                  `json:"occurred_at"`
}

// NewTransition stamps a transition with an id and time.
func NewTransition(entityType types.EntityType, entityID, tenantID, from, to string, at time.Time) *StateTransition {
	return &StateTransition{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRANSITION),
		EntityType: entityType,
		EntityID:   entityID,
		TenantID:   tenantID,
		FromStatus: from,
		ToStatus:   to,
		Amounts:    make(map[string]decimal.Decimal),
		OccurredAt: at.UTC(),
	}
}

// WithAmount records a monetary figure relevant to the transition.
func (t *StateTransition) WithAmount(name string, amount decimal.Decimal) *StateTransition {
	t.Amounts[name] = amount
	return t
}
