package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/billingcore/internal/domain/audit"
	"github.com/flexprice/billingcore/internal/publisher"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

var _ publisher.TransitionPublisher = (*InMemoryPublisher)(nil)

// InMemoryPublisher records published transitions for assertions
type InMemoryPublisher struct {
	mu          sync.RWMutex
	transitions []*audit.StateTransition
}

func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{}
}

func (p *InMemoryPublisher) Publish(_ context.Context, t *audit.StateTransition) error {
	if t == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transitions = append(p.transitions, t)
	return nil
}

// Transitions returns everything published so far in order.
func (p *InMemoryPublisher) Transitions() []*audit.StateTransition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*audit.StateTransition(nil), p.transitions...)
}

// TransitionsFor returns the transitions recorded for one entity.
func (p *InMemoryPublisher) TransitionsFor(entityType types.EntityType, entityID string) []*audit.StateTransition {
	return lo.Filter(p.Transitions(), func(t *audit.StateTransition, _ int) bool {
		return t.EntityType == entityType && t.EntityID == entityID
	})
}

func (p *InMemoryPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transitions = nil
}
