package service

import (
	"context"

	"github.com/flexprice/billingcore/internal/clock"
	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/domain/audit"
	"github.com/flexprice/billingcore/internal/domain/billingcycle"
	"github.com/flexprice/billingcore/internal/domain/invoice"
	"github.com/flexprice/billingcore/internal/domain/pricing"
	"github.com/flexprice/billingcore/internal/domain/subscription"
	"github.com/flexprice/billingcore/internal/domain/taxapplied"
	"github.com/flexprice/billingcore/internal/domain/taxexemption"
	"github.com/flexprice/billingcore/internal/domain/taxrate"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/publisher"
	"github.com/flexprice/billingcore/internal/tax"
)

// RateCache is invalidated after every tax rate write.
type RateCache interface {
	Invalidate(ctx context.Context)
}

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger  *logger.Logger
	Config  *config.Configuration
	DB      postgres.IClient
	Clock   clock.Clock
	Metrics *metrics.Metrics

	// Repositories
	TaxRateRepo      taxrate.Repository
	TaxExemptionRepo taxexemption.Repository
	TaxAppliedRepo   taxapplied.Repository
	SubRepo          subscription.Repository
	InvoiceRepo      invoice.Repository
	BillingCycleRepo billingcycle.Repository

	// Calculators
	TaxResolver   *tax.Resolver
	RateCache     RateCache
	PricingEngine *pricing.Engine

	// Publishers
	TransitionPublisher publisher.TransitionPublisher
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	clk clock.Clock,
	m *metrics.Metrics,
	taxRateRepo taxrate.Repository,
	taxExemptionRepo taxexemption.Repository,
	taxAppliedRepo taxapplied.Repository,
	subRepo subscription.Repository,
	invoiceRepo invoice.Repository,
	billingCycleRepo billingcycle.Repository,
	taxResolver *tax.Resolver,
	rateCache *tax.CachedRateSource,
	pricingEngine *pricing.Engine,
	transitionPublisher publisher.TransitionPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:              logger,
		Config:              config,
		DB:                  db,
		Clock:               clk,
		Metrics:             m,
		TaxRateRepo:         taxRateRepo,
		TaxExemptionRepo:    taxExemptionRepo,
		TaxAppliedRepo:      taxAppliedRepo,
		SubRepo:             subRepo,
		InvoiceRepo:         invoiceRepo,
		BillingCycleRepo:    billingCycleRepo,
		TaxResolver:         taxResolver,
		RateCache:           rateCache,
		PricingEngine:       pricingEngine,
		TransitionPublisher: transitionPublisher,
	}
}

// publishTransitions forwards transitions to the audit sink. Delivery is
// best effort: the state change is already persisted.
func (p ServiceParams) publishTransitions(ctx context.Context, transitions ...*audit.StateTransition) {
	if p.TransitionPublisher == nil {
		return
	}
	for _, t := range transitions {
		if t == nil {
			continue
		}
		if err := p.TransitionPublisher.Publish(ctx, t); err != nil {
			p.Logger.Warnw("failed to publish state transition",
				"transition_id", t.ID,
				"entity_type", t.EntityType,
				"entity_id", t.EntityID,
				"error", err,
			)
		}
	}
}
