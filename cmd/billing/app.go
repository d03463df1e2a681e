package main

import (
	"github.com/flexprice/billingcore/internal/cache"
	"github.com/flexprice/billingcore/internal/clock"
	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/domain/pricing"
	"github.com/flexprice/billingcore/internal/domain/taxexemption"
	"github.com/flexprice/billingcore/internal/httpclient"
	"github.com/flexprice/billingcore/internal/integration/stripe"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/publisher"
	"github.com/flexprice/billingcore/internal/pubsub"
	"github.com/flexprice/billingcore/internal/pubsub/memory"
	"github.com/flexprice/billingcore/internal/repository"
	"github.com/flexprice/billingcore/internal/service"
	"github.com/flexprice/billingcore/internal/tax"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// coreModule provides everything the services need. Commands add their own
// invokes on top of it.
var coreModule = fx.Options(
	fx.Provide(
		// Config
		config.NewConfig,

		// Logger
		logger.NewLogger,

		// Monitoring
		provideMetrics,

		// Postgres
		postgres.NewDB,
		provideDBClient,

		// Cache
		fx.Annotate(cache.NewInMemoryCache, fx.As(new(cache.Cache))),

		// Clock
		clock.New,

		// Event pubsub
		memory.NewPubSub,
		providePublisher,
		provideSubscriber,
		publisher.NewTransitionPublisher,

		// Repositories
		repository.NewTaxRateRepository,
		repository.NewTaxExemptionRepository,
		repository.NewTaxAppliedRepository,
		repository.NewSubscriptionRepository,
		repository.NewInvoiceRepository,
		repository.NewBillingCycleRepository,

		// Tax providers
		providePlatformClient,
		provideExternalClient,
		tax.NewCachedRateSource,
		provideTaxResolver,
		pricing.NewEngine,
	),
	fx.Provide(
		service.NewServiceParams,

		service.NewTaxService,
		service.NewTaxReportService,
		service.NewInvoiceService,
		service.NewPricingService,
		service.NewProrationService,
		service.NewBillingCycleService,
	),
)

func provideMetrics() *metrics.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

func provideDBClient(db *postgres.DB) postgres.IClient {
	return db
}

func providePublisher(ps pubsub.PubSub) pubsub.Publisher {
	return ps
}

func provideSubscriber(ps pubsub.PubSub) pubsub.Subscriber {
	return ps
}

// providePlatformClient returns a nil interface, not a typed nil, when the
// platform is disabled.
func providePlatformClient(cfg *config.Configuration, log *logger.Logger) (tax.PlatformClient, error) {
	client, err := stripe.NewTaxClient(cfg, log)
	if err != nil || client == nil {
		return nil, err
	}
	return client, nil
}

func provideExternalClient(cfg *config.Configuration, log *logger.Logger) tax.ExternalClient {
	client := httpclient.NewExternalTaxClient(cfg, log)
	if client == nil {
		return nil
	}
	return client
}

func provideTaxResolver(
	cfg *config.Configuration,
	rates *tax.CachedRateSource,
	exemptions taxexemption.Repository,
	platform tax.PlatformClient,
	external tax.ExternalClient,
	log *logger.Logger,
	m *metrics.Metrics,
) *tax.Resolver {
	return tax.NewResolver(tax.ResolverParams{
		Config:     cfg.Tax,
		Rates:      rates,
		Exemptions: exemptions,
		Platform:   platform,
		External:   external,
		Logger:     log,
		Metrics:    m,
	})
}
