package testutil

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/cache"
	"github.com/flexprice/billingcore/internal/clock"
	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/validator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
)

// Stores holds the in-memory repositories used by service tests
type Stores struct {
	TaxRateRepo      *InMemoryTaxRateStore
	TaxExemptionRepo *InMemoryTaxExemptionStore
	TaxAppliedRepo   *InMemoryTaxAppliedStore
	SubscriptionRepo *InMemorySubscriptionStore
	InvoiceRepo      *InMemoryInvoiceStore
	BillingCycleRepo *InMemoryBillingCycleStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	publisher *InMemoryPublisher
	db        postgres.IClient
	logger    *logger.Logger
	config    *config.Configuration
	cache     *cache.InMemoryCache
	clock     *clock.FakeClock
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.logger = logger.NewNopLogger()
	s.db = NewMockPostgresClient()
	s.stores = Stores{
		TaxRateRepo:      NewInMemoryTaxRateStore(),
		TaxExemptionRepo: NewInMemoryTaxExemptionStore(),
		TaxAppliedRepo:   NewInMemoryTaxAppliedStore(),
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		InvoiceRepo:      NewInMemoryInvoiceStore(),
		BillingCycleRepo: NewInMemoryBillingCycleStore(),
	}
	s.publisher = NewInMemoryPublisher()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.config = config.GetDefaultConfig()
	s.ctx = SetupContext()
	s.now = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	s.clock = clock.NewFakeClock(s.now)
	s.cache = cache.NewInMemoryCache(s.config)
	s.registry = prometheus.NewRegistry()
	s.metrics = metrics.New(s.registry)
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.ClearStores()
}

// ClearStores empties every store and the recorded transitions
func (s *BaseServiceTestSuite) ClearStores() {
	s.stores.TaxRateRepo.Clear()
	s.stores.TaxExemptionRepo.Clear()
	s.stores.TaxAppliedRepo.Clear()
	s.stores.SubscriptionRepo.Clear()
	s.stores.InvoiceRepo.Clear()
	s.stores.BillingCycleRepo.Clear()
	s.publisher.Clear()
	if s.cache != nil {
		s.cache.Flush(context.Background())
	}
}

func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

func (s *BaseServiceTestSuite) GetPublisher() *InMemoryPublisher {
	return s.publisher
}

func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetCache() *cache.InMemoryCache {
	return s.cache
}

func (s *BaseServiceTestSuite) GetClock() *clock.FakeClock {
	return s.clock
}

func (s *BaseServiceTestSuite) GetMetrics() *metrics.Metrics {
	return s.metrics
}

func (s *BaseServiceTestSuite) GetRegistry() *prometheus.Registry {
	return s.registry
}

func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
