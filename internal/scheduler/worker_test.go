package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/flexprice/billingcore/internal/api/dto"
	"github.com/flexprice/billingcore/internal/clock"
	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/service"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type mockCycles struct {
	service.BillingCycleService
	mock.Mock
}

func (m *mockCycles) ProcessDueCycles(ctx context.Context, now time.Time) (*dto.ProcessDueCyclesResponse, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ProcessDueCyclesResponse), args.Error(1)
}

type WorkerSuite struct {
	suite.Suite
	cfg    *config.Configuration
	cycles *mockCycles
	clock  *clock.FakeClock
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	worker  *Worker
}

func TestWorker(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.cfg = config.GetDefaultConfig()
	s.cfg.Scheduler.Tenants = []string{"tenant_a", "tenant_b"}
	s.cfg.Scheduler.ProcessTimeout = time.Second
	s.cycles = &mockCycles{}
	s.clock = clock.NewFakeClock(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	s.reg = prometheus.NewRegistry()
	s.metrics = metrics.New(s.reg)
	s.worker = NewWorker(s.cfg, s.cycles, s.clock, logger.NewNopLogger(), s.metrics)
}

func tenantIs(id string) interface{} {
	return mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return types.GetTenantID(ctx) == id && hasDeadline
	})
}

func (s *WorkerSuite) TestRunOnceProcessesEveryTenant() {
	now := s.clock.Now()
	s.cycles.On("ProcessDueCycles", tenantIs("tenant_a"), now).
		Return(&dto.ProcessDueCyclesResponse{Due: 2, Processed: 2}, nil).Once()
	s.cycles.On("ProcessDueCycles", tenantIs("tenant_b"), now).
		Return(nil, ierr.NewError("store down").Mark(ierr.ErrDatabase)).Once()

	s.worker.RunOnce(context.Background())

	s.cycles.AssertExpectations(s.T())
	s.NoError(promtestutil.GatherAndCompare(s.reg, strings.NewReader(`
# HELP billingcore_scheduler_job_runs_total Scheduler job runs by name.
# TYPE billingcore_scheduler_job_runs_total counter
billingcore_scheduler_job_runs_total{job="process_due_cycles"} 2
`), "billingcore_scheduler_job_runs_total"))
	n, err := promtestutil.GatherAndCount(s.reg, "billingcore_scheduler_job_duration_seconds")
	s.NoError(err)
	s.Equal(1, n)
}

func (s *WorkerSuite) TestRunOnceRecordsTimeout() {
	s.cfg.Scheduler.Tenants = []string{"tenant_slow"}
	s.cfg.Scheduler.ProcessTimeout = 10 * time.Millisecond
	s.worker = NewWorker(s.cfg, s.cycles, s.clock, logger.NewNopLogger(), s.metrics)

	s.cycles.On("ProcessDueCycles", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded).Once()

	s.worker.RunOnce(context.Background())

	s.NoError(promtestutil.GatherAndCompare(s.reg, strings.NewReader(`
# HELP billingcore_scheduler_job_timeouts_total Scheduler job runs that hit their deadline.
# TYPE billingcore_scheduler_job_timeouts_total counter
billingcore_scheduler_job_timeouts_total{job="process_due_cycles"} 1
`), "billingcore_scheduler_job_timeouts_total"))
}

func (s *WorkerSuite) TestRunOnceStopsWhenCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.worker.RunOnce(ctx)
	s.cycles.AssertNotCalled(s.T(), "ProcessDueCycles", mock.Anything, mock.Anything)
}

func (s *WorkerSuite) TestStartRejectsInvalidSpec() {
	s.cfg.Scheduler.CronSpec = "every now and then"
	s.worker = NewWorker(s.cfg, s.cycles, s.clock, logger.NewNopLogger(), nil)

	err := s.worker.Start()
	s.True(ierr.IsConfiguration(err))
}

func (s *WorkerSuite) TestStartStop() {
	s.Require().NoError(s.worker.Start())
	s.Error(s.worker.Start(), "a running worker cannot be started twice")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.NoError(s.worker.Stop(ctx))
	s.NoError(s.worker.Stop(ctx))
}

func (s *WorkerSuite) TestDisabledWorkerDoesNothing() {
	s.cfg.Scheduler.Enabled = false
	s.worker = NewWorker(s.cfg, s.cycles, s.clock, logger.NewNopLogger(), nil)

	s.NoError(s.worker.Start())
	s.NoError(s.worker.Stop(context.Background()))
}
