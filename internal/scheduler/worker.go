// Package scheduler runs billing jobs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flexprice/billingcore/internal/clock"
	"github.com/flexprice/billingcore/internal/config"
	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/metrics"
	"github.com/flexprice/billingcore/internal/service"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/robfig/cron/v3"
)

// Worker periodically processes due billing cycles for each configured tenant.
type Worker struct {
	cfg     config.SchedulerConfig
	cycles  service.BillingCycleService
	clock   clock.Clock
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	cron *cron.Cron
}

func NewWorker(
	cfg *config.Configuration,
	cycles service.BillingCycleService,
	clk clock.Clock,
	log *logger.Logger,
	m *metrics.Metrics,
) *Worker {
	return &Worker{
		cfg:     cfg.Scheduler,
		cycles:  cycles,
		clock:   clk,
		logger:  log.With("component", "scheduler"),
		metrics: m,
	}
}

// Start registers the job and starts the cron loop. Overlapping runs are
// skipped rather than queued.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.cfg.Enabled {
		w.logger.Infow("scheduler disabled")
		return nil
	}
	if w.cron != nil {
		return ierr.NewError("scheduler already started").
			Mark(ierr.ErrSystem)
	}

	cl := cronLogger{w.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(w.cfg.CronSpec, func() { w.RunOnce(context.Background()) }); err != nil {
		return ierr.WithError(err).
			WithHintf("Invalid scheduler cron expression %q", w.cfg.CronSpec).
			Mark(ierr.ErrConfiguration)
	}

	c.Start()
	w.cron = c
	w.logger.Infow("scheduler started", "cron_spec", w.cfg.CronSpec, "tenants", len(w.cfg.Tenants))
	return nil
}

// Stop stops scheduling and waits for a running job until ctx is done.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()

	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		w.logger.Infow("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce processes due cycles for every tenant. Each tenant gets its own
// ProcessTimeout so one slow tenant cannot starve the rest.
func (w *Worker) RunOnce(ctx context.Context) {
	tenants := w.cfg.Tenants
	if len(tenants) == 0 {
		tenants = []string{types.DefaultTenantID}
	}
	for _, tenantID := range tenants {
		if ctx.Err() != nil {
			return
		}
		w.runTenant(types.SetTenantID(ctx, tenantID), tenantID)
	}
}

func (w *Worker) runTenant(ctx context.Context, tenantID string) {
	job := metrics.JobProcessDueCycles
	w.metrics.IncJobRun(job)
	start := time.Now()

	if w.cfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.ProcessTimeout)
		defer cancel()
	}

	resp, err := w.cycles.ProcessDueCycles(ctx, w.clock.Now())
	w.metrics.ObserveJobDuration(job, time.Since(start))

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		w.metrics.IncJobTimeout(job)
		w.logger.Warnw("processing due billing cycles timed out",
			"tenant_id", tenantID,
			"timeout", w.cfg.ProcessTimeout,
		)
	}
	if err != nil {
		w.logger.Errorw("failed to process due billing cycles",
			"tenant_id", tenantID,
			"error", err,
		)
		return
	}
	w.logger.Debugw("due billing cycles run complete",
		"tenant_id", tenantID,
		"due", resp.Due,
		"processed", resp.Processed,
	)
}

// cronLogger adapts the zap logger to cron.Logger.
type cronLogger struct {
	l *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
