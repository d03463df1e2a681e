package metrics

import (
	"context"
	"errors"
	"time"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ErrorTypeDeadlineExceeded = "deadline_exceeded"
	ErrorTypeValidation       = "validation"
	ErrorTypeConflict         = "conflict"
	ErrorTypeNotFound         = "not_found"
	ErrorTypeProvider         = "provider"
	ErrorTypeDB               = "db"
	ErrorTypeUnknown          = "unknown"
)

const (
	JobProcessDueCycles = "process_due_cycles"

	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeReclaimed = "reclaimed"
)

// Metrics holds the billing core's prometheus collectors. A nil *Metrics is
// valid and records nothing, so calculators and tests can run without it.
type Metrics struct {
	taxCalculations   *prometheus.CounterVec
	taxFallbacks      *prometheus.CounterVec
	invoiceNumRetries prometheus.Counter
	cycleTransitions  *prometheus.CounterVec
	cycleErrors       *prometheus.CounterVec
	jobRuns           *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	jobTimeouts       *prometheus.CounterVec
	batchProcessed    *prometheus.CounterVec
}

// New registers all collectors on registerer. Pass prometheus.NewRegistry()
// in tests to avoid duplicate registration panics.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		taxCalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billingcore_tax_calculations_total",
			Help: "Tax calculations by the method that produced the result.",
		}, []string{"method"}),
		taxFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billingcore_tax_provider_fallbacks_total",
			Help: "Provider tax calculations that fell back to manual rates.",
		}, []string{"provider", "error_type"}),
		invoiceNumRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billingcore_invoice_number_retries_total",
			Help: "Invoice creations retried after an invoice number collision.",
		}),
		cycleTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billingcore_billing_cycle_transitions_total",
			Help: "Billing cycle lifecycle transitions.",
		}, []string{"from", "to"}),
		cycleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billingcore_billing_cycle_errors_total",
			Help: "Billing cycle processing failures by error type.",
		}, []string{"error_type"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billingcore_scheduler_job_runs_total",
			Help: "Scheduler job runs by name.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "billingcore_scheduler_job_duration_seconds",
			Help:    "Scheduler job latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"job"}),
		jobTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billingcore_scheduler_job_timeouts_total",
			Help: "Scheduler job runs that hit their deadline.",
		}, []string{"job"}),
		batchProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billingcore_scheduler_batch_items_total",
			Help: "Items handled by scheduler batches by outcome.",
		}, []string{"job", "outcome"}),
	}

	registerer.MustRegister(
		m.taxCalculations,
		m.taxFallbacks,
		m.invoiceNumRetries,
		m.cycleTransitions,
		m.cycleErrors,
		m.jobRuns,
		m.jobDuration,
		m.jobTimeouts,
		m.batchProcessed,
	)
	return m
}

func (m *Metrics) IncTaxCalculation(method string) {
	if m == nil {
		return
	}
	m.taxCalculations.WithLabelValues(method).Inc()
}

func (m *Metrics) IncTaxFallback(provider string, err error) {
	if m == nil {
		return
	}
	m.taxFallbacks.WithLabelValues(provider, ClassifyError(err)).Inc()
}

func (m *Metrics) IncInvoiceNumberRetry() {
	if m == nil {
		return
	}
	m.invoiceNumRetries.Inc()
}

func (m *Metrics) IncBillingCycleTransition(from, to string) {
	if m == nil {
		return
	}
	m.cycleTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncBillingCycleError(err error) {
	if m == nil || err == nil {
		return
	}
	m.cycleErrors.WithLabelValues(ClassifyError(err)).Inc()
}

func (m *Metrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *Metrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *Metrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *Metrics) AddBatchItems(job, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(job, outcome).Add(float64(count))
}

// ClassifyError maps an error to a low-cardinality label.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ErrorTypeUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorTypeDeadlineExceeded
	case ierr.IsValidation(err):
		return ErrorTypeValidation
	case ierr.IsConflict(err), ierr.IsAlreadyExists(err):
		return ErrorTypeConflict
	case ierr.IsNotFound(err):
		return ErrorTypeNotFound
	case ierr.IsProvider(err), ierr.IsHTTPClient(err):
		return ErrorTypeProvider
	case ierr.IsDatabase(err):
		return ErrorTypeDB
	default:
		return ErrorTypeUnknown
	}
}
