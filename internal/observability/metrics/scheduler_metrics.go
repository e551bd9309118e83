package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/freightdesk/internal/authorization"
	"gorm.io/gorm"
)

// Error types for job failure logs.
const (
	SchedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	SchedulerErrorTypeAuthorization    = "authorization"
	SchedulerErrorTypeBusinessRule     = "business_rule"
	SchedulerErrorTypeDB               = "db"
	SchedulerErrorTypeUnknown          = "unknown"
)

// Reasons for the job error counter.
const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonForbidden            = "forbidden"
	SchedulerJobReasonUnknown              = "unknown"
)

// Reasons a batch was skipped without doing work.
const (
	SchedulerBatchDeferredReasonSkipLockedEmpty = "skip_locked_empty"
	SchedulerBatchDeferredReasonThrottled       = "throttled"
	SchedulerBatchDeferredReasonLockHeld        = "lock_held"
)

// Row sets the background jobs lock and process.
const (
	LockResourceExpiredInquiries  = "expired_inquiries"
	LockResourceExpiredQuotations = "expired_quotations"
	LockResourceOutboxEvents      = "outbox_events"
)

var (
	latencyBuckets  = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}
	lockWaitBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
)

// SchedulerMetrics is the prometheus side of the expiry sweep and the outbox
// relay. All methods are no-ops on a nil receiver.
type SchedulerMetrics struct {
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobTimeouts     *prometheus.CounterVec
	jobErrors       *prometheus.CounterVec
	batchProcessed  *prometheus.CounterVec
	batchDeferred   *prometheus.CounterVec
	runLoopLag      prometheus.Histogram
	itemTransitions *prometheus.CounterVec
	dbLockWait      *prometheus.HistogramVec
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the process-wide scheduler metrics, registering them on
// first use.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig is Scheduler with service and env const labels. Only the
// first call's config takes effect.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

// schedulerVecs builds collectors under one name prefix and const label set
// and remembers them for registration.
type schedulerVecs struct {
	labels     prometheus.Labels
	collectors []prometheus.Collector
}

func (v *schedulerVecs) counter(name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "freightdesk", Name: name, Help: help, ConstLabels: v.labels,
	}, labels)
	v.collectors = append(v.collectors, c)
	return c
}

func (v *schedulerVecs) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "freightdesk", Name: name, Help: help, Buckets: buckets, ConstLabels: v.labels,
	}, labels)
	v.collectors = append(v.collectors, h)
	return h
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	v := &schedulerVecs{labels: prometheus.Labels{
		"service": orDefault(cfg.ServiceName, "freightdesk"),
		"env":     orDefault(cfg.Environment, "unknown"),
	}}

	m := &SchedulerMetrics{
		jobRuns:         v.counter("scheduler_job_runs_total", "Scheduler job runs by name.", "job"),
		jobDuration:     v.histogram("scheduler_job_duration_seconds", "Scheduler job latency.", latencyBuckets, "job"),
		jobTimeouts:     v.counter("scheduler_job_timeouts_total", "Scheduler job runs that exceeded their timeout.", "job"),
		jobErrors:       v.counter("scheduler_job_errors_total", "Scheduler job errors by reason.", "job", "reason"),
		batchProcessed:  v.counter("scheduler_batch_processed_total", "Rows expired or published by scheduler batches.", "job", "resource"),
		batchDeferred:   v.counter("scheduler_batch_deferred_total", "Scheduler batches skipped without work, by reason.", "job", "reason"),
		itemTransitions: v.counter("status_transitions_total", "Inquiry and quotation status changes made by background jobs.", "kind", "from", "to"),
		dbLockWait:      v.histogram("scheduler_db_lock_wait_seconds", "Time spent claiming locked rows.", lockWaitBuckets, "resource"),
	}
	m.runLoopLag = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   "freightdesk",
		Name:        "scheduler_runloop_lag_seconds",
		Help:        "How late the scheduler tick fired past its interval.",
		Buckets:     append([]float64{}, latencyBuckets...),
		ConstLabels: v.labels,
	})
	v.collectors = append(v.collectors, m.runLoopLag)

	registerer.MustRegister(v.collectors...)
	return m
}

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m != nil {
		m.jobRuns.WithLabelValues(job).Inc()
	}
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m != nil {
		m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
	}
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m != nil {
		m.jobTimeouts.WithLabelValues(job).Inc()
	}
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m != nil && err != nil {
		m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
	}
}

func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, count int) {
	if m != nil && count > 0 {
		m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
	}
}

func (m *SchedulerMetrics) IncBatchDeferred(job, reason string) {
	if m != nil {
		m.batchDeferred.WithLabelValues(job, reason).Inc()
	}
}

// ObserveRunLoopLag clamps early ticks to zero.
func (m *SchedulerMetrics) ObserveRunLoopLag(lag time.Duration) {
	if m != nil {
		m.runLoopLag.Observe(max(lag, 0).Seconds())
	}
}

// AddStatusTransitions counts rows a job moved, e.g. ("quotation", "submitted", "expired").
func (m *SchedulerMetrics) AddStatusTransitions(kind, from, to string, count int) {
	if m != nil && count > 0 {
		m.itemTransitions.WithLabelValues(kind, from, to).Add(float64(count))
	}
}

func (m *SchedulerMetrics) ObserveDBLockWait(resource string, d time.Duration) {
	if m != nil {
		m.dbLockWait.WithLabelValues(resource).Observe(d.Seconds())
	}
}

// ClassifySchedulerErrorType buckets a job error for the failure log line.
func ClassifySchedulerErrorType(err error) string {
	switch {
	case err == nil:
		return SchedulerErrorTypeUnknown
	case isCancellation(err):
		return SchedulerErrorTypeDeadlineExceeded
	case isAuthorizationError(err):
		return SchedulerErrorTypeAuthorization
	case isDBError(err):
		return SchedulerErrorTypeDB
	}
	return SchedulerErrorTypeBusinessRule
}

// IsSchedulerErrorRetryable is true for timeouts and database failures. The
// next tick retries those; business rule failures would fail the same way.
func IsSchedulerErrorRetryable(err error) bool {
	return err != nil && (isCancellation(err) || isDBError(err))
}

// ClassifySchedulerJobReason maps a job error to the job_errors reason label.
func ClassifySchedulerJobReason(err error) string {
	switch {
	case err == nil:
		return SchedulerJobReasonUnknown
	case isCancellation(err):
		return SchedulerJobReasonDeadlineExceeded
	case isAuthorizationError(err):
		return SchedulerJobReasonForbidden
	}
	switch pgCode(err) {
	case "55P03":
		return SchedulerJobReasonDBLockTimeout
	case "40001":
		return SchedulerJobReasonSerializationFailure
	case "23505":
		return SchedulerJobReasonUniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return SchedulerJobReasonUniqueViolation
	}
	return SchedulerJobReasonUnknown
}

func isCancellation(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var authorizationErrors = []error{
	authorization.ErrForbidden,
	authorization.ErrInvalidActor,
	authorization.ErrInvalidOrganization,
	authorization.ErrInvalidObject,
	authorization.ErrInvalidAction,
}

func isAuthorizationError(err error) bool {
	for _, target := range authorizationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// gorm errors that mean the query itself failed. ErrRecordNotFound is a
// business outcome and stays out.
var dbErrors = []error{
	gorm.ErrInvalidDB,
	gorm.ErrInvalidTransaction,
	gorm.ErrInvalidField,
	gorm.ErrInvalidData,
	gorm.ErrInvalidValue,
	gorm.ErrMissingWhereClause,
	gorm.ErrUnsupportedDriver,
	gorm.ErrNotImplemented,
	gorm.ErrDuplicatedKey,
}

func isDBError(err error) bool {
	if pgCode(err) != "" {
		return true
	}
	for _, target := range dbErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
