package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonUnknown              = "unknown"
)

// SchedulerMetrics captures sweep health for the recurring and reminder jobs.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	itemsProcessed *prometheus.CounterVec
	itemsFailed    *prometheus.CounterVec
	lockSkipped    *prometheus.CounterVec
}

// NewSchedulerMetrics registers the scheduler collectors on registerer.
func NewSchedulerMetrics(registerer prometheus.Registerer, cfg Config) (*SchedulerMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "studioledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{"service": serviceName, "env": environment}

	m := &SchedulerMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "studioledger_scheduler_job_runs_total",
			Help:        "Scheduler sweep runs by job.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "studioledger_scheduler_job_duration_seconds",
			Help:        "Scheduler sweep latency by job.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "studioledger_scheduler_job_timeouts_total",
			Help:        "Scheduler sweeps that hit their soft timeout.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "studioledger_scheduler_job_errors_total",
			Help:        "Scheduler sweep errors by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
		itemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "studioledger_scheduler_items_processed_total",
			Help:        "Invoices created or reminders sent by the scheduler.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		itemsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "studioledger_scheduler_items_failed_total",
			Help:        "Per-item failures skipped by a sweep.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		lockSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "studioledger_scheduler_lock_skipped_total",
			Help:        "Sweeps skipped because another replica held the studio lock.",
			ConstLabels: constLabels,
		}, []string{"job"}),
	}

	for _, collector := range []prometheus.Collector{
		m.jobRuns, m.jobDuration, m.jobTimeouts, m.jobErrors, m.itemsProcessed, m.itemsFailed, m.lockSkipped,
	} {
		if err := registerer.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return nil, err
		}
	}
	return m, nil
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
}

func (m *SchedulerMetrics) AddItemsProcessed(job string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.itemsProcessed.WithLabelValues(job).Add(float64(count))
}

func (m *SchedulerMetrics) IncItemFailed(job string) {
	if m == nil {
		return
	}
	m.itemsFailed.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncLockSkipped(job string) {
	if m == nil {
		return
	}
	m.lockSkipped.WithLabelValues(job).Inc()
}

// ClassifySchedulerJobReason maps an error to a bounded reason label.
func ClassifySchedulerJobReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return SchedulerJobReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return SchedulerJobReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return SchedulerJobReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return SchedulerJobReasonUniqueViolation
	default:
		return SchedulerJobReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
