package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSchedulerMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewSchedulerMetrics(registry, Config{ServiceName: "test", Environment: "test"})
	if err != nil {
		t.Fatalf("new scheduler metrics: %v", err)
	}

	m.IncJobRun("payment_reminders")
	m.AddItemsProcessed("payment_reminders", 3)
	m.IncJobError("payment_reminders", errors.New("boom"))

	if got := testutil.ToFloat64(m.jobRuns.WithLabelValues("payment_reminders")); got != 1 {
		t.Fatalf("expected 1 job run, got %v", got)
	}
	if got := testutil.ToFloat64(m.itemsProcessed.WithLabelValues("payment_reminders")); got != 3 {
		t.Fatalf("expected 3 processed, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobErrors.WithLabelValues("payment_reminders", SchedulerJobReasonUnknown)); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}

	if _, err := NewSchedulerMetrics(registry, Config{ServiceName: "test", Environment: "test"}); err != nil {
		t.Fatalf("expected re-registration to be tolerated: %v", err)
	}
}
