package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/freightdesk/internal/authorization"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := map[error]string{
		context.DeadlineExceeded:                  SchedulerJobReasonDeadlineExceeded,
		fmt.Errorf("sweep: %w", context.Canceled): SchedulerJobReasonDeadlineExceeded,
		authorization.ErrForbidden:                SchedulerJobReasonForbidden,
		&pgconn.PgError{Code: "55P03"}:            SchedulerJobReasonDBLockTimeout,
		&pgconn.PgError{Code: "40001"}:            SchedulerJobReasonSerializationFailure,
		&pgconn.PgError{Code: "23505"}:            SchedulerJobReasonUniqueViolation,
		gorm.ErrDuplicatedKey:                     SchedulerJobReasonUniqueViolation,
		errors.New("boom"):                        SchedulerJobReasonUnknown,
	}
	for err, want := range cases {
		require.Equal(t, want, ClassifySchedulerJobReason(err), err.Error())
	}
	require.Equal(t, SchedulerJobReasonUnknown, ClassifySchedulerJobReason(nil))
}

func TestClassifySchedulerErrorType(t *testing.T) {
	require.Equal(t, SchedulerErrorTypeDeadlineExceeded, ClassifySchedulerErrorType(context.DeadlineExceeded))
	require.Equal(t, SchedulerErrorTypeAuthorization, ClassifySchedulerErrorType(authorization.ErrInvalidActor))
	require.Equal(t, SchedulerErrorTypeDB, ClassifySchedulerErrorType(&pgconn.PgError{Code: "08006"}))
	require.Equal(t, SchedulerErrorTypeBusinessRule, ClassifySchedulerErrorType(gorm.ErrRecordNotFound))

	require.True(t, IsSchedulerErrorRetryable(gorm.ErrInvalidTransaction))
	require.True(t, IsSchedulerErrorRetryable(context.Canceled))
	require.False(t, IsSchedulerErrorRetryable(gorm.ErrRecordNotFound))
	require.False(t, IsSchedulerErrorRetryable(nil))
}

func TestAddBatchProcessedAndTransitions(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "freightdesk", Environment: "test"})

	m.AddBatchProcessed("expire_items", "inquiries", 3)
	m.AddBatchProcessed("expire_items", "inquiries", 0)
	m.AddStatusTransitions("quotation", "submitted", "expired", 2)
	m.AddStatusTransitions("quotation", "submitted", "expired", 0)
	m.ObserveRunLoopLag(-time.Second)

	require.InDelta(t, 3, testutil.ToFloat64(m.batchProcessed.WithLabelValues("expire_items", "inquiries")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.itemTransitions.WithLabelValues("quotation", "submitted", "expired")), 0)

	families, err := registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["freightdesk_scheduler_batch_processed_total"])
	require.True(t, names["freightdesk_status_transitions_total"])
	require.True(t, names["freightdesk_scheduler_runloop_lag_seconds"])
}

func TestNilSchedulerMetricsAreNoops(t *testing.T) {
	var m *SchedulerMetrics
	m.IncJobRun("x")
	m.IncJobError("x", errors.New("boom"))
	m.ObserveDBLockWait(LockResourceOutboxEvents, time.Millisecond)
}
