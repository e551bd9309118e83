package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/freightdesk/internal/observability/context"
	"github.com/smallbiznis/freightdesk/pkg/telemetry/correlation"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func fieldMap(fields []zap.Field) map[string]string {
	out := map[string]string{}
	for _, f := range fields {
		out[f.Key] = f.String
	}
	return out
}

func TestContextFieldsSkipUnknownValues(t *testing.T) {
	require.Empty(t, ContextFields(context.Background()))

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithOrgID(ctx, "100")
	ctx = obscontext.WithOrgType(ctx, "forwarder")
	ctx = obscontext.WithActor(ctx, "user", "7")
	ctx = correlation.ContextWithCorrelationID(ctx, "cid-1")

	require.Equal(t, map[string]string{
		"request_id":     "req-1",
		"correlation_id": "cid-1",
		"org_id":         "100",
		"org_type":       "forwarder",
		"actor_type":     "user",
		"actor_id":       "7",
	}, fieldMap(ContextFields(ctx)))
}

func TestDescribeStatement(t *testing.T) {
	cases := []struct {
		sql  string
		want statement
	}{
		{
			sql:  `SELECT * FROM "inquiries" WHERE id = 1 ORDER BY "inquiries"."id" LIMIT 1 FOR UPDATE`,
			want: statement{operation: "SELECT", table: "inquiries", locking: "for_update"},
		},
		{
			sql:  `SELECT * FROM "outbox_events" WHERE published_at IS NULL LIMIT 100 FOR UPDATE SKIP LOCKED`,
			want: statement{operation: "SELECT", table: "outbox_events", locking: "skip_locked"},
		},
		{
			sql:  `UPDATE "quotations" SET "status"='rejected' WHERE inquiry_id = 5`,
			want: statement{operation: "UPDATE", table: "quotations"},
		},
		{
			sql:  `INSERT INTO "activity_events" ("id") VALUES (1)`,
			want: statement{operation: "INSERT", table: "activity_events"},
		},
		{sql: "", want: statement{operation: "UNKNOWN"}},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, describeStatement(tc.sql), tc.sql)
	}
}

func TestQueryLoggerFlagsSlowLocks(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewQueryLogger(zap.New(core), QueryLoggerConfig{
		Level:             gormlogger.Warn,
		SlowThreshold:     time.Second,
		LockWaitThreshold: 10 * time.Millisecond,
	})
	ctx := context.Background()
	begin := time.Now().Add(-50 * time.Millisecond)

	l.Trace(ctx, begin, func() (string, int64) {
		return `SELECT * FROM "inquiries" WHERE id = 1 FOR UPDATE`, 1
	}, nil)
	// same duration without a lock stays under the slow threshold
	l.Trace(ctx, begin, func() (string, int64) {
		return `SELECT * FROM "inquiries" WHERE id = 1`, 1
	}, nil)
	l.Trace(ctx, time.Now(), func() (string, int64) {
		return `SELECT * FROM "quotations"`, 0
	}, gormlogger.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), func() (string, int64) {
		return `UPDATE "quotations" SET status = 'accepted'`, 0
	}, errors.New("deadlock detected"))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	require.Equal(t, "gorm.lock_wait", entries[0].Message)
	require.Equal(t, "for_update", entries[0].ContextMap()["row_lock"])
	require.Equal(t, "inquiries", entries[0].ContextMap()["table"])
	require.Equal(t, "gorm.query_failed", entries[1].Message)
	require.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestQueryLoggerSilent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewQueryLogger(zap.New(core), QueryLoggerConfig{Level: gormlogger.Silent})

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("boom"))
	l.Error(context.Background(), "failed %s", "x")
	require.Zero(t, logs.Len())
}

func TestGinMiddlewareCorrelation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var seen string
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/ping", func(c *gin.Context) {
		seen = correlation.ExtractCorrelationID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(correlation.HTTPHeader, "upstream-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "upstream-1", seen)
	require.Equal(t, "upstream-1", w.Header().Get(correlation.HTTPHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Len(t, seen, 26)
	require.Equal(t, seen, w.Header().Get(correlation.HTTPHeader))
}

func TestGinMiddlewareRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var seen string
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/ping", func(c *gin.Context) {
		seen = obscontext.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "req-abc", seen)
	require.Equal(t, "req-abc", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxHeaderIDLength+1))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Len(t, seen, 36)
	require.Equal(t, seen, w.Header().Get(RequestIDHeader))
}

func TestRequestLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, requestLevel("/health", http.StatusInternalServerError, ""))
	require.Equal(t, zapcore.ErrorLevel, requestLevel("/api/quotations", http.StatusInternalServerError, ""))
	require.Equal(t, zapcore.DebugLevel, requestLevel("/api/inquiries", http.StatusBadRequest, "validation_error"))
	require.Equal(t, zapcore.WarnLevel, requestLevel("/api/quotations/:id/submit", http.StatusTooManyRequests, "rate_limited"))
	require.Equal(t, zapcore.InfoLevel, requestLevel("/api/inquiries", http.StatusOK, ""))
}
