package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// QueryLoggerConfig tunes SQL logging.
type QueryLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
	// LockWaitThreshold applies to locking reads only. Quotation decisions,
	// the expiry sweep and the outbox relay all take row locks, and a slow one
	// usually means two of them are contending on an inquiry.
	LockWaitThreshold time.Duration
}

// QueryLogger routes gorm output through zap with request fields attached.
type QueryLogger struct {
	base *zap.Logger
	cfg  QueryLoggerConfig
}

// NewQueryLogger builds a QueryLogger. A nil base uses the global logger at
// log time, so it follows zap.ReplaceGlobals.
func NewQueryLogger(base *zap.Logger, cfg QueryLoggerConfig) *QueryLogger {
	return &QueryLogger{base: base, cfg: cfg}
}

func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.cfg.Level = level
	return &next
}

func (l *QueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *QueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *QueryLogger) message(ctx context.Context, min gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.cfg.Level < min {
		return
	}
	l.logger(ctx).Log(level, fmt.Sprintf(msg, data...), zap.String("component", "gorm"))
}

// Trace logs failed, slow and lock-heavy statements. Missing rows are not
// failures here: repositories turn them into domain not-found errors.
func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	if err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) {
		if l.cfg.Level >= gormlogger.Error {
			l.statement(ctx, zapcore.ErrorLevel, "gorm.query_failed", fc, elapsed, err)
		}
		return
	}
	if l.cfg.Level < gormlogger.Warn {
		return
	}

	sql, rows := fc()
	stmt := describeStatement(sql)
	switch {
	case stmt.locking != "" && l.cfg.LockWaitThreshold > 0 && elapsed > l.cfg.LockWaitThreshold:
		l.emit(ctx, zapcore.WarnLevel, "gorm.lock_wait", stmt, sql, rows, elapsed, nil)
	case l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold:
		l.emit(ctx, zapcore.WarnLevel, "gorm.slow_query", stmt, sql, rows, elapsed, nil)
	case l.cfg.Level >= gormlogger.Info:
		l.emit(ctx, zapcore.DebugLevel, "gorm.query", stmt, sql, rows, elapsed, nil)
	}
}

// ParamsFilter drops bound values; they carry emails and cargo details.
func (l *QueryLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *QueryLogger) statement(ctx context.Context, level zapcore.Level, msg string, fc func() (string, int64), elapsed time.Duration, err error) {
	sql, rows := fc()
	l.emit(ctx, level, msg, describeStatement(sql), sql, rows, elapsed, err)
}

func (l *QueryLogger) emit(ctx context.Context, level zapcore.Level, msg string, stmt statement, sql string, rows int64, elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.String("operation", stmt.operation),
		zap.String("table", stmt.table),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if stmt.locking != "" {
		fields = append(fields, zap.String("row_lock", stmt.locking))
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.logger(ctx).Log(level, msg, fields...)
}

func (l *QueryLogger) logger(ctx context.Context) *zap.Logger {
	if l.base != nil {
		return WithContext(ctx, l.base)
	}
	return FromContext(ctx)
}

type statement struct {
	operation string
	table     string
	locking   string
}

// describeStatement pulls the verb, the first table and any row-lock clause
// out of a rendered statement.
func describeStatement(sql string) statement {
	upper := strings.ToUpper(sql)
	stmt := statement{operation: "UNKNOWN"}
	switch {
	case strings.Contains(upper, "SKIP LOCKED"):
		stmt.locking = "skip_locked"
	case strings.Contains(upper, "FOR UPDATE"):
		stmt.locking = "for_update"
	}

	tokens := strings.Fields(sql)
	for i, raw := range tokens {
		token := strings.ToUpper(strings.Trim(raw, "();"))
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			if stmt.operation == "UNKNOWN" {
				stmt.operation = token
			}
			if token == "UPDATE" && stmt.table == "" && i+1 < len(tokens) {
				stmt.table = tableName(tokens[i+1])
			}
		case "FROM", "INTO":
			if stmt.table == "" && i+1 < len(tokens) {
				stmt.table = tableName(tokens[i+1])
			}
		}
	}
	return stmt
}

func tableName(token string) string {
	return strings.Trim(token, "\"`();,")
}

var _ gormlogger.Interface = (*QueryLogger)(nil)
