package scheduler

import (
	"context"
	"time"

	"github.com/smallbiznis/freightdesk/internal/auditcontext"
	obscontext "github.com/smallbiznis/freightdesk/internal/observability/context"
	obslogger "github.com/smallbiznis/freightdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/freightdesk/internal/observability/metrics"
	"github.com/smallbiznis/freightdesk/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

const systemActorID = "scheduler"

// jobRun tallies one pass of a job. Its id is also the correlation id of every
// outbox row written during the pass.
type jobRun struct {
	job       string
	id        string
	batchSize int
	startedAt time.Time

	inquiriesExpired  int
	quotationsExpired int
	eventsPublished   int
	eventsFailed      int
	eventsParked      int
	errors            int
}

type jobRunKey struct{}

func (r *jobRun) recordExpiry(inquiries, quotations int) {
	if r == nil {
		return
	}
	r.inquiriesExpired += inquiries
	r.quotationsExpired += quotations
}

func (r *jobRun) recordRelay(published, failed, parked int) {
	if r == nil {
		return
	}
	r.eventsPublished += published
	r.eventsFailed += failed
	r.eventsParked += parked
}

func (r *jobRun) fail() {
	if r != nil {
		r.errors++
	}
}

func (r *jobRun) fields() []zap.Field {
	fields := []zap.Field{
		zap.String("job", r.job),
		zap.String("run_id", r.id),
		zap.Int64("duration_ms", time.Since(r.startedAt).Milliseconds()),
		zap.Int("error_count", r.errors),
	}
	switch r.job {
	case JobExpireItems:
		fields = append(fields,
			zap.Int("inquiries_expired", r.inquiriesExpired),
			zap.Int("quotations_expired", r.quotationsExpired),
		)
	case JobOutboxRelay:
		fields = append(fields,
			zap.Int("events_published", r.eventsPublished),
			zap.Int("events_failed", r.eventsFailed),
			zap.Int("events_parked", r.eventsParked),
		)
	}
	return fields
}

// beginRun attaches a fresh run to ctx, acting as the system scheduler actor.
// A ctx that already carries a run is returned unchanged with owner=false.
func (s *Scheduler) beginRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun, bool) {
	if existing := runFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	run := &jobRun{
		job:       job,
		id:        s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: time.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = correlation.ContextWithCorrelationID(ctx, run.id)
	ctx = auditcontext.WithActor(ctx, auditcontext.ActorTypeSystem, systemActorID)
	ctx = obscontext.WithActor(ctx, auditcontext.ActorTypeSystem, systemActorID)
	return ctx, run, true
}

func runFromContext(ctx context.Context) *jobRun {
	if ctx == nil {
		return nil
	}
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logRunStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.id),
		zap.Int("batch_size", run.batchSize),
	)
}

func (s *Scheduler) logRunFinish(ctx context.Context, run *jobRun) {
	log := s.logger(ctx)
	if run.errors > 0 || run.eventsParked > 0 {
		log.Warn("scheduler.job.finish", run.fields()...)
		return
	}
	log.Info("scheduler.job.finish", run.fields()...)
}

func (s *Scheduler) logRunError(ctx context.Context, run *jobRun, msg string, err error) {
	run.fail()
	job := ""
	if run != nil {
		job = run.job
	}
	s.logger(ctx).Error(msg,
		zap.String("job", job),
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	)
}
