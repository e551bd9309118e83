package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/freightdesk/internal/clock"
	eventsdomain "github.com/smallbiznis/freightdesk/internal/events/domain"
	"github.com/smallbiznis/freightdesk/internal/expiry"
	obsmetrics "github.com/smallbiznis/freightdesk/internal/observability/metrics"
	"github.com/smallbiznis/freightdesk/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: invalid config")

// ExpirySweeper is satisfied by *expiry.Sweeper.
type ExpirySweeper interface {
	CheckAndUpdateExpiredItems(ctx context.Context) expiry.Result
}

// JobLocker is satisfied by *ratelimit.Locker.
type JobLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Holder(ctx context.Context, key string) (string, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Sweeper *expiry.Sweeper
	Relay   eventsdomain.Relay `optional:"true"`
	Locker  *ratelimit.Locker  `optional:"true"`
	Config  Config             `optional:"true"`
}

type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	genID   *snowflake.Node
	clock   clock.Clock
	sweeper ExpirySweeper
	relay   eventsdomain.Relay
	locker  JobLocker
}

type job struct {
	name      string
	interval  time.Duration
	batchSize int
	run       func(context.Context) error
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Sweeper == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	s := &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     cfg,
		genID:   p.GenID,
		clock:   p.Clock,
		sweeper: p.Sweeper,
		relay:   p.Relay,
	}
	if cfg.UseRedisLock && p.Locker != nil {
		s.locker = p.Locker
	}
	return s, nil
}

func (s *Scheduler) jobs() []job {
	jobs := []job{
		{JobExpireItems, s.cfg.ExpiryInterval, expiry.DefaultBatchSize, s.ExpireItemsJob},
	}
	if s.relay != nil {
		jobs = append(jobs, job{JobOutboxRelay, s.cfg.RelayInterval, s.cfg.RelayBatchSize, s.OutboxRelayJob})
	}

	enabled := jobs[:0]
	for _, j := range jobs {
		if s.isJobEnabled(j.name) {
			enabled = append(enabled, j)
		}
	}
	return enabled
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.beginRun(ctx, name, batchSize)
	if owner {
		s.logRunStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.id),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := s.withJobLock(ctx, name, fn)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errors == 0 {
			run.fail()
		}
		s.logRunFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A deadline is a soft timeout; the next tick picks up the remainder.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job one time, in order.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, j := range s.jobs() {
		err = errors.Join(err, s.runJob(parent, j.name, j.batchSize, s.cfg.JobTimeout, j.run))
	}
	return err
}

// RunForever runs each job on its own ticker until ctx is cancelled. Every job
// runs once immediately.
func (s *Scheduler) RunForever(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range s.jobs() {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			s.loop(ctx, j)
		}(j)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j job) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	nextRun := time.Now()
	schedMetrics := obsmetrics.Scheduler()

	for {
		if lag := time.Since(nextRun); lag > 0 {
			schedMetrics.ObserveRunLoopLag(lag)
		}
		if err := s.runJob(ctx, j.name, j.batchSize, s.cfg.JobTimeout, j.run); err != nil {
			s.log.Warn("scheduler run failed", zap.String("job", j.name), zap.Error(err))
		}
		nextRun = nextRun.Add(j.interval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

// ExpireItemsJob runs the throttled expiry sweep. Sweep failures are logged
// by the sweeper and never fail the job.
func (s *Scheduler) ExpireItemsJob(ctx context.Context) error {
	run := runFromContext(ctx)
	res := s.sweeper.CheckAndUpdateExpiredItems(ctx)
	schedMetrics := obsmetrics.Scheduler()
	if res.Skipped {
		schedMetrics.IncBatchDeferred(JobExpireItems, obsmetrics.SchedulerBatchDeferredReasonThrottled)
		return nil
	}
	run.recordExpiry(res.Inquiries, res.Quotations)
	schedMetrics.AddBatchProcessed(JobExpireItems, obsmetrics.LockResourceExpiredInquiries, res.Inquiries)
	schedMetrics.AddBatchProcessed(JobExpireItems, obsmetrics.LockResourceExpiredQuotations, res.Quotations)
	schedMetrics.AddStatusTransitions("inquiry", "offen", "expired", res.Inquiries)
	schedMetrics.AddStatusTransitions("quotation", "submitted", "expired", res.Quotations)
	return nil
}

// OutboxRelayJob publishes pending outbox rows until a batch comes back short.
func (s *Scheduler) OutboxRelayJob(ctx context.Context) error {
	run := runFromContext(ctx)
	schedMetrics := obsmetrics.Scheduler()
	for {
		start := time.Now()
		res, err := s.relay.RelayPending(ctx, s.cfg.RelayBatchSize)
		schedMetrics.ObserveDBLockWait(obsmetrics.LockResourceOutboxEvents, time.Since(start))
		if err != nil {
			s.logRunError(ctx, run, "outbox relay failed", err)
			return err
		}
		run.recordRelay(res.Published, res.Failed, res.Parked)
		schedMetrics.AddBatchProcessed(JobOutboxRelay, obsmetrics.LockResourceOutboxEvents, res.Published)
		if res.Claimed == 0 {
			schedMetrics.IncBatchDeferred(JobOutboxRelay, obsmetrics.SchedulerBatchDeferredReasonSkipLockedEmpty)
		}
		// Failed rows stay pending; retrying them in the same run would spin.
		if res.Claimed < s.cfg.RelayBatchSize || res.Failed > 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
