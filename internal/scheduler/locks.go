package scheduler

import (
	"context"

	obsmetrics "github.com/smallbiznis/freightdesk/internal/observability/metrics"
	"go.uber.org/zap"
)

const lockKeyPrefix = "freightdesk:scheduler:"

func lockKey(job string) string {
	return lockKeyPrefix + job
}

// withJobLock runs fn while holding the job's redis lock. Another instance
// holding the lock skips the run. Redis errors fall back to running
// unlocked: both jobs claim rows with SKIP LOCKED, so a double run is safe.
func (s *Scheduler) withJobLock(ctx context.Context, job string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	key := lockKey(job)
	token, acquired, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		s.logger(ctx).Warn("scheduler lock unavailable, running unlocked",
			zap.String("job", job),
			zap.Error(err),
		)
		return fn(ctx)
	}
	if !acquired {
		obsmetrics.Scheduler().IncBatchDeferred(job, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		holder, _ := s.locker.Holder(ctx, key)
		s.logger(ctx).Debug("scheduler lock held elsewhere, skipping",
			zap.String("job", job),
			zap.String("holder", holder),
		)
		return nil
	}
	defer func() {
		// The job context may already be past its deadline.
		releaseCtx := context.WithoutCancel(ctx)
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.logger(ctx).Warn("failed to release scheduler lock", zap.String("job", job), zap.Error(err))
		}
	}()
	return fn(ctx)
}
