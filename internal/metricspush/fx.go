package metricspush

import (
	"context"
	"time"

	"github.com/smallbiznis/freightdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("metrics.push",
	fx.Provide(NewPusher),
	fx.Provide(func(cfg config.Config) *Snapshot {
		return NewSnapshot(cfg.InstanceID, cfg.AppVersion)
	}),
	fx.Invoke(registerWorker),
)

func registerWorker(lc fx.Lifecycle, cfg config.Config, pusher Pusher, snapshot *Snapshot, db *gorm.DB, logger *zap.Logger) {
	if pusher == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("metrics.push")
	interval := cfg.Metrics.Interval
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting metrics push worker", zap.Duration("interval", interval))
			go func() {
				defer close(done)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				for {
					if err := PushOnce(ctx, snapshot, db, pusher); err != nil {
						logger.Warn("metrics push failed", zap.Error(err))
					}
					select {
					case <-ticker.C:
					case <-ctx.Done():
						logger.Info("stopping metrics push worker")
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

// PushOnce refreshes the snapshot and sends it.
func PushOnce(ctx context.Context, snapshot *Snapshot, db *gorm.DB, pusher Pusher) error {
	if err := snapshot.Refresh(ctx, db); err != nil {
		return err
	}
	return pusher.Push(ctx, snapshot.Registry())
}
