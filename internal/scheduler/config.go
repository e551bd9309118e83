package scheduler

import (
	"time"

	"github.com/smallbiznis/freightdesk/internal/config"
)

const (
	JobExpireItems = "expire_items"
	JobOutboxRelay = "outbox_relay"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	ExpiryInterval time.Duration
	RelayInterval  time.Duration
	JobTimeout     time.Duration
	RelayBatchSize int
	// EnabledJobs limits which jobs run. Empty means all.
	EnabledJobs  []string
	UseRedisLock bool
	LockTTL      time.Duration
}

func DefaultConfig() Config {
	return Config{
		ExpiryInterval: 5 * time.Minute,
		RelayInterval:  10 * time.Second,
		JobTimeout:     30 * time.Second,
		RelayBatchSize: 100,
		LockTTL:        time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.ExpiryInterval <= 0 {
		c.ExpiryInterval = defaults.ExpiryInterval
	}
	if c.RelayInterval <= 0 {
		c.RelayInterval = defaults.RelayInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.RelayBatchSize <= 0 {
		c.RelayBatchSize = defaults.RelayBatchSize
	}
	if c.LockTTL < c.JobTimeout {
		c.LockTTL = c.JobTimeout + 10*time.Second
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		ExpiryInterval: cfg.Scheduler.ExpiryInterval,
		RelayInterval:  cfg.Scheduler.RelayInterval,
		JobTimeout:     cfg.Scheduler.JobTimeout,
		UseRedisLock:   cfg.Scheduler.UseRedisLock,
	}
}
