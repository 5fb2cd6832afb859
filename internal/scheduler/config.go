package scheduler

import (
	"time"

	"github.com/smallbiznis/studioledger/internal/config"
)

// Config controls the sweep interval and per-studio limits.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
	// LockTTL bounds how long one replica may hold a (sweep, studio) lock.
	LockTTL time.Duration
	// PublicBaseURL prefixes the invoice link placed in reminder emails.
	PublicBaseURL string
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: time.Hour,
		BatchSize:   200,
		JobTimeout:  2 * time.Minute,
		LockTTL:     5 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	c := DefaultConfig()
	c.Enabled = cfg.SchedulerEnabled
	c.RunInterval = cfg.SchedulerInterval
	c.PublicBaseURL = cfg.PublicBaseURL
	return c.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.LockTTL < c.JobTimeout {
		c.LockTTL = c.JobTimeout
	}
	return c
}
