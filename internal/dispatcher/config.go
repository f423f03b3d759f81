package dispatcher

import (
	"sbt/internal/config"
	"time"
)

// Submission defaults used when a Config leaves a field unset.
const (
	defaultBackoff          = 500 * time.Millisecond
	defaultBackoffMax       = 10 * time.Second
	defaultBreakerThreshold = 3
	defaultBreakerCooldown  = 30 * time.Second
)

// Config holds configuration for the submission dispatcher.
type Config struct {
	Retries          int           // retries for transient failures (default: 0, negative treated as 0)
	Backoff          time.Duration // initial retry delay (default: 500ms)
	BackoffMax       time.Duration // retry delay ceiling (default: 10s)
	BreakerThreshold int           // consecutive failed jobs before retries stop (default: 3)
	BreakerCooldown  time.Duration // time before retries are tried again (default: 30s)
}

// NewConfig derives dispatcher configuration from the tool settings.
func NewConfig(tc *config.ToolConfig) Config {
	cfg := Config{
		Retries:          tc.SubmitRetries,
		Backoff:          tc.SubmitBackoff,
		BackoffMax:       tc.SubmitBackoffMax,
		BreakerThreshold: tc.BreakerThreshold,
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.Backoff <= 0 {
		c.Backoff = defaultBackoff
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = defaultBackoffMax
	}
	if c.BackoffMax < c.Backoff {
		c.BackoffMax = c.Backoff
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = defaultBreakerThreshold
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = defaultBreakerCooldown
	}
	return c
}
