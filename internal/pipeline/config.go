package pipeline

import (
	"sbt/internal/config"
	"sbt/internal/dispatcher"
	"time"
)

// Config holds run settings that do not come from the job document.
type Config struct {
	NoSubmit        bool              // write scripts and manifest only
	DryRun          bool              // scheduler validates without queueing
	Dispatch        dispatcher.Config // retry and breaker settings
	CallbackKey     string            // signing key when the document has none
	CallbackTimeout time.Duration     // per-request callback timeout (default: 10s)
}

// NewConfig derives run settings from the tool configuration.
func NewConfig(tc *config.ToolConfig) Config {
	cfg := Config{
		Dispatch:        dispatcher.NewConfig(tc),
		CallbackKey:     tc.CallbackKey,
		CallbackTimeout: tc.CallbackTimeout,
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.CallbackTimeout <= 0 {
		c.CallbackTimeout = 10 * time.Second
	}
	return c
}
