// Package config provides tool settings loaded from environment variables.
package config

import (
	"log/slog"
	"strings"
	"time"
)

// ToolConfig holds settings that are independent of a single job document.
type ToolConfig struct {
	Scheduler        string        // Submission backend: "slurm" or "docker"
	SubmitRetries    int           // Retries for transient submission failures
	SubmitBackoff    time.Duration // Initial retry backoff
	SubmitBackoffMax time.Duration // Retry backoff ceiling
	BreakerThreshold int           // Consecutive failures before retries are disabled
	MetricsFile      string        // Prometheus textfile output path (empty to skip)
	LogFormat        string        // "text" or "json"
	LogLevel         slog.Level
	CallbackKey      string        // Signing key read from SBT_CALLBACK_KEY_FILE
	CallbackTimeout  time.Duration // Per-request callback timeout
	NoColor          bool          // Disable colored summaries
}

// LoadToolConfig loads tool configuration from environment variables.
func LoadToolConfig() *ToolConfig {
	return &ToolConfig{
		Scheduler:        GetEnv("SBT_SCHEDULER", "slurm"),
		SubmitRetries:    GetIntEnv("SBT_SUBMIT_RETRIES", 2),
		SubmitBackoff:    GetDurationEnv("SBT_SUBMIT_BACKOFF", 500*time.Millisecond),
		SubmitBackoffMax: GetDurationEnv("SBT_SUBMIT_BACKOFF_MAX", 10*time.Second),
		BreakerThreshold: GetIntEnv("SBT_BREAKER_THRESHOLD", 3),
		MetricsFile:      GetEnv("SBT_METRICS_FILE", ""),
		LogFormat:        strings.ToLower(GetEnv("SBT_LOG_FORMAT", "text")),
		LogLevel:         parseLevel(GetEnv("SBT_LOG_LEVEL", "info")),
		CallbackKey:      GetSecretFile(GetEnv("SBT_CALLBACK_KEY_FILE", "")),
		CallbackTimeout:  GetDurationEnv("SBT_CALLBACK_TIMEOUT", 10*time.Second),
		NoColor:          GetBoolEnv("SBT_NO_COLOR", false),
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
