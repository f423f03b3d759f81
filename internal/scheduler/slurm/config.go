package slurm

import (
	"fmt"
	"os"
	"path/filepath"
	"sbt/internal/config"
	"time"

	"github.com/google/shlex"
)

// Config holds configuration for the slurm scheduler.
type Config struct {
	Command []string      // Submit command and leading arguments (default: sbatch)
	DryRun  bool          // Append --test-only so nothing is queued
	Timeout time.Duration // Per-submission timeout
	Workdir string        // Directory sbatch runs in; jobs start there (empty for the current directory)
}

// LoadConfigFromEnv loads scheduler configuration from environment variables.
// SBT_SBATCH is split with shell quoting rules, e.g. "sbatch --clusters=gpu".
// SBT_SBATCH_WORKDIR defaults to the directory sbt was started in.
func LoadConfigFromEnv() (Config, error) {
	raw := config.GetEnv("SBT_SBATCH", "sbatch")
	command, err := shlex.Split(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse SBT_SBATCH %q: %w", raw, err)
	}

	workdir := config.GetEnv("SBT_SBATCH_WORKDIR", "")
	if workdir == "" {
		if workdir, err = os.Getwd(); err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
	}
	if workdir, err = filepath.Abs(workdir); err != nil {
		return Config{}, fmt.Errorf("resolve SBT_SBATCH_WORKDIR: %w", err)
	}

	return Config{
		Command: command,
		Timeout: config.GetDurationEnv("SBT_SBATCH_TIMEOUT", time.Minute),
		Workdir: workdir,
	}, nil
}
