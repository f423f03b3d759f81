// Package slurm implements the job.Scheduler interface with the sbatch
// command.
package slurm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"sbt/internal/job"
	"slices"
	"strings"
	"time"
)

// Name of this scheduler.
const Name = "slurm"

var (
	submittedPattern = regexp.MustCompile(`Submitted batch job (\d+)`)
	parsablePattern  = regexp.MustCompile(`^(\d+)(;\S+)?$`)
)

// Controller-side failures that usually clear up on their own.
var transientMarkers = []string{
	"socket timed out",
	"unable to contact slurm controller",
	"resource temporarily unavailable",
	"slurm_persist_conn_open",
	"zero bytes were transmitted",
	"try again",
}

// Scheduler submits scripts with sbatch.
type Scheduler struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a slurm scheduler.
func New(cfg Config) (*Scheduler, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, fmt.Errorf("submit command is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	return &Scheduler{
		cfg:    cfg,
		logger: slog.With("component", "slurm", "dryRun", cfg.DryRun),
	}, nil
}

// Name returns the scheduler name.
func (s *Scheduler) Name() string { return Name }

// Ready checks that the submit command can be found.
func (s *Scheduler) Ready(ctx context.Context) error {
	if _, err := exec.LookPath(s.cfg.Command[0]); err != nil {
		return fmt.Errorf("submit command unavailable: %w", err)
	}
	return nil
}

// Close is a no-op; sbatch holds no resources between calls.
func (s *Scheduler) Close() error { return nil }

// Submit runs the submit command for the script at path from the configured
// working directory, which becomes the job's working directory.
func (s *Scheduler) Submit(ctx context.Context, path string) (*job.Submission, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	args := slices.Clone(s.cfg.Command[1:])
	if s.cfg.DryRun {
		args = append(args, "--test-only")
	}
	args = append(args, path)

	cmd := exec.CommandContext(ctx, s.cfg.Command[0], args...)
	cmd.Dir = s.cfg.Workdir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := strings.TrimSpace(stdout.String())
	diag := strings.TrimSpace(stderr.String())
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		msg := diag
		if msg == "" {
			msg = output
		}
		return nil, &job.SubmitError{
			ExitCode:  exitCode,
			Output:    msg,
			Transient: errors.Is(ctx.Err(), context.DeadlineExceeded) || isTransient(msg),
			Err:       err,
		}
	}

	if s.cfg.DryRun {
		// --test-only reports the estimated start on stderr and queues nothing
		return &job.Submission{Output: strings.TrimSpace(diag + "\n" + output)}, nil
	}

	id, ok := ParseJobID(output)
	if !ok {
		s.logger.Warn("Submission accepted without a recognisable job ID", "path", path, "output", output)
	}
	return &job.Submission{JobID: id, Output: output}, nil
}

// ParseJobID extracts the job ID from sbatch output, in either the default
// "Submitted batch job N" form or the --parsable "N[;cluster]" form.
func ParseJobID(output string) (string, bool) {
	if m := submittedPattern.FindStringSubmatch(output); m != nil {
		return m[1], true
	}
	lines := strings.Split(strings.TrimSpace(output), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if m := parsablePattern.FindStringSubmatch(last); m != nil {
		return m[1], true
	}
	return "", false
}

func isTransient(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
