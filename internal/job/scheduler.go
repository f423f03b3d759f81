package job

import (
	"context"
	"errors"
	"fmt"
)

// Scheduler submits job scripts to a workload manager.
//
// Submission is the whole contract: once a script is accepted the scheduler
// owns the job. Implementations do not poll, cancel or collect results.
//
// Implementations must be safe for sequential use; the dispatcher never
// calls Submit concurrently.
type Scheduler interface {
	// Name identifies the backend in logs, metrics and the manifest.
	Name() string

	// Submit hands the script at path to the backend.
	// A rejected script returns an error, preferably a *SubmitError so the
	// caller can tell transient failures from permanent ones.
	Submit(ctx context.Context, path string) (*Submission, error)

	// Ready checks if the backend is reachable.
	// For slurm: the submit command is on PATH.
	// For docker: the daemon answers a ping.
	Ready(ctx context.Context) error

	// Close releases resources held by the scheduler.
	// Submitted jobs are NOT affected.
	Close() error
}

// Submission is the scheduler's acknowledgement of an accepted script.
type Submission struct {
	JobID  string // Scheduler-assigned identifier, empty in dry-run mode
	Output string // Raw acknowledgement text
}

// SubmitError describes a rejected submission.
type SubmitError struct {
	ExitCode  int    // Exit status of the submit command, -1 if it did not run
	Output    string // Combined diagnostic output
	Transient bool   // Worth retrying (controller timeouts, busy daemon)
	Err       error  // Underlying error
}

func (e *SubmitError) Error() string {
	msg := fmt.Sprintf("exit status %d", e.ExitCode)
	if e.Err != nil && e.ExitCode < 0 {
		msg = e.Err.Error()
	}
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a submission failure worth retrying.
func IsTransient(err error) bool {
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Transient
	}
	return false
}
