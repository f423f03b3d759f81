// Package dispatcher submits written job scripts to a scheduler one at a
// time and aggregates the outcome.
package dispatcher

import (
	"cmp"
	"context"
	"log/slog"
	"sbt/internal/apperrors"
	"sbt/internal/artifact"
	"sbt/internal/job"
	"sbt/pkg/backoff"
	"sbt/pkg/circuitbreaker"
	"slices"
	"time"
)

// MetricsRecorder is an optional interface for recording submission metrics.
type MetricsRecorder interface {
	RecordSubmission(ctx context.Context, scheduler string, success bool, durationSeconds float64)
	RecordRetry(ctx context.Context, scheduler string)
	RecordBreakerOpen(ctx context.Context, scheduler string)
}

// Result is the outcome of submitting one artifact.
type Result struct {
	Artifact   *artifact.Artifact
	Submission *job.Submission // nil when the submission failed
	Attempts   int             // 0 when the artifact was never tried
	Err        error           // *apperrors.Error with ErrSubmission, nil on success
}

// OK reports whether the scheduler accepted the artifact.
func (r Result) OK() bool {
	return r.Err == nil
}

// Summary aggregates the results of a run, ordered by combination index.
type Summary struct {
	Total         int
	Submitted     int
	Failed        int
	FailedIndices []int
	Results       []Result
}

// Err returns a submission error naming the failed indices, or nil when every
// artifact was accepted.
func (s Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}
	return apperrors.SubmissionSummary(s.Failed, s.Total, s.FailedIndices)
}

// Dispatcher submits artifacts sequentially. Submitted jobs are never
// cancelled when a later one fails.
type Dispatcher struct {
	scheduler job.Scheduler
	policy    backoff.Policy
	breaker   *circuitbreaker.Breaker
	logger    *slog.Logger
	metrics   MetricsRecorder
}

// New creates a dispatcher for scheduler. metrics may be nil.
func New(scheduler job.Scheduler, cfg Config, metrics MetricsRecorder) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		scheduler: scheduler,
		policy: backoff.Policy{
			Retries: cfg.Retries,
			Initial: cfg.Backoff,
			Max:     cfg.BackoffMax,
		},
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Threshold: cfg.BreakerThreshold,
			Cooldown:  cfg.BreakerCooldown,
		}),
		logger:  slog.With("component", "dispatcher", "scheduler", scheduler.Name()),
		metrics: metrics,
	}
}

// Dispatch submits every artifact in index order and returns the summary.
// A failed submission does not stop later ones. Once ctx is done the
// remaining artifacts are recorded as failed without being tried.
func (d *Dispatcher) Dispatch(ctx context.Context, artifacts []*artifact.Artifact) Summary {
	ordered := slices.SortedFunc(slices.Values(artifacts), func(a, b *artifact.Artifact) int {
		return cmp.Compare(a.Index, b.Index)
	})

	summary := Summary{
		Total:   len(ordered),
		Results: make([]Result, 0, len(ordered)),
	}

	for _, a := range ordered {
		result := d.submit(ctx, a)
		summary.Results = append(summary.Results, result)

		if result.OK() {
			summary.Submitted++
			d.logger.Info("Job submitted",
				"index", a.Index,
				"job", a.JobName,
				"job_id", result.Submission.JobID,
				"attempts", result.Attempts,
			)
			continue
		}

		summary.Failed++
		summary.FailedIndices = append(summary.FailedIndices, a.Index)
		d.logger.Error("Job submission failed",
			"index", a.Index,
			"job", a.JobName,
			"values", apperrors.FormatValues(a.Values),
			"attempts", result.Attempts,
			"error", result.Err,
		)
	}

	d.logger.Info("Dispatch complete",
		"total", summary.Total,
		"submitted", summary.Submitted,
		"failed", summary.Failed,
	)
	return summary
}

// submit tries one artifact, retrying transient failures while the breaker
// allows it.
func (d *Dispatcher) submit(ctx context.Context, a *artifact.Artifact) Result {
	result := Result{Artifact: a}
	if err := ctx.Err(); err != nil {
		result.Err = apperrors.Submission(a.Index, a.Path, err)
		return result
	}

	attempts := d.policy.Attempts()
	if !d.breaker.Allow() {
		attempts = 1
		if d.metrics != nil {
			d.metrics.RecordBreakerOpen(ctx, d.scheduler.Name())
		}
		d.logger.Warn("Retries disabled, scheduler keeps failing",
			"index", a.Index,
			"consecutive_failures", d.breaker.Failures(),
		)
	}

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			if d.metrics != nil {
				d.metrics.RecordRetry(ctx, d.scheduler.Name())
			}
			d.logger.Warn("Retrying submission",
				"index", a.Index,
				"attempt", attempt+1,
				"delay", d.policy.Delay(attempt),
				"error", lastErr,
			)
			if err := d.policy.Wait(ctx, attempt); err != nil {
				lastErr = err
				break
			}
		}

		result.Attempts++
		start := time.Now()
		sub, err := d.scheduler.Submit(ctx, a.Path)
		if d.metrics != nil {
			d.metrics.RecordSubmission(ctx, d.scheduler.Name(), err == nil, time.Since(start).Seconds())
		}
		if err == nil {
			if sub == nil {
				sub = &job.Submission{}
			}
			d.breaker.Success()
			result.Submission = sub
			return result
		}

		lastErr = err
		if !job.IsTransient(err) {
			break
		}
	}

	d.breaker.Failure()
	result.Err = apperrors.Submission(a.Index, a.Path, lastErr)
	return result
}
