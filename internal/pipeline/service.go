// Package pipeline runs a job document end to end: expand the matrix,
// render and write one script per combination, submit them, then record
// the manifest and notify the callback.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"sbt/internal/apperrors"
	"sbt/internal/artifact"
	"sbt/internal/dispatcher"
	"sbt/internal/job"
	"sbt/internal/matrix"
	"sbt/internal/observability"
	"sbt/internal/render"
	"time"

	"github.com/google/uuid"
)

// Report describes a finished run.
type Report struct {
	RunID     string
	Config    *job.Config
	Artifacts []*artifact.Artifact
	Summary   *dispatcher.Summary // nil when nothing was submitted
	Manifest  string              // manifest path, empty if it could not be written
	Duration  time.Duration
}

// Err returns the aggregated submission error, if any.
func (r *Report) Err() error {
	if r.Summary == nil {
		return nil
	}
	return r.Summary.Err()
}

// Service runs job documents against one scheduler.
type Service struct {
	scheduler job.Scheduler
	cfg       Config
	metrics   *observability.Metrics
}

// NewService creates a run service. scheduler may be nil when cfg.NoSubmit
// is set; metrics may be nil.
func NewService(scheduler job.Scheduler, cfg Config, metrics *observability.Metrics) *Service {
	return &Service{
		scheduler: scheduler,
		cfg:       cfg.withDefaults(),
		metrics:   metrics,
	}
}

// Rendered is a job script ready to be written.
type Rendered struct {
	Combination matrix.Combination
	JobName     string
	Script      artifact.Script
}

// Render expands the matrix and renders every combination in index order.
// Nothing is written; the first failing combination aborts with a
// RenderError.
func (s *Service) Render(ctx context.Context, cfg *job.Config) ([]Rendered, error) {
	logger := slog.With("component", "pipeline", "config", cfg.Name)

	engine, err := render.New(cfg.TemplateEngine)
	if err != nil {
		return nil, err
	}
	tmpl, err := engine.Parse(cfg.Name, cfg.Template)
	if err != nil {
		return nil, apperrors.Render(apperrors.NoIndex, nil, err)
	}
	header, err := parseHeader(engine, cfg.Options)
	if err != nil {
		return nil, apperrors.Render(apperrors.NoIndex, nil, err)
	}

	combinations, err := matrix.Expand(cfg.Matrix)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordCombinations(ctx, len(combinations))
	}
	logger.Info("Matrix expanded", "combinations", len(combinations), "axes", len(cfg.Matrix))

	namer := artifact.NewNamer(cfg.Name, len(combinations))
	scripts := make([]Rendered, 0, len(combinations))
	for _, c := range combinations {
		jobName := namer.JobName(c)
		vars := matrix.Merge(cfg.Defaults, c).With(builtins(cfg, jobName, c.Index))

		opts, err := header.render(cfg.Options, vars)
		if err != nil {
			return nil, apperrors.Render(c.Index, c.Values(), err)
		}
		body, err := tmpl.Execute(vars)
		if err != nil {
			return nil, apperrors.Render(c.Index, c.Values(), err)
		}

		scripts = append(scripts, Rendered{
			Combination: c,
			JobName:     jobName,
			Script: artifact.Script{
				Shebang: cfg.Shebang,
				Options: opts.WithJobDefaults(jobName, cfg.Logdir),
				Env:     cfg.Env,
				Body:    body,
			},
		})
	}
	return scripts, nil
}

// Generate renders every combination and writes the scripts. Rendering
// completes for all combinations before the first file is written, so a
// RenderError leaves the log directory untouched.
func (s *Service) Generate(ctx context.Context, cfg *job.Config) ([]*artifact.Artifact, error) {
	scripts, err := s.Render(ctx, cfg)
	if err != nil {
		return nil, err
	}

	writer := artifact.NewWriter(cfg.Logdir)
	artifacts := make([]*artifact.Artifact, 0, len(scripts))
	for _, r := range scripts {
		a, err := writer.Write(r.Combination.Index, r.JobName, r.Combination.Values(), r.Script)
		if err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.RecordArtifactWritten(ctx, a.Size)
		}
		artifacts = append(artifacts, a)
	}

	slog.Info("Job scripts written", "component", "pipeline", "config", cfg.Name, "count", len(artifacts), "logdir", cfg.Logdir)
	return artifacts, nil
}

// Run generates the scripts for cfg and, unless NoSubmit is set, submits
// them in index order. The report is returned even when some submissions
// failed; the error is then the aggregated SubmissionError.
func (s *Service) Run(ctx context.Context, cfg *job.Config) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString(), Config: cfg}
	logger := slog.With("component", "pipeline", "config", cfg.Name, "runId", report.RunID)

	artifacts, err := s.Generate(ctx, cfg)
	if err != nil {
		logger.Error("Generation failed", "error", err)
		return nil, err
	}
	report.Artifacts = artifacts

	if !s.cfg.NoSubmit {
		report.Summary = s.submit(ctx, logger, artifacts)
	}
	report.Duration = time.Since(start)

	writer := artifact.NewWriter(cfg.Logdir)
	path, err := writer.WriteManifest(cfg.Name, s.manifest(report))
	if err != nil {
		logger.Error("Failed to write manifest", "error", err)
	} else {
		report.Manifest = path
	}

	if report.Summary != nil && cfg.Callback != nil {
		n := newNotifier(cfg, report.RunID, s.schedulerName(), s.cfg)
		n.notify(ctx, report.Summary)
	}

	failed := 0
	if report.Summary != nil {
		failed = report.Summary.Failed
	}
	if s.metrics != nil {
		s.metrics.RecordRun(ctx, failed, report.Duration.Seconds())
	}

	logger.Info("Run complete", "jobs", len(artifacts), "failed", failed, "duration", report.Duration)
	return report, report.Err()
}

func (s *Service) submit(ctx context.Context, logger *slog.Logger, artifacts []*artifact.Artifact) *dispatcher.Summary {
	if err := s.scheduler.Ready(ctx); err != nil {
		logger.Warn("Scheduler not ready, submitting anyway", "scheduler", s.scheduler.Name(), "error", err)
	}

	var recorder dispatcher.MetricsRecorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	d := dispatcher.New(s.scheduler, s.cfg.Dispatch, recorder)
	summary := d.Dispatch(ctx, artifacts)
	return &summary
}

func (s *Service) schedulerName() string {
	if s.scheduler == nil {
		return ""
	}
	return s.scheduler.Name()
}

// manifest records every artifact with the outcome of its submission.
func (s *Service) manifest(report *Report) *artifact.Manifest {
	m := &artifact.Manifest{
		RunID:       report.RunID,
		Config:      report.Config.Path,
		DryRun:      s.cfg.DryRun,
		GeneratedAt: time.Now().UTC(),
		Jobs:        make([]artifact.ManifestEntry, 0, len(report.Artifacts)),
	}
	if report.Summary != nil {
		m.Scheduler = s.schedulerName()
	}

	results := make(map[int]dispatcher.Result)
	if report.Summary != nil {
		for _, r := range report.Summary.Results {
			results[r.Artifact.Index] = r
		}
	}

	for _, a := range report.Artifacts {
		entry := artifact.ManifestEntry{
			Index:   a.Index,
			JobName: a.JobName,
			Path:    a.Path,
			Values:  a.Values,
			Status:  artifact.StatusWritten,
		}
		if r, ok := results[a.Index]; ok {
			switch {
			case r.OK():
				entry.Status = artifact.StatusSubmitted
				entry.JobID = r.Submission.JobID
			case r.Attempts == 0:
				entry.Status = artifact.StatusSkipped
				entry.Error = r.Err.Error()
			default:
				entry.Status = artifact.StatusFailed
				entry.Error = r.Err.Error()
			}
		}
		m.Jobs = append(m.Jobs, entry)
	}
	return m
}

// builtins returns the variables every template can use.
func builtins(cfg *job.Config, jobName string, index int) map[string]any {
	return map[string]any{
		job.VarJobName:     jobName,
		job.VarLogfileName: filepath.Join(cfg.Logdir, jobName),
		job.VarLogdir:      cfg.Logdir,
		job.VarIndex:       index,
	}
}
