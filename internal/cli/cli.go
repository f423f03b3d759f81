// Package cli implements the sbt command.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sbt/internal/apperrors"
	"sbt/internal/config"
	"sbt/internal/job"
	"sbt/internal/observability"
	"sbt/internal/pipeline"
	"sbt/internal/scheduler/docker"
	"sbt/internal/scheduler/slurm"
	"slices"

	"github.com/spf13/cobra"
)

// schedulerFactory builds the submission backend for a run.
type schedulerFactory func(name string, dryRun bool) (job.Scheduler, error)

// options defines flags for the sbt command.
type options struct {
	tool *config.ToolConfig

	dryRun      bool
	noSubmit    bool
	overrides   []string
	scheduler   string
	metricsFile string

	newScheduler schedulerFactory
}

func newOptions(tool *config.ToolConfig) *options {
	return &options{tool: tool, newScheduler: newScheduler}
}

// addFlags binds the command flags. Environment settings provide the defaults.
func (o *options) addFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "ask the scheduler to validate the scripts without queueing them")
	cmd.Flags().BoolVar(&o.noSubmit, "no-submit", false, "write the scripts and manifest without submitting")
	cmd.Flags().StringArrayVar(&o.overrides, "set", nil, "override a default value (key=value, repeatable)")
	cmd.Flags().StringVar(&o.scheduler, "scheduler", o.tool.Scheduler, "submission backend: slurm or docker")
	cmd.Flags().StringVar(&o.metricsFile, "metrics-file", o.tool.MetricsFile, "write run metrics to this Prometheus textfile")
}

// validate checks that the flag combination is usable.
func (o *options) validate() error {
	if !slices.Contains([]string{slurm.Name, docker.Name}, o.scheduler) {
		return apperrors.Configuration("scheduler", fmt.Sprintf("unknown scheduler %q (want %q or %q)", o.scheduler, slurm.Name, docker.Name))
	}
	if o.dryRun && o.noSubmit {
		return apperrors.Configuration("dry-run", "--dry-run and --no-submit are mutually exclusive")
	}
	if o.dryRun && o.scheduler != slurm.Name {
		return apperrors.Configuration("dry-run", fmt.Sprintf("--dry-run is only supported by the %s scheduler", slurm.Name))
	}
	return nil
}

// run loads the document at path and executes the run.
func (o *options) run(ctx context.Context, cmd *cobra.Command, path string) error {
	cfg, err := job.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.ApplyOverrides(o.overrides); err != nil {
		return err
	}

	var metrics *observability.Metrics
	if o.metricsFile != "" {
		metrics, err = observability.NewMetrics(ctx, cfg.Name)
		if err != nil {
			return fmt.Errorf("create metrics: %w", err)
		}
		defer func() {
			if err := metrics.WriteTextfile(o.metricsFile); err != nil {
				slog.Warn("Failed to write metrics", "path", o.metricsFile, "error", err)
			}
			_ = metrics.Shutdown(context.Background())
		}()
	}

	var sched job.Scheduler
	if !o.noSubmit {
		sched, err = o.newScheduler(o.scheduler, o.dryRun)
		if err != nil {
			return err
		}
		defer sched.Close()
	}

	rc := pipeline.NewConfig(o.tool)
	rc.NoSubmit = o.noSubmit
	rc.DryRun = o.dryRun

	report, err := pipeline.NewService(sched, rc, metrics).Run(ctx, cfg)
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	return err
}

// NewCommand creates the sbt root command.
func NewCommand(tool *config.ToolConfig) *cobra.Command {
	return newCommand(newOptions(tool))
}

func newCommand(o *options) *cobra.Command {
	command := &cobra.Command{
		Use:   "sbt [flags] CONFIG",
		Short: "Generate and submit batch jobs for every combination of a parameter matrix",
		Long: `sbt reads a TOML job document, renders one batch script per combination of
its matrix into the log directory and submits them in order.`,
		Args:          exactlyOneConfig,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.validate(); err != nil {
				return err
			}
			return o.run(cmd.Context(), cmd, args[0])
		},
	}
	command.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.Configuration("", err.Error())
	})

	o.addFlags(command)
	command.AddCommand(newCmdCheck(o.tool, o.newScheduler))
	return command
}

// exactlyOneConfig accepts a single configuration file argument.
func exactlyOneConfig(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return apperrors.Configuration("", fmt.Sprintf("expected exactly one configuration file, got %d arguments", len(args)))
	}
	return nil
}

// newScheduler builds a scheduler from its environment configuration.
func newScheduler(name string, dryRun bool) (job.Scheduler, error) {
	switch name {
	case slurm.Name:
		cfg, err := slurm.LoadConfigFromEnv()
		if err != nil {
			return nil, apperrors.Configuration("SBT_SBATCH", err.Error())
		}
		cfg.DryRun = dryRun
		s, err := slurm.New(cfg)
		if err != nil {
			return nil, apperrors.Configuration("SBT_SBATCH", err.Error())
		}
		return s, nil
	case docker.Name:
		s, err := docker.New(docker.LoadConfigFromEnv())
		if err != nil {
			return nil, fmt.Errorf("connect to docker: %w", err)
		}
		return s, nil
	default:
		return nil, apperrors.Configuration("scheduler", fmt.Sprintf("unknown scheduler %q", name))
	}
}
