package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sbt/internal/apperrors"
	"sbt/internal/config"
	"sbt/internal/health"
	"sbt/internal/job"
	"sbt/internal/pipeline"
	"sbt/internal/scheduler/docker"
	"sbt/internal/scheduler/slurm"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

// checkOptions defines flags for the check command.
type checkOptions struct {
	tool *config.ToolConfig

	overrides []string
	scheduler string

	newScheduler schedulerFactory
}

func (o *checkOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&o.overrides, "set", nil, "override a default value (key=value, repeatable)")
	cmd.Flags().StringVar(&o.scheduler, "scheduler", o.tool.Scheduler, "submission backend: slurm or docker")
}

func (o *checkOptions) validate() error {
	if !slices.Contains([]string{slurm.Name, docker.Name}, o.scheduler) {
		return apperrors.Configuration("scheduler", fmt.Sprintf("unknown scheduler %q (want %q or %q)", o.scheduler, slurm.Name, docker.Name))
	}
	return nil
}

// run loads the document and checks everything a run depends on without
// writing scripts or submitting.
func (o *checkOptions) run(ctx context.Context, cmd *cobra.Command, path string) error {
	cfg, err := job.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.ApplyOverrides(o.overrides); err != nil {
		return err
	}

	checker := health.NewChecker(o.tool.CallbackTimeout)
	checker.Add(health.Check{
		Name:     "render",
		Critical: true,
		Run: func(ctx context.Context) error {
			_, err := pipeline.NewService(nil, pipeline.Config{NoSubmit: true}, nil).Render(ctx, cfg)
			return err
		},
	})
	checker.Add(variablesCheck(cfg))
	checker.Add(health.WritableDirCheck("logdir", cfg.Logdir))

	sched, err := o.newScheduler(o.scheduler, false)
	if err != nil {
		checker.Add(health.Check{
			Name:     "scheduler",
			Critical: true,
			Run:      func(context.Context) error { return err },
		})
	} else {
		defer sched.Close()
		checker.Add(health.SchedulerCheck(o.scheduler, sched))
	}

	if cfg.Callback != nil {
		checker.Add(health.Check{
			Name: "callback",
			Run: func(context.Context) error {
				if cfg.Callback.Key == "" && o.tool.CallbackKey == "" {
					return errors.New("no signing key configured, events are sent unsigned")
				}
				return nil
			},
		})
	}

	response := checker.Run(ctx)
	printCheck(cmd.OutOrStdout(), cfg, response)
	if err := response.Err(); err != nil {
		return fmt.Errorf("preflight failed: %w", err)
	}
	return nil
}

// variablesCheck reports variables the templates reference without a value
// and values no template uses.
func variablesCheck(cfg *job.Config) health.Check {
	return health.Check{
		Name: "variables",
		Run: func(context.Context) error {
			usage, err := pipeline.Variables(cfg)
			if err != nil {
				return err
			}
			var problems []string
			if len(usage.Missing) > 0 {
				problems = append(problems, "referenced but not given: "+strings.Join(usage.Missing, ", "))
			}
			if len(usage.Unused) > 0 {
				problems = append(problems, "given but unused: "+strings.Join(usage.Unused, ", "))
			}
			if len(problems) > 0 {
				return errors.New(strings.Join(problems, "; "))
			}
			return nil
		},
	}
}

func printCheck(w io.Writer, cfg *job.Config, response *health.Response) {
	headingColor.Fprintf(w, "%s: %d combination(s), %s\n", cfg.Name, cfg.Total(), response.Status)
	for _, c := range response.Checks {
		switch c.Status {
		case health.StatusHealthy:
			okColor.Fprintf(w, "  %-9s", "ok")
			fmt.Fprintf(w, " %s\n", c.Name)
		default:
			failColor.Fprintf(w, "  %-9s", "fail")
			fmt.Fprintf(w, " %s: %s\n", c.Name, c.Message)
		}
	}
}

// newCmdCheck creates the check command.
func newCmdCheck(tool *config.ToolConfig, factory schedulerFactory) *cobra.Command {
	o := &checkOptions{tool: tool, newScheduler: factory}

	command := &cobra.Command{
		Use:   "check [flags] CONFIG",
		Short: "Validate a job document and check the scheduler and log directory",
		Args:  exactlyOneConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.validate(); err != nil {
				return err
			}
			return o.run(cmd.Context(), cmd, args[0])
		},
	}

	o.addFlags(command)
	return command
}
