// Package health runs preflight checks against what a run depends on.
package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ReadinessChecker is the interface for readiness checks.
// Implemented by schedulers to verify they can accept submissions.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check is a single named preflight check. A failing critical check makes the whole
// response unhealthy; a failing non-critical one only degrades it.
type Check struct {
	Name     string
	Critical bool
	Run      func(ctx context.Context) error
}

// CheckResult contains the result of a health check.
type CheckResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Response is the combined result of all checks, in registration order.
type Response struct {
	Status Status        `json:"status"`
	Checks []CheckResult `json:"checks,omitempty"`
}

// Checker runs checks with a per-check timeout.
type Checker struct {
	checks  []Check
	timeout time.Duration
}

// NewChecker creates a checker. Non-positive timeouts default to 5s.
func NewChecker(timeout time.Duration, checks ...Check) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{checks: checks, timeout: timeout}
}

// Add registers another check.
func (c *Checker) Add(check Check) {
	c.checks = append(c.checks, check)
}

// Run executes every check sequentially and aggregates the status.
func (c *Checker) Run(ctx context.Context) *Response {
	response := &Response{
		Status: StatusHealthy,
		Checks: make([]CheckResult, 0, len(c.checks)),
	}

	for _, check := range c.checks {
		result := c.run(ctx, check)
		response.Checks = append(response.Checks, result)

		if result.Status == StatusHealthy {
			continue
		}
		if check.Critical {
			response.Status = StatusUnhealthy
		} else if response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}
	return response
}

func (c *Checker) run(ctx context.Context, check Check) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := check.Run(ctx)
	result := CheckResult{Name: check.Name, Status: StatusHealthy, Duration: time.Since(start)}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}

// IsHealthy returns true if the overall status is healthy.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// Err returns an error naming the first critical failure, or nil.
func (r *Response) Err() error {
	if r.Status != StatusUnhealthy {
		return nil
	}
	var errs []error
	for _, c := range r.Checks {
		if c.Status == StatusUnhealthy {
			errs = append(errs, fmt.Errorf("%s: %s", c.Name, c.Message))
		}
	}
	return errors.Join(errs...)
}

// SchedulerCheck verifies the scheduler is ready to accept work.
func SchedulerCheck(name string, scheduler ReadinessChecker) Check {
	return Check{
		Name:     "scheduler",
		Critical: true,
		Run: func(ctx context.Context) error {
			if scheduler == nil {
				return fmt.Errorf("scheduler %s not configured", name)
			}
			return scheduler.Ready(ctx)
		},
	}
}

// WritableDirCheck verifies dir exists or can be created, and accepts files.
func WritableDirCheck(name, dir string) Check {
	return Check{
		Name:     name,
		Critical: true,
		Run: func(context.Context) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			f, err := os.CreateTemp(dir, ".sbt-check-*")
			if err != nil {
				return err
			}
			f.Close()
			return os.Remove(f.Name())
		},
	}
}
