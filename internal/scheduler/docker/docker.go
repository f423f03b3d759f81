// Package docker implements the job.Scheduler interface using the Docker API.
// Scripts run detached in a container on the local daemon, which makes it
// possible to exercise a matrix without a cluster.
package docker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sbt/internal/job"
	"sbt/internal/shell"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
)

// Name of this scheduler.
const Name = "docker"

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// Scheduler implements job.Scheduler using Docker.
type Scheduler struct {
	engine engine
	cfg    Config
	logger *slog.Logger
}

// New creates a docker scheduler connected to the daemon from the environment.
func New(cfg Config) (*Scheduler, error) {
	e, err := newAPIEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return newWithEngine(e, cfg), nil
}

func newWithEngine(e engine, cfg Config) *Scheduler {
	if cfg.Image == "" {
		cfg.Image = "ubuntu:24.04"
	}
	return &Scheduler{
		engine: e,
		cfg:    cfg,
		logger: slog.With("component", "docker", "image", cfg.Image),
	}
}

// Name returns the scheduler name.
func (s *Scheduler) Name() string { return Name }

// Ready checks if the Docker daemon is reachable.
func (s *Scheduler) Ready(ctx context.Context) error {
	return s.engine.Ping(ctx)
}

// Close releases the Docker client. Running containers are NOT stopped.
func (s *Scheduler) Close() error {
	return s.engine.Close()
}

// Submit starts a detached container running the script with bash. The
// script directory is bind-mounted at the same path; stdout and stderr go to
// <script>.out and <script>.err. A container left over from an earlier run
// of the same job is replaced.
func (s *Scheduler) Submit(ctx context.Context, path string) (*job.Submission, error) {
	dir := filepath.Dir(path)
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	jobName := filepath.Base(stem)
	name := containerName(jobName)

	if err := s.engine.EnsureImage(ctx, s.cfg.Image); err != nil {
		return nil, submitError("pull image", err)
	}

	_ = s.engine.Remove(ctx, name)

	spec := containerSpec{
		Name:       name,
		Image:      s.cfg.Image,
		Cmd:        []string{"/bin/bash", "-c", fmt.Sprintf("exec /bin/bash %s > %s 2> %s", shell.Quote(path), shell.Quote(stem+".out"), shell.Quote(stem+".err"))},
		WorkingDir: dir,
		Labels: map[string]string{
			"sbt.job":    jobName,
			"managed-by": "sbt",
		},
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: dir,
				Target: dir,
			},
		},
		Resources: container.Resources{
			NanoCPUs: int64(s.cfg.CPU * 1e9),
			Memory:   s.cfg.Memory,
		},
		ExtraHosts: s.cfg.ExtraHosts,
	}

	id, err := s.engine.Create(ctx, spec)
	if err != nil {
		return nil, submitError("create container", err)
	}
	if err := s.engine.Start(ctx, id); err != nil {
		_ = s.engine.Remove(ctx, id)
		return nil, submitError("start container", err)
	}

	shortID := id
	if len(shortID) > 12 {
		shortID = shortID[:12]
	}
	s.logger.Debug("Container started", "container", name, "id", shortID)
	return &job.Submission{JobID: shortID, Output: "started container " + name}, nil
}

func submitError(op string, err error) error {
	return &job.SubmitError{
		ExitCode:  -1,
		Transient: client.IsErrConnectionFailed(err),
		Err:       fmt.Errorf("%s: %w", op, err),
	}
}

func containerName(jobName string) string {
	return "sbt-" + invalidNameChars.ReplaceAllString(jobName, "_")
}
