package docker

import (
	"context"
	"errors"
	"sbt/internal/job"
	"testing"

	"github.com/docker/docker/api/types/mount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	pulled   []string
	removed  []string
	created  []containerSpec
	started  []string
	pullErr  error
	startErr error
}

func (f *fakeEngine) EnsureImage(_ context.Context, ref string) error {
	f.pulled = append(f.pulled, ref)
	return f.pullErr
}

func (f *fakeEngine) Create(_ context.Context, spec containerSpec) (string, error) {
	f.created = append(f.created, spec)
	return "0123456789abcdef0123", nil
}

func (f *fakeEngine) Start(_ context.Context, id string) error {
	f.started = append(f.started, id)
	return f.startErr
}

func (f *fakeEngine) Remove(_ context.Context, nameOrID string) error {
	f.removed = append(f.removed, nameOrID)
	return nil
}

func (f *fakeEngine) Ping(context.Context) error { return nil }
func (f *fakeEngine) Close() error               { return nil }

func TestSubmit(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{}
	s := newWithEngine(fe, Config{Image: "python:3.12", CPU: 2, Memory: 512 * 1024 * 1024})

	sub, err := s.Submit(context.Background(), "/logs/sweep-1-opt-adam+w.sh")
	require.NoError(t, err)
	assert.Equal(t, "0123456789ab", sub.JobID)

	assert.Equal(t, []string{"python:3.12"}, fe.pulled)
	assert.Equal(t, []string{"sbt-sweep-1-opt-adam_w"}, fe.removed, "stale container is removed first")
	require.Len(t, fe.created, 1)

	spec := fe.created[0]
	assert.Equal(t, "sbt-sweep-1-opt-adam_w", spec.Name)
	assert.Equal(t, "python:3.12", spec.Image)
	assert.Equal(t, "/logs", spec.WorkingDir)
	assert.Equal(t, []string{"/bin/bash", "-c", "exec /bin/bash /logs/sweep-1-opt-adam+w.sh > /logs/sweep-1-opt-adam+w.out 2> /logs/sweep-1-opt-adam+w.err"}, spec.Cmd)
	assert.Equal(t, []mount.Mount{{Type: mount.TypeBind, Source: "/logs", Target: "/logs"}}, spec.Mounts)
	assert.Equal(t, int64(2e9), spec.Resources.NanoCPUs)
	assert.Equal(t, int64(512*1024*1024), spec.Resources.Memory)
	assert.Equal(t, "sweep-1-opt-adam+w", spec.Labels["sbt.job"])
	assert.Equal(t, []string{"0123456789abcdef0123"}, fe.started)
}

func TestSubmitStartFailureRemovesContainer(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{startErr: errors.New("port already allocated")}
	s := newWithEngine(fe, Config{})

	_, err := s.Submit(context.Background(), "/logs/job.sh")
	require.Error(t, err)

	var se *job.SubmitError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Error(), "start container")
	assert.False(t, se.Transient)
	assert.Equal(t, []string{"sbt-job", "0123456789abcdef0123"}, fe.removed)
}

func TestSubmitPullFailure(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{pullErr: errors.New("manifest unknown")}
	s := newWithEngine(fe, Config{Image: "missing:tag"})

	_, err := s.Submit(context.Background(), "/logs/job.sh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pull image")
	assert.Empty(t, fe.created)
}

func TestSubmitQuotesPaths(t *testing.T) {
	t.Parallel()

	fe := &fakeEngine{}
	s := newWithEngine(fe, Config{Image: "ubuntu:24.04"})

	_, err := s.Submit(context.Background(), "/scratch/my logs/sweep-0-default.sh")
	require.NoError(t, err)
	require.Len(t, fe.created, 1)
	assert.Equal(t, []string{"/bin/bash", "-c", "exec /bin/bash '/scratch/my logs/sweep-0-default.sh' > '/scratch/my logs/sweep-0-default.out' 2> '/scratch/my logs/sweep-0-default.err'"}, fe.created[0].Cmd)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SBT_DOCKER_IMAGE", "alpine:3")
	t.Setenv("SBT_DOCKER_EXTRA_HOSTS", "db:host-gateway, cache:10.0.0.2")
	t.Setenv("SBT_DOCKER_CPUS", "1.5")
	t.Setenv("SBT_DOCKER_MEMORY", "2g")

	cfg := LoadConfigFromEnv()
	assert.Equal(t, "alpine:3", cfg.Image)
	assert.Equal(t, []string{"db:host-gateway", "cache:10.0.0.2"}, cfg.ExtraHosts)
	assert.Equal(t, 1.5, cfg.CPU)
	assert.Equal(t, int64(2*1024*1024*1024), cfg.Memory)
}
