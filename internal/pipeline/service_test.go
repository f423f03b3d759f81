package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sbt/internal/apperrors"
	"sbt/internal/artifact"
	"sbt/internal/job"
	"sbt/internal/observability"
	"sbt/internal/scheduler/slurm"
	"sbt/internal/testutil"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sweepDoc = `
name = "sweep"
logdir = "logs"
template = "python train.py --alpha {{ .alpha }} --beta {{ .beta }} --epochs {{ .epochs }}"

[slurm_options]
cpus_per_task = 4
time = { hours = 12 }

[default_values]
epochs = 10

[matrix]
beta = [0.1, 0.01, 0.001]
alpha = [2e-5, 5e-5, 8e-5]
`

// recordingScheduler accepts every script and remembers the order.
type recordingScheduler struct {
	mu    sync.Mutex
	paths []string
}

func (s *recordingScheduler) Name() string { return "recording" }

func (s *recordingScheduler) Submit(_ context.Context, path string) (*job.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
	return &job.Submission{JobID: fmt.Sprint(len(s.paths))}, nil
}

func (s *recordingScheduler) Ready(context.Context) error { return nil }
func (s *recordingScheduler) Close() error                { return nil }

func loadDoc(t *testing.T, content string) *job.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sweep.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	cfg, err := job.Load(path)
	require.NoError(t, err)
	return cfg
}

func slurmScheduler(t *testing.T, failOn string) (*slurm.Scheduler, string) {
	t.Helper()
	bin, log := testutil.CountingSbatch(t, 1000, failOn)
	s, err := slurm.New(slurm.Config{Command: []string{bin}, Timeout: 10 * time.Second})
	require.NoError(t, err)
	return s, log
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func fastConfig() Config {
	cfg := Config{}
	cfg.Dispatch.Backoff = time.Millisecond
	cfg.Dispatch.BackoffMax = time.Millisecond
	return cfg
}

func TestRun_SubmitsEveryCombinationInOrder(t *testing.T) {
	t.Parallel()
	cfg := loadDoc(t, sweepDoc)
	sched, log := slurmScheduler(t, "")

	metrics, err := observability.NewMetrics(context.Background(), cfg.Name)
	require.NoError(t, err)

	svc := NewService(sched, fastConfig(), metrics)
	report, err := svc.Run(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, report.Artifacts, 9)
	require.NotNil(t, report.Summary)
	assert.Equal(t, 9, report.Summary.Submitted)
	assert.NotEmpty(t, report.RunID)

	paths := make([]string, len(report.Artifacts))
	for i, a := range report.Artifacts {
		assert.Equal(t, i, a.Index)
		paths[i] = a.Path
		assert.FileExists(t, a.Path)
	}
	assert.Equal(t, paths, readLines(t, log), "sbatch is called once per script in index order")

	first := report.Artifacts[0]
	assert.Equal(t, "sweep-0-beta-0.1-alpha-2e-05", first.JobName)
	assert.Equal(t, map[string]any{"beta": 0.1, "alpha": 2e-5}, first.Values)
	assert.Equal(t, "sweep-8-beta-0.001-alpha-8e-05", report.Artifacts[8].JobName)
	assert.Equal(t, "1000", report.Summary.Results[0].Submission.JobID)
	assert.Equal(t, "1008", report.Summary.Results[8].Submission.JobID)

	content, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	assert.Equal(t, []string{
		"#!/bin/bash -l",
		"#SBATCH --cpus-per-task=4",
		"#SBATCH --error=" + filepath.Join(cfg.Logdir, "sweep-0-beta-0.1-alpha-2e-05.err"),
		"#SBATCH --job-name=sweep-0-beta-0.1-alpha-2e-05",
		"#SBATCH --output=" + filepath.Join(cfg.Logdir, "sweep-0-beta-0.1-alpha-2e-05.out"),
		"#SBATCH --time=12:00:00",
		"python train.py --alpha 2e-05 --beta 0.1 --epochs 10",
	}, lines)

	m, err := artifact.ReadManifest(report.Manifest)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, m.RunID)
	assert.Equal(t, "slurm", m.Scheduler)
	require.Len(t, m.Jobs, 9)
	for _, e := range m.Jobs {
		assert.Equal(t, artifact.StatusSubmitted, e.Status)
	}
	assert.Equal(t, "1004", m.Jobs[4].JobID)

	textfile := filepath.Join(t.TempDir(), "sbt.prom")
	require.NoError(t, metrics.WriteTextfile(textfile))
	prom, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "sbt_submissions_total")
}

func TestRun_PartialFailure(t *testing.T) {
	t.Parallel()
	cfg := loadDoc(t, sweepDoc)
	sched, log := slurmScheduler(t, "sweep-3-")

	report, err := NewService(sched, fastConfig(), nil).Run(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSubmission)
	assert.Equal(t, apperrors.ExitFailure, apperrors.ExitCode(err))
	assert.Equal(t, "1 of 9 submissions failed (indices 3)", err.Error())

	require.NotNil(t, report)
	assert.Equal(t, 8, report.Summary.Submitted)
	assert.Equal(t, []int{3}, report.Summary.FailedIndices)
	assert.Len(t, readLines(t, log), 9, "later jobs are still submitted")
	for _, a := range report.Artifacts {
		assert.FileExists(t, a.Path, "no rollback of written scripts")
	}

	m, err := artifact.ReadManifest(report.Manifest)
	require.NoError(t, err)
	assert.Equal(t, artifact.StatusFailed, m.Jobs[3].Status)
	assert.Contains(t, m.Jobs[3].Error, "Invalid account")
	assert.Equal(t, artifact.StatusSubmitted, m.Jobs[4].Status)
}

func TestRun_RenderErrorWritesNothing(t *testing.T) {
	t.Parallel()
	doc := strings.Replace(sweepDoc, "--epochs {{ .epochs }}", "--gamma {{ .gamma }}", 1)
	cfg := loadDoc(t, doc)
	sched := &recordingScheduler{}

	report, err := NewService(sched, fastConfig(), nil).Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, apperrors.ErrRender)
	assert.Equal(t, apperrors.ExitRender, apperrors.ExitCode(err))
	assert.Contains(t, err.Error(), "render combination 0")
	assert.Contains(t, err.Error(), "gamma")

	assert.Empty(t, sched.paths)
	assert.NoDirExists(t, cfg.Logdir)
}

func TestRun_TemplateParseError(t *testing.T) {
	t.Parallel()
	doc := strings.Replace(sweepDoc, "{{ .epochs }}", "{{ .epochs", 1)
	cfg := loadDoc(t, doc)

	_, err := NewService(&recordingScheduler{}, fastConfig(), nil).Run(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRender)
}

func TestRun_WriteError(t *testing.T) {
	t.Parallel()
	cfg := loadDoc(t, sweepDoc)
	// A file where the log directory should be.
	require.NoError(t, os.WriteFile(cfg.Logdir, []byte("x"), 0o644))
	sched := &recordingScheduler{}

	_, err := NewService(sched, fastConfig(), nil).Run(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrWrite)
	assert.Equal(t, apperrors.ExitWrite, apperrors.ExitCode(err))
	assert.Empty(t, sched.paths)
}

func TestRun_NoSubmit(t *testing.T) {
	t.Parallel()
	cfg := loadDoc(t, sweepDoc)
	rc := fastConfig()
	rc.NoSubmit = true

	report, err := NewService(nil, rc, nil).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, report.Summary)
	assert.Len(t, report.Artifacts, 9)

	m, err := artifact.ReadManifest(report.Manifest)
	require.NoError(t, err)
	assert.Empty(t, m.Scheduler)
	for _, e := range m.Jobs {
		assert.Equal(t, artifact.StatusWritten, e.Status)
	}
}

func TestRun_EmptyMatrix(t *testing.T) {
	t.Parallel()
	cfg := loadDoc(t, `
name = "single"
logdir = "out"
template = "echo {{ .SBT_JOB_NAME }} {{ .SBT_INDEX }} {{ .SBT_LOGFILE_NAME }}"
`)
	sched := &recordingScheduler{}

	report, err := NewService(sched, fastConfig(), nil).Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, report.Artifacts, 1)
	a := report.Artifacts[0]
	assert.Equal(t, "single-default", a.JobName)
	assert.Equal(t, filepath.Join(cfg.Logdir, "single-default.sh"), a.Path)
	assert.Equal(t, []string{a.Path}, sched.paths)

	content, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "echo single-default 0 "+filepath.Join(cfg.Logdir, "single-default")+"\n")
}

func TestRun_MatrixOverridesDefaults(t *testing.T) {
	t.Parallel()
	cfg := loadDoc(t, `
logdir = "logs"
template = "lr={{ .lr }} epochs={{ .epochs }}"

[default_values]
lr = 0.5
epochs = 3

[matrix]
lr = [0.1]
`)

	report, err := NewService(&recordingScheduler{}, fastConfig(), nil).Run(context.Background(), cfg)
	require.NoError(t, err)
	content, err := os.ReadFile(report.Artifacts[0].Path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "lr=0.1 epochs=3\n")
}

func TestRun_Callback(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var types []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event struct {
			Type string `json:"type"`
		}
		_ = json.NewDecoder(r.Body).Decode(&event)
		mu.Lock()
		types = append(types, event.Type)
		mu.Unlock()
	}))
	defer srv.Close()

	doc := sweepDoc + fmt.Sprintf(`
[callback]
url = %q
events = ["sbt.job.failed", "sbt.run.complete"]
`, srv.URL)
	cfg := loadDoc(t, doc)
	sched, _ := slurmScheduler(t, "sweep-5-")

	_, err := NewService(sched, fastConfig(), nil).Run(context.Background(), cfg)
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{job.EventTypeFailed, job.EventTypeComplete}, types)
}

func TestRun_CallbackFailureIgnored(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := loadDoc(t, sweepDoc+fmt.Sprintf("\n[callback]\nurl = %q\n", srv.URL))
	_, err := NewService(&recordingScheduler{}, fastConfig(), nil).Run(context.Background(), cfg)
	assert.NoError(t, err)
}

func TestRun_RepeatedRunsOverwrite(t *testing.T) {
	t.Parallel()
	cfg := loadDoc(t, sweepDoc)

	listDir := func() []string {
		entries, err := os.ReadDir(cfg.Logdir)
		require.NoError(t, err)
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		return names
	}
	paths := func(r *Report) []string {
		out := make([]string, len(r.Artifacts))
		for i, a := range r.Artifacts {
			out[i] = a.Path
		}
		return out
	}

	svc := NewService(&recordingScheduler{}, fastConfig(), nil)
	first, err := svc.Run(context.Background(), cfg)
	require.NoError(t, err)
	firstListing := listDir()
	firstContent, err := os.ReadFile(first.Artifacts[4].Path)
	require.NoError(t, err)

	second, err := svc.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, paths(first), paths(second))
	assert.Equal(t, first.Manifest, second.Manifest)
	assert.Equal(t, firstListing, listDir(), "files are overwritten, not duplicated")
	assert.Len(t, firstListing, 10, "nine scripts and one manifest")

	secondContent, err := os.ReadFile(second.Artifacts[4].Path)
	require.NoError(t, err)
	assert.Equal(t, string(firstContent), string(secondContent))

	m, err := artifact.ReadManifest(second.Manifest)
	require.NoError(t, err)
	assert.Equal(t, second.RunID, m.RunID)
}

func TestRun_TemplatedHeaderOptions(t *testing.T) {
	t.Parallel()
	cfg := loadDoc(t, `
name = "mem"
logdir = "logs"
template = "echo {{ .mem }}"

[slurm_options]
output = "{{ .SBT_LOGFILE_NAME }}.log"
mem = "{{ .mem }}"
partition = "gpu"

[matrix]
mem = ["4G", "8G"]
`)

	report, err := NewService(&recordingScheduler{}, fastConfig(), nil).Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, report.Artifacts, 2)

	content, err := os.ReadFile(report.Artifacts[1].Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	assert.Equal(t, []string{
		"#!/bin/bash -l",
		"#SBATCH --error=" + filepath.Join(cfg.Logdir, "mem-1-mem-8G.err"),
		"#SBATCH --job-name=mem-1-mem-8G",
		"#SBATCH --mem=8G",
		"#SBATCH --output=" + filepath.Join(cfg.Logdir, "mem-1-mem-8G") + ".log",
		"#SBATCH --partition=gpu",
		"echo 8G",
	}, lines)
}

func TestRun_TemplatedHeaderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		options string
		want    string
	}{
		{"invalid rendered size", `mem = "{{ .mem }}"`, `invalid size "lots"`},
		{"undefined variable", `account = "{{ .project }}"`, "project"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := loadDoc(t, `
logdir = "logs"
template = "true"

[slurm_options]
`+tt.options+`

[matrix]
mem = ["4G", "lots"]
`)
			sched := &recordingScheduler{}
			_, err := NewService(sched, fastConfig(), nil).Run(context.Background(), cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrRender)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, sched.paths)
			assert.NoDirExists(t, cfg.Logdir)
		})
	}
}

func TestRun_IntegralFloatsKeepFraction(t *testing.T) {
	t.Parallel()
	cfg := loadDoc(t, `
name = "scale"
logdir = "logs"
template = "run --scale {{ .scale }}"

[matrix]
scale = [1.0, 2.5]
`)

	report, err := NewService(&recordingScheduler{}, fastConfig(), nil).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "scale-0-scale-1.0", report.Artifacts[0].JobName)

	content, err := os.ReadFile(report.Artifacts[0].Path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "run --scale 1.0\n")
}
