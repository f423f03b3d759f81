package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sbt/internal/apperrors"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest entry statuses.
const (
	StatusWritten   = "written"
	StatusSubmitted = "submitted"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Manifest records one run: which scripts were generated and what the
// scheduler made of them.
type Manifest struct {
	RunID       string          `yaml:"run_id"`
	Config      string          `yaml:"config"`
	Scheduler   string          `yaml:"scheduler,omitempty"`
	DryRun      bool            `yaml:"dry_run,omitempty"`
	GeneratedAt time.Time       `yaml:"generated_at"`
	Jobs        []ManifestEntry `yaml:"jobs"`
}

// ManifestEntry describes one job of the run.
type ManifestEntry struct {
	Index   int            `yaml:"index"`
	JobName string         `yaml:"job_name"`
	Path    string         `yaml:"path"`
	Values  map[string]any `yaml:"values,omitempty"`
	JobID   string         `yaml:"job_id,omitempty"`
	Status  string         `yaml:"status"`
	Error   string         `yaml:"error,omitempty"`
}

// ManifestPath returns where the manifest for a run named name is stored.
func (w *Writer) ManifestPath(name string) string {
	return filepath.Join(w.dir, name+".manifest.yaml")
}

// WriteManifest stores m next to the job scripts and returns its path.
func (w *Writer) WriteManifest(name string, m *Manifest) (string, error) {
	path := w.ManifestPath(name)
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", apperrors.Write("create directory", w.dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", apperrors.Write("write file", path, err)
	}
	w.logger.Debug("Wrote manifest", "path", path, "jobs", len(m.Jobs))
	return path, nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}
