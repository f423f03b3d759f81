// Package job defines the job document, its loading and validation, and the
// Scheduler interface used to submit generated scripts.
package job

import (
	"sbt/internal/artifact"
	"sbt/internal/matrix"
	"sbt/internal/options"
)

// Config is a validated job document. Paths are absolute.
type Config struct {
	Name           string
	Path           string // Configuration file the document was loaded from
	Logdir         string
	Shebang        string
	Template       string // Template source, read from TemplatePath when set
	TemplatePath   string
	TemplateEngine string
	Options        options.Set
	Defaults       map[string]any
	Matrix         matrix.Matrix
	Env            []artifact.EnvVar
	Callback       *Callback
}

// Callback represents callback configuration for a run.
type Callback struct {
	URL    string   `toml:"url"`
	Events []string `toml:"events"`
	Key    string   `toml:"key"` // HMAC signing key
}

// document mirrors the TOML layout of a job file.
type document struct {
	Name           string         `toml:"name"`
	Logdir         string         `toml:"logdir"`
	Shebang        string         `toml:"shebang"`
	Template       string         `toml:"template"`
	TemplatePath   string         `toml:"template_path"`
	TemplateEngine string         `toml:"template_engine"`
	SlurmOptions   map[string]any `toml:"slurm_options"`
	DefaultValues  map[string]any `toml:"default_values"`
	Matrix         map[string]any `toml:"matrix"`
	EnvVars        map[string]any `toml:"env_vars"`
	Callback       *Callback      `toml:"callback"`
}

// Total returns the number of jobs the document expands to.
func (c *Config) Total() int {
	return c.Matrix.Size()
}
