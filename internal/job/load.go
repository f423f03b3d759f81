package job

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sbt/internal/apperrors"
	"sbt/internal/artifact"
	"sbt/internal/matrix"
	"sbt/internal/options"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads and validates the job document at path.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, apperrors.Configuration("config", fmt.Sprintf("resolve path %s: %v", path, err))
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Configuration("config", fmt.Sprintf("file %s does not exist", path))
		}
		return nil, apperrors.Configuration("config", fmt.Sprintf("read %s: %v", path, err))
	}
	return Parse(data, abs)
}

// Parse decodes a job document. path names the file the data came from; its
// directory anchors relative logdir and template_path values.
func Parse(data []byte, path string) (*Config, error) {
	var doc document
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, apperrors.Configuration("", fmt.Sprintf("parse %s: %v", filepath.Base(path), err))
	}
	if keys := unknownKeys(md); len(keys) > 0 {
		return nil, apperrors.Configuration(keys[0], fmt.Sprintf("unknown key(s): %s", strings.Join(keys, ", ")))
	}

	cfg := &Config{
		Name:           doc.Name,
		Path:           path,
		Shebang:        doc.Shebang,
		TemplateEngine: doc.TemplateEngine,
		Callback:       doc.Callback,
	}
	applyDefaults(cfg, path)

	baseDir := filepath.Dir(path)
	if doc.Logdir == "" {
		return nil, apperrors.Configuration("logdir", "logdir is required")
	}
	cfg.Logdir = resolvePath(baseDir, doc.Logdir)

	hasTemplate := md.IsDefined("template")
	hasTemplatePath := md.IsDefined("template_path")
	switch {
	case hasTemplate && hasTemplatePath:
		return nil, apperrors.Configuration("template", "template and template_path are mutually exclusive")
	case hasTemplate:
		cfg.Template = doc.Template
	case hasTemplatePath:
		cfg.TemplatePath = resolvePath(baseDir, doc.TemplatePath)
		src, err := os.ReadFile(cfg.TemplatePath)
		if err != nil {
			return nil, apperrors.Configuration("template_path", fmt.Sprintf("read template: %v", err))
		}
		cfg.Template = string(src)
	default:
		return nil, apperrors.Configuration("template", "one of template or template_path is required")
	}

	if cfg.Options, err = options.Decode(doc.SlurmOptions); err != nil {
		return nil, err
	}

	cfg.Defaults = doc.DefaultValues
	if cfg.Defaults == nil {
		cfg.Defaults = map[string]any{}
	}

	for _, name := range orderedKeys(md, "matrix", doc.Matrix) {
		values, ok := doc.Matrix[name].([]any)
		if !ok {
			return nil, apperrors.Configuration("matrix."+name, fmt.Sprintf("must be a list of values, got %T", doc.Matrix[name]))
		}
		cfg.Matrix = append(cfg.Matrix, matrix.Axis{Name: name, Values: values})
	}

	for _, name := range orderedKeys(md, "env_vars", doc.EnvVars) {
		v := doc.EnvVars[name]
		if !matrix.IsScalar(v) {
			return nil, apperrors.Configuration("env_vars."+name, fmt.Sprintf("must be a string, number or boolean, got %T", v))
		}
		cfg.Env = append(cfg.Env, artifact.EnvVar{Name: name, Value: matrix.FormatValue(v)})
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	slog.Debug("Loaded job document", "path", path, "name", cfg.Name, "combinations", cfg.Total())
	return cfg, nil
}

// Sections decoded into free-form maps. Their nested tables are validated
// by their own decoders, so toml reports them as undecoded.
var freeformSections = []string{"slurm_options", "default_values", "matrix", "env_vars"}

// unknownKeys lists undecoded keys outside the free-form sections.
func unknownKeys(md toml.MetaData) []string {
	var keys []string
	for _, k := range md.Undecoded() {
		if len(k) > 1 && slices.Contains(freeformSections, k[0]) {
			continue
		}
		keys = append(keys, k.String())
	}
	return keys
}

// applyDefaults sets default values for unspecified document fields.
func applyDefaults(cfg *Config, path string) {
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if cfg.Shebang == "" {
		cfg.Shebang = artifact.DefaultShebang
	}
	if cfg.TemplateEngine == "" {
		cfg.TemplateEngine = "text"
	}
}

// resolvePath expands environment variables and anchors relative paths at base.
func resolvePath(base, p string) string {
	p = os.ExpandEnv(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	return filepath.Clean(p)
}

// orderedKeys returns the keys of the table at prefix in document order.
// Keys the metadata does not report are appended sorted.
func orderedKeys(md toml.MetaData, prefix string, table map[string]any) []string {
	keys := make([]string, 0, len(table))
	seen := make(map[string]bool, len(table))
	for _, k := range md.Keys() {
		if len(k) != 2 || k[0] != prefix {
			continue
		}
		if _, ok := table[k[1]]; ok && !seen[k[1]] {
			keys = append(keys, k[1])
			seen[k[1]] = true
		}
	}

	var rest []string
	for k := range table {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}
