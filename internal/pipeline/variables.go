package pipeline

import (
	"maps"
	"sbt/internal/apperrors"
	"sbt/internal/job"
	"sbt/internal/render"
	"slices"
)

// VariableUsage compares the variables a document provides with the ones
// its template and option values reference. Built-in variables are never
// reported as unused.
type VariableUsage struct {
	Missing []string // referenced but not given
	Unused  []string // given but never referenced
}

// Variables parses the templates of cfg and reports how its variables are
// used. Nothing is rendered.
func Variables(cfg *job.Config) (VariableUsage, error) {
	engine, err := render.New(cfg.TemplateEngine)
	if err != nil {
		return VariableUsage{}, err
	}
	tmpl, err := engine.Parse(cfg.Name, cfg.Template)
	if err != nil {
		return VariableUsage{}, apperrors.Render(apperrors.NoIndex, nil, err)
	}
	header, err := parseHeader(engine, cfg.Options)
	if err != nil {
		return VariableUsage{}, apperrors.Render(apperrors.NoIndex, nil, err)
	}

	used := make(map[string]bool)
	for _, name := range append(tmpl.Variables(), header.variables()...) {
		used[name] = true
	}
	given := make(map[string]bool)
	for name := range cfg.Defaults {
		given[name] = true
	}
	for _, name := range cfg.Matrix.Names() {
		given[name] = true
	}

	builtin := builtins(cfg, "", 0)

	var usage VariableUsage
	for _, name := range slices.Sorted(maps.Keys(used)) {
		if _, ok := builtin[name]; !ok && !given[name] {
			usage.Missing = append(usage.Missing, name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(given)) {
		if !used[name] {
			usage.Unused = append(usage.Unused, name)
		}
	}
	return usage, nil
}
