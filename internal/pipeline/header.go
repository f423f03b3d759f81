package pipeline

import (
	"fmt"
	"sbt/internal/options"
	"sbt/internal/render"
	"slices"
	"strings"
)

// headerTemplates holds the compiled option values that reference
// variables, keyed by option name.
type headerTemplates map[string]render.Template

func parseHeader(engine render.Engine, set options.Set) (headerTemplates, error) {
	h := headerTemplates{}
	for _, o := range set {
		s, ok := o.Value.(options.Scalar)
		if !ok || !options.Templated(s.Raw) {
			continue
		}
		tmpl, err := engine.Parse("slurm_options."+o.Name, s.Raw)
		if err != nil {
			return nil, fmt.Errorf("slurm_options.%s: %w", o.Name, err)
		}
		h[o.Name] = tmpl
	}
	return h, nil
}

// render returns a copy of set with templated values rendered against vars
// and checked like literal values.
func (h headerTemplates) render(set options.Set, vars map[string]any) (options.Set, error) {
	if len(h) == 0 {
		return set, nil
	}
	out := slices.Clone(set)
	for i, o := range out {
		tmpl, ok := h[o.Name]
		if !ok {
			continue
		}
		text, err := tmpl.Execute(vars)
		if err != nil {
			return nil, fmt.Errorf("slurm_options.%s: %w", o.Name, err)
		}
		text = strings.TrimSpace(text)
		if err := options.CheckScalar(o.Name, text); err != nil {
			return nil, fmt.Errorf("slurm_options.%s: %w", o.Name, err)
		}
		out[i].Value = options.Scalar{Raw: text}
	}
	return out, nil
}

// variables lists the variables referenced by templated option values.
func (h headerTemplates) variables() []string {
	var names []string
	for _, tmpl := range h {
		names = append(names, tmpl.Variables()...)
	}
	slices.Sort(names)
	return slices.Compact(names)
}
