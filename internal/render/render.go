// Package render turns job templates into script bodies. Every engine is
// strict: a template that references a variable missing from the set fails.
package render

import (
	"errors"
	"fmt"
	"sbt/internal/apperrors"
)

// Engine names accepted in template_engine.
const (
	EngineText = "text"
	EngineHCL  = "hcl"
)

// ErrUndefined is matched by errors for references to unknown variables.
var ErrUndefined = errors.New("undefined variable")

// Engine parses templates of one syntax.
type Engine interface {
	// Name returns the engine name as used in configuration.
	Name() string

	// Parse compiles src. The name is used in error positions.
	Parse(name, src string) (Template, error)
}

// Template is a compiled template that can be executed many times.
type Template interface {
	// Execute renders the template with vars. It never returns partial text.
	Execute(vars map[string]any) (string, error)

	// Variables lists the top-level variables the template references,
	// sorted.
	Variables() []string
}

// New returns the engine with the given name. An empty name selects the
// text engine.
func New(name string) (Engine, error) {
	switch name {
	case "", EngineText:
		return textEngine{}, nil
	case EngineHCL:
		return hclEngine{}, nil
	default:
		return nil, apperrors.Configuration("template_engine", fmt.Sprintf("unknown engine %q (want %q or %q)", name, EngineText, EngineHCL))
	}
}
