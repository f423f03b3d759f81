package render

import (
	"bytes"
	"fmt"
	"maps"
	"sbt/internal/matrix"
	"slices"
	"strings"
	"text/template"
	"text/template/parse"
)

// textEngine renders Go text/template syntax, e.g. {{ .alpha }}.
type textEngine struct{}

func (textEngine) Name() string { return EngineText }

func (textEngine) Parse(name, src string) (Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, err
	}
	return &textTemplate{tmpl: tmpl}, nil
}

type textTemplate struct {
	tmpl *template.Template
}

// number prints a float the way it appears in job names. Comparisons in
// templates still see a float.
type number float64

func (n number) String() string { return matrix.FormatValue(float64(n)) }

func (t *textTemplate) Execute(vars map[string]any) (string, error) {
	data := make(map[string]any, len(vars))
	for k, v := range vars {
		if f, ok := v.(float64); ok {
			data[k] = number(f)
			continue
		}
		data[k] = v
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		if strings.Contains(err.Error(), "map has no entry for key") {
			return "", fmt.Errorf("%w: %v", ErrUndefined, err)
		}
		return "", err
	}
	return buf.String(), nil
}

func (t *textTemplate) Variables() []string {
	names := make(map[string]struct{})
	for _, tmpl := range t.tmpl.Templates() {
		if tmpl.Tree == nil {
			continue
		}
		// Templates declared with define get their dot from the caller.
		collectFields(tmpl.Tree.Root, tmpl.Name() == t.tmpl.Name(), names)
	}
	return slices.Sorted(maps.Keys(names))
}

// collectFields records the variables reached through the root dot.
// Inside range and with the dot is rebound, so only $.name counts there.
func collectFields(node parse.Node, rooted bool, names map[string]struct{}) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			collectFields(c, rooted, names)
		}
	case *parse.ActionNode:
		collectFields(n.Pipe, rooted, names)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, c := range n.Cmds {
			collectFields(c, rooted, names)
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			collectFields(arg, rooted, names)
		}
	case *parse.ChainNode:
		collectFields(n.Node, rooted, names)
	case *parse.FieldNode:
		if rooted {
			names[n.Ident[0]] = struct{}{}
		}
	case *parse.VariableNode:
		if len(n.Ident) > 1 && n.Ident[0] == "$" {
			names[n.Ident[1]] = struct{}{}
		}
	case *parse.IfNode:
		collectFields(n.Pipe, rooted, names)
		collectFields(n.List, rooted, names)
		collectFields(n.ElseList, rooted, names)
	case *parse.RangeNode:
		collectFields(n.Pipe, rooted, names)
		collectFields(n.List, false, names)
		collectFields(n.ElseList, rooted, names)
	case *parse.WithNode:
		collectFields(n.Pipe, rooted, names)
		collectFields(n.List, false, names)
		collectFields(n.ElseList, rooted, names)
	case *parse.TemplateNode:
		collectFields(n.Pipe, rooted, names)
	}
}
