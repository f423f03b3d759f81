package render

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

// hclEngine renders HCL native templates, e.g. ${alpha} and %{ if x }.
type hclEngine struct{}

func (hclEngine) Name() string { return EngineHCL }

func (hclEngine) Parse(name, src string) (Template, error) {
	expr, diags := hclsyntax.ParseTemplate([]byte(src), name, hcl.Pos{Line: 1, Column: 1, Byte: 0})
	if diags.HasErrors() {
		return nil, errors.New(diags.Error())
	}
	return &hclTemplate{expr: expr}, nil
}

var hclFunctions = map[string]function.Function{
	"upper":  stdlib.UpperFunc,
	"lower":  stdlib.LowerFunc,
	"format": stdlib.FormatFunc,
}

type hclTemplate struct {
	expr hclsyntax.Expression
}

func (t *hclTemplate) Execute(vars map[string]any) (string, error) {
	if missing := t.undefined(vars); len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUndefined, strings.Join(missing, ", "))
	}

	ctyVars := make(map[string]cty.Value, len(vars))
	for k, v := range vars {
		cv, err := toCtyValue(v)
		if err != nil {
			return "", fmt.Errorf("variable %s: %w", k, err)
		}
		ctyVars[k] = cv
	}

	val, diags := t.expr.Value(&hcl.EvalContext{Variables: ctyVars, Functions: hclFunctions})
	if diags.HasErrors() {
		return "", errors.New(diags.Error())
	}
	if val.IsNull() || !val.IsKnown() {
		return "", errors.New("template produced no value")
	}
	str, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", fmt.Errorf("template result is not text: %w", err)
	}
	return str.AsString(), nil
}

func (t *hclTemplate) Variables() []string {
	names := make(map[string]struct{})
	for _, traversal := range t.expr.Variables() {
		names[traversal.RootName()] = struct{}{}
	}
	return slices.Sorted(maps.Keys(names))
}

// undefined lists referenced root variables absent from vars, sorted.
func (t *hclTemplate) undefined(vars map[string]any) []string {
	missing := make(map[string]struct{})
	for _, traversal := range t.expr.Variables() {
		name := traversal.RootName()
		if _, ok := vars[name]; !ok {
			missing[name] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(missing))
}

func toCtyValue(v any) (cty.Value, error) {
	switch val := v.(type) {
	case nil:
		return cty.NullVal(cty.String), nil
	case time.Time:
		return cty.StringVal(val.Format(time.RFC3339)), nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}
