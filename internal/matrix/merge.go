package matrix

import "maps"

// VariableSet is the full set of variables used to render one job.
type VariableSet map[string]any

// Merge returns a new set holding defaults overwritten by the combination.
// Neither input is modified, and keys are never removed.
func Merge(defaults map[string]any, c Combination) VariableSet {
	out := make(VariableSet, len(defaults)+len(c.Assignments))
	maps.Copy(out, defaults)
	for _, a := range c.Assignments {
		out[a.Name] = a.Value
	}
	return out
}

// With returns a copy of the set with extra variables added on top.
func (v VariableSet) With(extra map[string]any) VariableSet {
	out := maps.Clone(v)
	if out == nil {
		out = make(VariableSet, len(extra))
	}
	maps.Copy(out, extra)
	return out
}
