// Package matrix expands variable matrices into ordered combinations and
// merges them with default values.
package matrix

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Axis is one matrix variable with its candidate values in declared order.
type Axis struct {
	Name   string
	Values []any
}

// Matrix is an ordered list of axes. The first axis varies slowest.
type Matrix []Axis

// Names returns the axis names in declared order.
func (m Matrix) Names() []string {
	names := make([]string, len(m))
	for i, a := range m {
		names[i] = a.Name
	}
	return names
}

// Assignment binds one matrix variable to one of its values.
type Assignment struct {
	Name  string
	Value any
}

// Combination is one point of the cartesian product.
type Combination struct {
	Index       int
	Assignments []Assignment
}

// Values returns the assignments as a new map.
func (c Combination) Values() map[string]any {
	out := make(map[string]any, len(c.Assignments))
	for _, a := range c.Assignments {
		out[a.Name] = a.Value
	}
	return out
}

// Empty reports whether the combination assigns no variables.
func (c Combination) Empty() bool {
	return len(c.Assignments) == 0
}

// Label joins assignments as name-value pairs in axis order, e.g.
// "alpha-2e-05-beta-0.1". Empty combinations have an empty label.
func (c Combination) Label() string {
	parts := make([]string, 0, 2*len(c.Assignments))
	for _, a := range c.Assignments {
		parts = append(parts, a.Name, FormatValue(a.Value))
	}
	return strings.Join(parts, "-")
}

// FormatValue renders a scalar the way it appears in labels and scripts.
// Floats use the shortest representation that round-trips and keep a
// fractional part, so 1.0 and 1 stay distinct.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return formatFloat(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// formatFloat switches to exponent form below 1e-4 and from 1e16 on.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// IsScalar reports whether v is a value a matrix axis or default may hold.
func IsScalar(v any) bool {
	switch v.(type) {
	case string, bool, int, int64, float64, time.Time:
		return true
	default:
		return false
	}
}
