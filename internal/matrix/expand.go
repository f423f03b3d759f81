package matrix

import (
	"fmt"
	"sbt/internal/apperrors"
)

// MaxCombinations caps the size of an expanded matrix.
const MaxCombinations = 100000

// Size returns the number of combinations the matrix expands to.
// An empty matrix has exactly one (empty) combination.
func (m Matrix) Size() int {
	n := 1
	for _, a := range m {
		n *= len(a.Values)
		if n == 0 || n > MaxCombinations {
			return n
		}
	}
	return n
}

// Validate checks that every axis has values and the product stays bounded.
func (m Matrix) Validate() error {
	seen := make(map[string]struct{}, len(m))
	for _, a := range m {
		field := "matrix." + a.Name
		if a.Name == "" {
			return apperrors.Configuration("matrix", "variable name must not be empty")
		}
		if _, dup := seen[a.Name]; dup {
			return apperrors.Configuration(field, "variable declared twice")
		}
		seen[a.Name] = struct{}{}
		if len(a.Values) == 0 {
			return apperrors.Configuration(field, "value list must not be empty")
		}
		for i, v := range a.Values {
			if !IsScalar(v) {
				return apperrors.Configuration(field, fmt.Sprintf("value %d must be a string, number, boolean or datetime, got %T", i, v))
			}
		}
	}
	if n := m.Size(); n > MaxCombinations {
		return apperrors.Configuration("matrix", fmt.Sprintf("expands to more than %d combinations", MaxCombinations))
	}
	return nil
}

// Expand returns the cartesian product of the matrix in odometer order:
// the last axis varies fastest, the first slowest. Combination i has Index i.
func Expand(m Matrix) ([]Combination, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	total := m.Size()
	combos := make([]Combination, total)
	pos := make([]int, len(m))

	for idx := range total {
		assignments := make([]Assignment, len(m))
		for i, a := range m {
			assignments[i] = Assignment{Name: a.Name, Value: a.Values[pos[i]]}
		}
		combos[idx] = Combination{Index: idx, Assignments: assignments}

		for i := len(m) - 1; i >= 0; i-- {
			pos[i]++
			if pos[i] < len(m[i].Values) {
				break
			}
			pos[i] = 0
		}
	}
	return combos, nil
}
