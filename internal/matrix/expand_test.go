package matrix

import (
	"errors"
	"sbt/internal/apperrors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sweep() Matrix {
	return Matrix{
		{Name: "alpha", Values: []any{2e-5, 5e-5, 8e-5}},
		{Name: "beta", Values: []any{0.1, 0.01, 0.001}},
	}
}

func TestExpandOrder(t *testing.T) {
	t.Parallel()

	combos, err := Expand(sweep())
	require.NoError(t, err)
	require.Len(t, combos, 9)

	assert.Equal(t, map[string]any{"alpha": 2e-5, "beta": 0.1}, combos[0].Values())
	assert.Equal(t, map[string]any{"alpha": 2e-5, "beta": 0.01}, combos[1].Values())
	assert.Equal(t, map[string]any{"alpha": 5e-5, "beta": 0.1}, combos[3].Values())
	assert.Equal(t, map[string]any{"alpha": 8e-5, "beta": 0.001}, combos[8].Values())

	for i, c := range combos {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, []string{"alpha", "beta"}, []string{c.Assignments[0].Name, c.Assignments[1].Name})
	}
}

func TestExpandDeterministic(t *testing.T) {
	t.Parallel()

	first, err := Expand(sweep())
	require.NoError(t, err)
	second, err := Expand(sweep())
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("expansion not deterministic (-first +second):\n%s", diff)
	}
}

func TestExpandDeclaredOrderMatters(t *testing.T) {
	t.Parallel()

	m := sweep()
	m[0], m[1] = m[1], m[0]
	combos, err := Expand(m)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"beta": 0.1, "alpha": 5e-5}, combos[1].Values())
	assert.Equal(t, "beta-0.1-alpha-5e-05", combos[1].Label())
}

func TestExpandEmptyMatrix(t *testing.T) {
	t.Parallel()

	for _, m := range []Matrix{nil, {}} {
		combos, err := Expand(m)
		require.NoError(t, err)
		require.Len(t, combos, 1)
		assert.Equal(t, 0, combos[0].Index)
		assert.True(t, combos[0].Empty())
		assert.Empty(t, combos[0].Values())
		assert.Equal(t, "", combos[0].Label())
	}
}

func TestExpandSize(t *testing.T) {
	t.Parallel()

	m := Matrix{
		{Name: "a", Values: []any{int64(1), int64(2)}},
		{Name: "b", Values: []any{"x", "y", "z"}},
		{Name: "c", Values: []any{true, false}},
		{Name: "d", Values: []any{"only"}},
	}
	combos, err := Expand(m)
	require.NoError(t, err)
	assert.Len(t, combos, 12)
	assert.Equal(t, 12, m.Size())

	seen := make(map[string]bool, len(combos))
	for _, c := range combos {
		label := c.Label()
		assert.False(t, seen[label], "duplicate combination %s", label)
		seen[label] = true
	}
}

func TestExpandErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		m     Matrix
		field string
	}{
		{
			name:  "empty value list",
			m:     Matrix{{Name: "alpha", Values: []any{1.0}}, {Name: "beta", Values: nil}},
			field: "matrix.beta",
		},
		{
			name:  "non scalar value",
			m:     Matrix{{Name: "alpha", Values: []any{[]any{1, 2}}}},
			field: "matrix.alpha",
		},
		{
			name:  "duplicate name",
			m:     Matrix{{Name: "a", Values: []any{1}}, {Name: "a", Values: []any{2}}},
			field: "matrix.a",
		},
		{
			name: "too many combinations",
			m: Matrix{
				{Name: "a", Values: ints(1000)},
				{Name: "b", Values: ints(1000)},
			},
			field: "matrix",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Expand(tt.m)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrConfiguration))

			var appErr *apperrors.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func ints(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = int64(i)
	}
	return out
}
