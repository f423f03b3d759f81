// Package apperrors provides structured application errors with exit code mapping.
package apperrors

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrConfiguration = errors.New("configuration error")
	ErrRender        = errors.New("render error")
	ErrWrite         = errors.New("write error")
	ErrSubmission    = errors.New("submission error")
)

// NoIndex marks errors that are not tied to a single combination.
const NoIndex = -1

// Error provides structured error with context.
type Error struct {
	Sentinel error          // Wrapped sentinel for errors.Is() classification
	Message  string         // Human-readable message
	Field    string         // For configuration errors (e.g., "matrix.alpha")
	Index    int            // Combination index, NoIndex when not applicable
	Values   map[string]any // Combination values at the time of failure
	Path     string         // Artifact path for write and submission errors
	Op       string         // Operation that failed (e.g., "artifact.mkdir")
	Cause    error          // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel and the cause so both match errors.Is().
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Configuration creates a configuration error for a specific field.
func Configuration(field, message string) error {
	msg := message
	if field != "" {
		msg = fmt.Sprintf("%s: %s", field, message)
	}
	return &Error{
		Sentinel: ErrConfiguration,
		Message:  msg,
		Field:    field,
		Index:    NoIndex,
	}
}

// Render creates a render error for the combination at index.
func Render(index int, values map[string]any, cause error) error {
	msg := fmt.Sprintf("render template: %v", cause)
	if index != NoIndex {
		msg = fmt.Sprintf("render combination %d (%s): %v", index, FormatValues(values), cause)
	}
	return &Error{
		Sentinel: ErrRender,
		Message:  msg,
		Index:    index,
		Values:   values,
		Cause:    cause,
	}
}

// Write creates a write error for an artifact path.
func Write(op, path string, cause error) error {
	return &Error{
		Sentinel: ErrWrite,
		Message:  fmt.Sprintf("%s %s: %v", op, path, cause),
		Index:    NoIndex,
		Path:     path,
		Op:       op,
		Cause:    cause,
	}
}

// Submission creates a submission error for a single artifact.
func Submission(index int, path string, cause error) error {
	return &Error{
		Sentinel: ErrSubmission,
		Message:  fmt.Sprintf("submit %s: %v", path, cause),
		Index:    index,
		Path:     path,
		Op:       "submit",
		Cause:    cause,
	}
}

// SubmissionSummary creates the aggregate error reported when some submissions failed.
func SubmissionSummary(failed, total int, indices []int) error {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = fmt.Sprint(idx)
	}
	return &Error{
		Sentinel: ErrSubmission,
		Message:  fmt.Sprintf("%d of %d submissions failed (indices %s)", failed, total, strings.Join(parts, ",")),
		Index:    NoIndex,
		Op:       "dispatch",
	}
}

// FormatValues renders a value map as sorted k=v pairs for messages.
func FormatValues(values map[string]any) string {
	if len(values) == 0 {
		return "no variables"
	}
	keys := slices.Sorted(maps.Keys(values))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, values[k])
	}
	return strings.Join(parts, " ")
}
