// Package artifact names, composes and writes job scripts and the run
// manifest.
package artifact

import (
	"fmt"
	"sbt/internal/matrix"
	"strconv"
	"strings"
)

// maxLabelLen bounds the combination label embedded in job names. The
// index prefix keeps truncated names unique.
const maxLabelLen = 96

// Artifact is a job script written to disk.
type Artifact struct {
	Index   int
	JobName string
	Path    string
	Values  map[string]any
	Size    int
}

// Namer derives job names from combinations.
type Namer struct {
	base  string
	width int
}

// NewNamer returns a namer for a run of total combinations. Indices are
// zero-padded to the width of the largest index.
func NewNamer(base string, total int) Namer {
	width := len(strconv.Itoa(max(total-1, 0)))
	return Namer{base: base, width: width}
}

// JobName returns "<base>-default" for the empty combination and
// "<base>-<index>-<label>" otherwise.
func (n Namer) JobName(c matrix.Combination) string {
	if c.Empty() {
		return n.base + "-default"
	}
	return fmt.Sprintf("%s-%0*d-%s", n.base, n.width, c.Index, sanitize(c.Label()))
}

// sanitize keeps characters that are safe in file and job names.
func sanitize(label string) string {
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '+', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if len(out) > maxLabelLen {
		out = out[:maxLabelLen]
	}
	return out
}
