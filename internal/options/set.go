package options

import (
	"path/filepath"
	"slices"
	"strings"
)

// Prefix starts every directive line.
const Prefix = "#SBATCH"

// Option is a named scheduler option.
type Option struct {
	Name  string
	Value Value
}

// Directive renders the option as it appears after the prefix, e.g.
// "--time=12:00:00" or "--exclusive".
func (o Option) Directive() string {
	text, ok := o.Value.Text()
	if !ok {
		return "--" + o.Name
	}
	return "--" + o.Name + "=" + text
}

// Set is a collection of options ordered by name.
type Set []Option

func (s Set) sort() {
	slices.SortFunc(s, func(a, b Option) int { return strings.Compare(a.Name, b.Name) })
}

// Get returns the value of the named option.
func (s Set) Get(name string) (Value, bool) {
	for _, o := range s {
		if o.Name == name {
			return o.Value, true
		}
	}
	return nil, false
}

// WithJobDefaults returns a copy of the set with job-name, output and error
// filled in for a job unless already configured.
func (s Set) WithJobDefaults(jobName, logdir string) Set {
	out := slices.Clone(s)
	defaults := []Option{
		{Name: "job-name", Value: Scalar{Raw: jobName}},
		{Name: "output", Value: Scalar{Raw: filepath.Join(logdir, jobName+".out")}},
		{Name: "error", Value: Scalar{Raw: filepath.Join(logdir, jobName+".err")}},
	}
	for _, d := range defaults {
		if _, ok := out.Get(d.Name); !ok {
			out = append(out, d)
		}
	}
	out.sort()
	return out
}

// Header renders one directive line per option in name order.
func (s Set) Header() []string {
	lines := make([]string, len(s))
	for i, o := range s {
		lines[i] = Prefix + " " + o.Directive()
	}
	return lines
}
