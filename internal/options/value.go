// Package options models scheduler options and renders them as #SBATCH
// directives.
package options

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the variant of a Value.
type Kind int

const (
	KindScalar Kind = iota
	KindFlag
	KindList
	KindSize
	KindDuration
	KindArray
	KindCPUFreq
	KindSignal
	KindDistribution
	KindClusterConstraint
	KindGPUBind
	KindGPUFreq
	KindSwitches
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindFlag:
		return "flag"
	case KindList:
		return "list"
	case KindSize:
		return "size"
	case KindDuration:
		return "duration"
	case KindArray:
		return "array"
	case KindCPUFreq:
		return "cpu-freq"
	case KindSignal:
		return "signal"
	case KindDistribution:
		return "distribution"
	case KindClusterConstraint:
		return "cluster-constraint"
	case KindGPUBind:
		return "gpu-bind"
	case KindGPUFreq:
		return "gpu-freq"
	case KindSwitches:
		return "switches"
	default:
		return "unknown"
	}
}

// Value is the value of one scheduler option. The set of implementations
// is closed; use a type switch or Kind to distinguish them.
type Value interface {
	Kind() Kind
	// Text renders the value part of the directive. ok is false for
	// options that are written without a value.
	Text() (text string, ok bool)
	sealed()
}

// Scalar is a single value written verbatim.
type Scalar struct {
	Raw string
}

func (Scalar) Kind() Kind             { return KindScalar }
func (s Scalar) Text() (string, bool) { return s.Raw, true }
func (Scalar) sealed()                {}

// Flag is an option written without a value, e.g. --exclusive.
type Flag struct{}

func (Flag) Kind() Kind           { return KindFlag }
func (Flag) Text() (string, bool) { return "", false }
func (Flag) sealed()              {}

// List is a sequence of values joined by Sep.
type List struct {
	Items []string
	Sep   string
}

func (List) Kind() Kind { return KindList }

func (l List) Text() (string, bool) {
	sep := l.Sep
	if sep == "" {
		sep = ","
	}
	return strings.Join(l.Items, sep), true
}

func (List) sealed() {}

// Size is a memory amount with a unit suffix (K, M, G or T).
type Size struct {
	Amount int64
	Unit   string
}

func (Size) Kind() Kind { return KindSize }

func (s Size) Text() (string, bool) {
	return strconv.FormatInt(s.Amount, 10) + s.Unit, true
}

func (Size) sealed() {}

// Duration is a wall-clock limit. Components may overflow; Text normalises.
type Duration struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

func (Duration) Kind() Kind { return KindDuration }

// TotalSeconds returns the duration in seconds.
func (d Duration) TotalSeconds() int {
	return ((d.Days*24+d.Hours)*60+d.Minutes)*60 + d.Seconds
}

// Text renders D-HH:MM:SS when the duration spans a day, HH:MM:SS otherwise.
func (d Duration) Text() (string, bool) {
	total := d.TotalSeconds()
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60
	if days > 0 {
		return fmt.Sprintf("%d-%02d:%02d:%02d", days, hours, minutes, seconds), true
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds), true
}

func (Duration) sealed() {}

// Array is a job array specification. Either Indices or a Start..End range
// (with optional Step) is set.
type Array struct {
	Indices     []int
	Start       int
	End         int
	Step        int
	MaxParallel int
}

func (Array) Kind() Kind { return KindArray }

func (a Array) Text() (string, bool) {
	var b strings.Builder
	if len(a.Indices) > 0 {
		for i, v := range a.Indices {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(v))
		}
	} else {
		fmt.Fprintf(&b, "%d-%d", a.Start, a.End)
		if a.Step > 1 {
			fmt.Fprintf(&b, ":%d", a.Step)
		}
	}
	if a.MaxParallel > 0 {
		fmt.Fprintf(&b, "%%%d", a.MaxParallel)
	}
	return b.String(), true
}

func (Array) sealed() {}
