package options

import (
	"fmt"
	"maps"
	"regexp"
	"sbt/internal/apperrors"
	"slices"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/dustin/go-humanize"
)

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Options whose string values must parse as byte sizes.
var sizeOptions = map[string]bool{
	"mem":         true,
	"mem-per-cpu": true,
	"mem-per-gpu": true,
	"tmp":         true,
}

// Options whose list elements are not comma separated.
var listSeparators = map[string]string{
	"extra-node-info": ":",
	"nodes":           "-",
}

// Boolean options the scheduler expects as 0/1 instead of a bare flag.
var numericBools = map[string]bool{
	"wait-all-nodes": true,
}

var sizeUnits = []string{"K", "M", "G", "T"}

// Normalize converts an option key to its directive name: underscores
// become dashes.
func Normalize(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// Templated reports whether a scalar value references template variables.
// Such values are checked by CheckScalar once rendered.
func Templated(raw string) bool {
	return strings.Contains(raw, "{{") || strings.Contains(raw, "${") || strings.Contains(raw, "%{")
}

// CheckScalar validates a string value for the named option.
func CheckScalar(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("value must not be empty")
	}
	if strings.ContainsAny(raw, "\r\n") {
		return fmt.Errorf("value must be a single line")
	}
	if sizeOptions[name] {
		if _, err := units.RAMInBytes(raw); err != nil {
			return fmt.Errorf("invalid size %q: %v", raw, err)
		}
	}
	return nil
}

// Decode converts the raw [slurm_options] table into a Set. Boolean false
// options are dropped.
func Decode(raw map[string]any) (Set, error) {
	set := make(Set, 0, len(raw))
	origin := make(map[string]string, len(raw))

	for _, key := range slices.Sorted(maps.Keys(raw)) {
		field := "slurm_options." + key
		if !namePattern.MatchString(key) {
			return nil, apperrors.Configuration(field, "invalid option name")
		}
		name := Normalize(key)
		if prev, dup := origin[name]; dup {
			return nil, apperrors.Configuration(field, fmt.Sprintf("duplicates option %q", prev))
		}
		origin[name] = key

		v, keep, err := decodeValue(name, raw[key])
		if err != nil {
			return nil, apperrors.Configuration(field, err.Error())
		}
		if keep {
			set = append(set, Option{Name: name, Value: v})
		}
	}
	set.sort()
	return set, nil
}

func decodeValue(name string, raw any) (Value, bool, error) {
	switch v := raw.(type) {
	case bool:
		if numericBools[name] {
			if v {
				return Scalar{Raw: "1"}, true, nil
			}
			return Scalar{Raw: "0"}, true, nil
		}
		return Flag{}, v, nil
	case string:
		if !Templated(v) {
			if err := CheckScalar(name, v); err != nil {
				return nil, false, err
			}
		}
		return Scalar{Raw: v}, true, nil
	case int64:
		return Scalar{Raw: fmt.Sprint(v)}, true, nil
	case float64:
		return Scalar{Raw: fmt.Sprint(v)}, true, nil
	case time.Time:
		return Scalar{Raw: v.Format("2006-01-02T15:04:05")}, true, nil
	case []any:
		l, err := decodeList(name, v)
		return l, err == nil, err
	case map[string]any:
		val, err := decodeTable(name, v)
		return val, err == nil, err
	default:
		return nil, false, fmt.Errorf("unsupported value of type %T", raw)
	}
}

func decodeList(name string, items []any) (Value, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("list must not be empty")
	}
	out := make([]string, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case map[string]any:
			decodeItem, ok := tableItemDecoders[name]
			if !ok {
				return nil, fmt.Errorf("%s entry: tables are not allowed in this list", humanize.Ordinal(i+1))
			}
			s, err := decodeItem(v)
			if err != nil {
				return nil, fmt.Errorf("%s entry: %w", humanize.Ordinal(i+1), err)
			}
			out[i] = s
		case []any:
			parts := make([]string, len(v))
			for j, p := range v {
				s, err := scalarText(p)
				if err != nil {
					return nil, fmt.Errorf("%s element of %s entry: %w", humanize.Ordinal(j+1), humanize.Ordinal(i+1), err)
				}
				parts[j] = s
			}
			out[i] = strings.Join(parts, ":")
		default:
			s, err := scalarText(v)
			if err != nil {
				return nil, fmt.Errorf("%s entry: %w", humanize.Ordinal(i+1), err)
			}
			out[i] = s
		}
	}
	sep := listSeparators[name]
	if sep == "" {
		sep = ","
	}
	return List{Items: out, Sep: sep}, nil
}

func scalarText(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int64, float64, bool:
		return fmt.Sprint(val), nil
	default:
		return "", fmt.Errorf("must be a string, number or boolean, got %T", v)
	}
}

func decodeTable(name string, t map[string]any) (Value, error) {
	if decode, ok := structuredDecoders[name]; ok {
		return decode(t)
	}
	switch {
	case hasOnly(t, "size", "unit") && t["size"] != nil:
		return decodeSize(t)
	case hasOnly(t, "days", "hours", "minutes", "seconds") && len(t) > 0:
		return decodeDuration(t)
	case hasOnly(t, "values", "range", "max_parallel") && (t["values"] != nil || t["range"] != nil):
		return decodeArray(t)
	default:
		return nil, fmt.Errorf("unrecognised table with keys %s; expected {size, unit}, {days, hours, minutes, seconds} or {values|range, max_parallel}",
			strings.Join(slices.Sorted(maps.Keys(t)), ", "))
	}
}

func hasOnly(t map[string]any, allowed ...string) bool {
	for k := range t {
		if !slices.Contains(allowed, k) {
			return false
		}
	}
	return true
}

func decodeSize(t map[string]any) (Value, error) {
	amount, err := intField(t, "size")
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("size must be positive")
	}
	unit := "M"
	if raw, ok := t["unit"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("unit must be a string")
		}
		unit = strings.ToUpper(s)
	}
	if !slices.Contains(sizeUnits, unit) {
		return nil, fmt.Errorf("unit must be one of %s, got %q", strings.Join(sizeUnits, ", "), unit)
	}
	return Size{Amount: int64(amount), Unit: unit}, nil
}

func decodeDuration(t map[string]any) (Value, error) {
	var d Duration
	fields := []struct {
		key string
		dst *int
	}{
		{"days", &d.Days},
		{"hours", &d.Hours},
		{"minutes", &d.Minutes},
		{"seconds", &d.Seconds},
	}
	for _, f := range fields {
		key, dst := f.key, f.dst
		if _, ok := t[key]; !ok {
			continue
		}
		n, err := intField(t, key)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("%s must not be negative", key)
		}
		*dst = n
	}
	if d.TotalSeconds() == 0 {
		return nil, fmt.Errorf("duration must be greater than zero")
	}
	return d, nil
}

func decodeArray(t map[string]any) (Value, error) {
	var a Array
	if t["values"] != nil && t["range"] != nil {
		return nil, fmt.Errorf("values and range are mutually exclusive")
	}
	if raw, ok := t["max_parallel"]; ok {
		n, err := toInt(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("max_parallel must be a positive integer")
		}
		a.MaxParallel = n
	}

	if raw, ok := t["values"]; ok {
		ints, err := intList(raw, "values")
		if err != nil {
			return nil, err
		}
		if len(ints) == 0 {
			return nil, fmt.Errorf("values must not be empty")
		}
		a.Indices = ints
		return a, nil
	}

	r, err := intList(t["range"], "range")
	if err != nil {
		return nil, err
	}
	if len(r) != 2 && len(r) != 3 {
		return nil, fmt.Errorf("range must be [start, end] or [start, end, step]")
	}
	a.Start, a.End = r[0], r[1]
	if a.End < a.Start {
		return nil, fmt.Errorf("range end %d is before start %d", a.End, a.Start)
	}
	if len(r) == 3 {
		if r[2] < 1 {
			return nil, fmt.Errorf("range step must be positive")
		}
		a.Step = r[2]
	}
	return a, nil
}

func intField(t map[string]any, key string) (int, error) {
	n, err := toInt(t[key])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func intList(raw any, key string) ([]int, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a list of integers", key)
	}
	out := make([]int, len(items))
	for i, item := range items {
		n, err := toInt(item)
		if err != nil {
			return nil, fmt.Errorf("%s element of %s: %w", humanize.Ordinal(i+1), key, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("%s element of %s must not be negative", humanize.Ordinal(i+1), key)
		}
		out[i] = n
	}
	return out, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("must be an integer, got %T", v)
	}
}
