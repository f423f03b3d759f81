package options

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

var (
	freqLevels     = []string{"low", "medium", "high", "highm1"}
	freqGovernors  = []string{"Conservative", "OnDemand", "Performance", "PowerSave", "SchedUtil", "UserSpace"}
	distFirst      = []string{"*", "block", "cyclic", "arbitrary"}
	distLevels     = []string{"*", "block", "cyclic", "fcyclic"}
	gpuBindTypes   = []string{"closest", "map_gpu", "mask_gpu", "none", "per_task", "single"}
	signalOptions  = []string{"R", "B"}
	acctgDataTypes = []string{"task", "energy", "network", "filesystem"}
)

// CPUFreq requests a CPU frequency range and governor: p1[-p2][:p3].
type CPUFreq struct {
	Min      string
	Max      string
	Governor string
}

func (CPUFreq) Kind() Kind { return KindCPUFreq }

func (c CPUFreq) Text() (string, bool) {
	s := c.Min
	if c.Max != "" {
		s += "-" + c.Max
	}
	if c.Governor != "" {
		s += ":" + c.Governor
	}
	return s, true
}

func (CPUFreq) sealed() {}

// Signal asks the scheduler to signal the job before its end time:
// [R|B:]num@time.
type Signal struct {
	Num    string
	Time   int
	Option string
}

func (Signal) Kind() Kind { return KindSignal }

func (s Signal) Text() (string, bool) {
	prefix := ""
	if s.Option != "" {
		prefix = s.Option + ":"
	}
	return fmt.Sprintf("%s%s@%d", prefix, s.Num, s.Time), true
}

func (Signal) sealed() {}

// Distribution selects the task distribution across nodes, sockets and
// cores.
type Distribution struct {
	First  string
	Second string
	Third  string
	Pack   bool
}

func (Distribution) Kind() Kind { return KindDistribution }

func (d Distribution) Text() (string, bool) {
	s := d.First
	if d.Second != "" {
		s += ":" + d.Second
	}
	if d.Third != "" {
		s += ":" + d.Third
	}
	if d.Pack {
		s += ",Pack"
	}
	return s, true
}

func (Distribution) sealed() {}

// ClusterConstraint lists federation cluster features, negated with Exclude.
type ClusterConstraint struct {
	Features []string
	Exclude  bool
}

func (ClusterConstraint) Kind() Kind { return KindClusterConstraint }

func (c ClusterConstraint) Text() (string, bool) {
	s := strings.Join(c.Features, ",")
	if c.Exclude {
		s = "!" + s
	}
	return s, true
}

func (ClusterConstraint) sealed() {}

// GPUBind binds tasks to GPUs: [verbose,]type[:value].
type GPUBind struct {
	Type    string
	Value   string
	Verbose bool
}

func (GPUBind) Kind() Kind { return KindGPUBind }

func (g GPUBind) Text() (string, bool) {
	s := g.Type
	if g.Value != "" {
		s += ":" + g.Value
	}
	if g.Verbose {
		s = "verbose," + s
	}
	return s, true
}

func (GPUBind) sealed() {}

// GPUFreq requests GPU and GPU memory frequencies.
type GPUFreq struct {
	Value   string
	Memory  string
	Verbose bool
}

func (GPUFreq) Kind() Kind { return KindGPUFreq }

func (g GPUFreq) Text() (string, bool) {
	s := g.Value
	if g.Memory != "" {
		s += ",memory=" + g.Memory
	}
	if g.Verbose {
		s += ",verbose"
	}
	return s, true
}

func (GPUFreq) sealed() {}

// Switches caps the leaf switches of the allocation, optionally waiting at
// most MaxWait for them: count[@time].
type Switches struct {
	Count   int
	MaxWait *Duration
}

func (Switches) Kind() Kind { return KindSwitches }

func (s Switches) Text() (string, bool) {
	text := strconv.Itoa(s.Count)
	if s.MaxWait != nil {
		d, _ := s.MaxWait.Text()
		text += "@" + d
	}
	return text, true
}

func (Switches) sealed() {}

// Options keyed by name whose table form has its own layout.
var structuredDecoders = map[string]func(map[string]any) (Value, error){
	"cpu-freq":           decodeCPUFreq,
	"signal":             decodeSignal,
	"distribution":       decodeDistribution,
	"cluster-constraint": decodeClusterConstraint,
	"gpu-bind":           decodeGPUBind,
	"gpu-freq":           decodeGPUFreq,
	"switches":           decodeSwitches,
}

// Options whose list elements may be tables.
var tableItemDecoders = map[string]func(map[string]any) (string, error){
	"acctg-freq": decodeAcctgFreq,
	"licenses":   decodeLicense,
}

func decodeCPUFreq(t map[string]any) (Value, error) {
	if err := checkKeys(t, "p1", "p2", "p3"); err != nil {
		return nil, err
	}
	var c CPUFreq
	var err error
	if c.Min, err = levelOrInt(t, "p1", freqLevels, true); err != nil {
		return nil, err
	}
	if c.Max, err = levelOrInt(t, "p2", freqLevels[1:], false); err != nil {
		return nil, err
	}
	if c.Governor, err = enumField(t, "p3", freqGovernors, false); err != nil {
		return nil, err
	}
	if c.Max == "" && c.Governor != "" {
		return nil, fmt.Errorf("p3 requires p2")
	}
	return c, nil
}

func decodeSignal(t map[string]any) (Value, error) {
	if err := checkKeys(t, "num", "time", "option"); err != nil {
		return nil, err
	}
	s := Signal{Time: 60}
	switch v := t["num"].(type) {
	case int64:
		if v < 1 {
			return nil, fmt.Errorf("num must be positive")
		}
		s.Num = strconv.FormatInt(v, 10)
	case string:
		if v == "" {
			return nil, fmt.Errorf("num must not be empty")
		}
		s.Num = v
	case nil:
		return nil, fmt.Errorf("num is required")
	default:
		return nil, fmt.Errorf("num must be a signal name or number, got %T", v)
	}
	if _, ok := t["time"]; ok {
		n, err := intField(t, "time")
		if err != nil {
			return nil, err
		}
		if n < 0 || n > 65535 {
			return nil, fmt.Errorf("time must be between 0 and 65535 seconds")
		}
		s.Time = n
	}
	var err error
	if s.Option, err = enumField(t, "option", signalOptions, false); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeDistribution(t map[string]any) (Value, error) {
	if err := checkKeys(t, "first", "second", "third", "pack"); err != nil {
		return nil, err
	}
	var d Distribution
	switch v := t["first"].(type) {
	case int64:
		if v < 1 {
			return nil, fmt.Errorf("first plane size must be positive")
		}
		d.First = "plane=" + strconv.FormatInt(v, 10)
	case nil:
		return nil, fmt.Errorf("first is required")
	default:
		first, err := enumField(t, "first", distFirst, true)
		if err != nil {
			return nil, err
		}
		d.First = first
	}
	var err error
	if d.Second, err = enumField(t, "second", distLevels, false); err != nil {
		return nil, err
	}
	if d.Third, err = enumField(t, "third", distLevels, false); err != nil {
		return nil, err
	}
	if d.Second == "" && d.Third != "" {
		return nil, fmt.Errorf("third requires second")
	}
	if d.Pack, err = boolField(t, "pack"); err != nil {
		return nil, err
	}
	return d, nil
}

func decodeClusterConstraint(t map[string]any) (Value, error) {
	if err := checkKeys(t, "features", "exclude"); err != nil {
		return nil, err
	}
	raw, ok := t["features"].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("features must be a non-empty list of strings")
	}
	c := ClusterConstraint{Features: make([]string, len(raw))}
	for i, item := range raw {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("%s feature must be a non-empty string", humanize.Ordinal(i+1))
		}
		c.Features[i] = s
	}
	var err error
	if c.Exclude, err = boolField(t, "exclude"); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeGPUBind(t map[string]any) (Value, error) {
	if err := checkKeys(t, "type", "value", "verbose"); err != nil {
		return nil, err
	}
	var g GPUBind
	var err error
	if g.Type, err = enumField(t, "type", gpuBindTypes, true); err != nil {
		return nil, err
	}
	switch v := t["value"].(type) {
	case nil:
	case int64:
		g.Value = strconv.FormatInt(v, 10)
	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			s, err := scalarText(item)
			if err != nil {
				return nil, fmt.Errorf("%s element of value: %w", humanize.Ordinal(i+1), err)
			}
			items[i] = s
		}
		g.Value = strings.Join(items, ",")
	default:
		return nil, fmt.Errorf("value must be an integer or a list, got %T", v)
	}
	if g.Verbose, err = boolField(t, "verbose"); err != nil {
		return nil, err
	}
	return g, nil
}

func decodeGPUFreq(t map[string]any) (Value, error) {
	if err := checkKeys(t, "value", "memory", "verbose"); err != nil {
		return nil, err
	}
	var g GPUFreq
	var err error
	if g.Value, err = levelOrInt(t, "value", freqLevels, true); err != nil {
		return nil, err
	}
	if g.Memory, err = levelOrInt(t, "memory", freqLevels, false); err != nil {
		return nil, err
	}
	if g.Verbose, err = boolField(t, "verbose"); err != nil {
		return nil, err
	}
	return g, nil
}

func decodeSwitches(t map[string]any) (Value, error) {
	if err := checkKeys(t, "count", "max_time"); err != nil {
		return nil, err
	}
	if t["count"] == nil {
		return nil, fmt.Errorf("count is required")
	}
	count, err := intField(t, "count")
	if err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, fmt.Errorf("count must be positive")
	}
	s := Switches{Count: count}
	if raw, ok := t["max_time"]; ok {
		mt, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("max_time must be a {days, hours, minutes, seconds} table")
		}
		if err := checkKeys(mt, "days", "hours", "minutes", "seconds"); err != nil {
			return nil, fmt.Errorf("max_time: %w", err)
		}
		d, err := decodeDuration(mt)
		if err != nil {
			return nil, fmt.Errorf("max_time: %w", err)
		}
		dur := d.(Duration)
		s.MaxWait = &dur
	}
	return s, nil
}

// decodeAcctgFreq renders one accounting sampling interval, e.g. task=30.
func decodeAcctgFreq(t map[string]any) (string, error) {
	if err := checkKeys(t, "datatype", "interval"); err != nil {
		return "", err
	}
	datatype, err := enumField(t, "datatype", acctgDataTypes, true)
	if err != nil {
		return "", err
	}
	if t["interval"] == nil {
		return "", fmt.Errorf("interval is required")
	}
	interval, err := intField(t, "interval")
	if err != nil {
		return "", err
	}
	if interval < 0 {
		return "", fmt.Errorf("interval must not be negative")
	}
	return datatype + "=" + strconv.Itoa(interval), nil
}

// decodeLicense renders one license request: name[@db][:count].
func decodeLicense(t map[string]any) (string, error) {
	if err := checkKeys(t, "name", "db", "count"); err != nil {
		return "", err
	}
	name, ok := t["name"].(string)
	if !ok || name == "" {
		return "", fmt.Errorf("name must be a non-empty string")
	}
	s := name
	if raw, ok := t["db"]; ok {
		db, ok := raw.(string)
		if !ok {
			return "", fmt.Errorf("db must be a string")
		}
		if db != "" {
			s += "@" + db
		}
	}
	if _, ok := t["count"]; ok {
		n, err := intField(t, "count")
		if err != nil {
			return "", err
		}
		if n < 1 {
			return "", fmt.Errorf("count must be positive")
		}
		s += ":" + strconv.Itoa(n)
	}
	return s, nil
}

func checkKeys(t map[string]any, allowed ...string) error {
	var unknown []string
	for _, k := range slices.Sorted(maps.Keys(t)) {
		if !slices.Contains(allowed, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown key(s) %s; expected %s", strings.Join(unknown, ", "), strings.Join(allowed, ", "))
	}
	return nil
}

// enumField reads an optional string key restricted to allowed values.
func enumField(t map[string]any, key string, allowed []string, required bool) (string, error) {
	raw, ok := t[key]
	if !ok {
		if required {
			return "", fmt.Errorf("%s is required", key)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok || !slices.Contains(allowed, s) {
		return "", fmt.Errorf("%s must be one of %s, got %v", key, strings.Join(allowed, ", "), raw)
	}
	return s, nil
}

// levelOrInt reads a frequency given either in kilohertz or as a named level.
func levelOrInt(t map[string]any, key string, levels []string, required bool) (string, error) {
	raw, ok := t[key]
	if !ok {
		if required {
			return "", fmt.Errorf("%s is required", key)
		}
		return "", nil
	}
	if n, ok := raw.(int64); ok {
		if n < 1 {
			return "", fmt.Errorf("%s must be positive", key)
		}
		return strconv.FormatInt(n, 10), nil
	}
	return enumField(t, key, levels, required)
}

func boolField(t map[string]any, key string) (bool, error) {
	raw, ok := t[key]
	if !ok {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return b, nil
}
