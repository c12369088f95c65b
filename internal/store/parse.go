package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parsed is the outcome of reading one loosely-typed value. When OK is false
// Value holds the default. Raw is nil when the value was absent.
type Parsed[T any] struct {
	Value T
	OK    bool
	Raw   any
}

// Malformed reports a value that was present but could not be read.
func (p Parsed[T]) Malformed() bool {
	return !p.OK && p.Raw != nil
}

// Issue records a field that fell back to its default during normalization.
type Issue struct {
	Key    string `json:"key"`
	Field  string `json:"field"`
	Raw    any    `json:"raw,omitempty"`
	Reason string `json:"reason"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("%s: %s", i.Key, i.Reason)
	}
	return fmt.Sprintf("%s.%s: %s (%v)", i.Key, i.Field, i.Reason, i.Raw)
}

// ParseNumber accepts JSON numbers, numeric strings ("1 250 000", "0,35") and
// falls back to def for anything else.
func ParseNumber(raw any, def float64) Parsed[float64] {
	switch v := raw.(type) {
	case nil:
		return Parsed[float64]{Value: def}
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Parsed[float64]{Value: def, Raw: raw}
		}
		return Parsed[float64]{Value: v, OK: true, Raw: raw}
	case int:
		return Parsed[float64]{Value: float64(v), OK: true, Raw: raw}
	case int64:
		return Parsed[float64]{Value: float64(v), OK: true, Raw: raw}
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Parsed[float64]{Value: def, Raw: raw}
		}
		return Parsed[float64]{Value: f, OK: true, Raw: raw}
	case string:
		s := cleanNumber(v)
		if s == "" {
			return Parsed[float64]{Value: def}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Parsed[float64]{Value: def, Raw: raw}
		}
		return Parsed[float64]{Value: f, OK: true, Raw: raw}
	default:
		return Parsed[float64]{Value: def, Raw: raw}
	}
}

// cleanNumber strips grouping spaces and turns a lone decimal comma into a dot.
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	return s
}

// ParseLevel reads an ordinal level. Numbers are truncated and clamped to 0..3;
// anything non-numeric is LevelNone.
func ParseLevel(raw any) Parsed[Level] {
	n := ParseNumber(raw, 0)
	if !n.OK {
		return Parsed[Level]{Value: LevelNone, Raw: n.Raw}
	}
	v := math.Max(float64(LevelNone), math.Min(float64(LevelHigh), n.Value))
	return Parsed[Level]{Value: ClampLevel(int(v)), OK: true, Raw: raw}
}

// ParseInt reads a whole number such as a year.
func ParseInt(raw any) Parsed[int] {
	n := ParseNumber(raw, 0)
	if !n.OK {
		return Parsed[int]{Raw: n.Raw}
	}
	if n.Value != math.Trunc(n.Value) || math.Abs(n.Value) > math.MaxInt32 {
		return Parsed[int]{Raw: raw}
	}
	return Parsed[int]{Value: int(n.Value), OK: true, Raw: raw}
}

func ParseBool(raw any, def bool) Parsed[bool] {
	switch v := raw.(type) {
	case nil:
		return Parsed[bool]{Value: def}
	case bool:
		return Parsed[bool]{Value: v, OK: true, Raw: raw}
	case float64:
		return Parsed[bool]{Value: v != 0, OK: true, Raw: raw}
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Parsed[bool]{Value: def, Raw: raw}
		}
		return Parsed[bool]{Value: f != 0, OK: true, Raw: raw}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "ja", "yes", "x":
			return Parsed[bool]{Value: true, OK: true, Raw: raw}
		case "false", "0", "nei", "no", "":
			return Parsed[bool]{Value: false, OK: true, Raw: raw}
		}
	}
	return Parsed[bool]{Value: def, Raw: raw}
}

// ParseString renders scalars as text. Whole floats print without decimals so a
// zone number read from a spreadsheet as 101.0 stays "101".
func ParseString(raw any) Parsed[string] {
	switch v := raw.(type) {
	case nil:
		return Parsed[string]{}
	case string:
		return Parsed[string]{Value: strings.TrimSpace(v), OK: true, Raw: raw}
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return Parsed[string]{Value: strconv.FormatInt(int64(v), 10), OK: true, Raw: raw}
		}
		return Parsed[string]{Value: strconv.FormatFloat(v, 'f', -1, 64), OK: true, Raw: raw}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Parsed[string]{Value: strconv.FormatInt(i, 10), OK: true, Raw: raw}
		}
		return ParseString(ParseNumber(v, 0).Value)
	case bool:
		return Parsed[string]{Value: strconv.FormatBool(v), OK: true, Raw: raw}
	default:
		return Parsed[string]{Raw: raw}
	}
}
