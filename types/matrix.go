package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/x2ee/c3/interval"
)

// ConversionError is raised by Convert when a conversion is explicitly
// forbidden or fails to apply.
type ConversionError struct {
	From, To KnownType
	Reason   string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("types: cannot convert %s to %s: %s", e.From, e.To, e.Reason)
}

// Converter transforms a value of one known type into another.
type Converter func(v any) (any, error)

type pair struct {
	from, to KnownType
}

type cell struct {
	fn        Converter
	forbidden bool
}

// Matrix is the conversion matrix keyed by (from, to), where each cell is
// either a converter, explicitly forbidden, or unset (spec.md §4.2).
type Matrix struct {
	cells map[pair]cell
}

// NewMatrix returns an empty matrix.
func NewMatrix() *Matrix {
	return &Matrix{cells: make(map[pair]cell)}
}

// Register installs a converter for (from, to).
func (m *Matrix) Register(from, to KnownType, fn Converter) {
	m.cells[pair{from, to}] = cell{fn: fn}
}

// Forbid marks (from, to) as explicitly disallowed.
func (m *Matrix) Forbid(from, to KnownType) {
	m.cells[pair{from, to}] = cell{forbidden: true}
}

// Lookup returns the registered cell, if any, for (from, to).
func (m *Matrix) Lookup(from, to KnownType) (Converter, bool, bool) {
	c, ok := m.cells[pair{from, to}]
	if !ok {
		return nil, false, false
	}
	return c.fn, true, c.forbidden
}

// Convert applies the matrix's convert(v, to) rule: nil maps to nil;
// identity if from == to; else the matrix entry if one is registered
// (explicitly forbidden cells raise a ConversionError); else a built-in
// single-argument conversion is attempted; failures propagate as a typed
// ConversionError.
func (m *Matrix) Convert(v any, from, to KnownType) (any, error) {
	if v == nil {
		return nil, nil
	}
	if from == to {
		return v, nil
	}
	if fn, ok, forbidden := m.Lookup(from, to); ok {
		if forbidden {
			return nil, &ConversionError{From: from, To: to, Reason: "conversion explicitly forbidden"}
		}
		out, err := fn(v)
		if err != nil {
			return nil, &ConversionError{From: from, To: to, Reason: err.Error()}
		}
		return out, nil
	}
	out, err := builtinConvert(v, to)
	if err != nil {
		return nil, &ConversionError{From: from, To: to, Reason: err.Error()}
	}
	return out, nil
}

func builtinConvert(v any, to KnownType) (any, error) {
	switch to {
	case Str:
		return fmt.Sprintf("%v", v), nil
	case Int:
		s := fmt.Sprintf("%v", v)
		return strconv.ParseInt(s, 10, 64)
	case Float:
		s := fmt.Sprintf("%v", v)
		return strconv.ParseFloat(s, 64)
	case Bool:
		s := fmt.Sprintf("%v", v)
		return strconv.ParseBool(s)
	default:
		return nil, fmt.Errorf("no constructor available for target type %s", to)
	}
}

// DefaultMatrix returns the matrix populated with the conversions
// required by spec.md §4.2: str<->date, str<->datetime (ISO-8601),
// str->interval, dataframe<->dict, dataframe<->str, dict<->str.
func DefaultMatrix() *Matrix {
	m := NewMatrix()

	m.Register(Str, Date, func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return time.Parse("2006-01-02", s)
	})
	m.Register(Date, Str, func(v any) (any, error) {
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("expected time.Time, got %T", v)
		}
		return t.Format("2006-01-02"), nil
	})

	m.Register(Str, DateTime, func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return time.Parse(time.RFC3339, s)
	})
	m.Register(DateTime, Str, func(v any) (any, error) {
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("expected time.Time, got %T", v)
		}
		return t.Format(time.RFC3339), nil
	})

	m.Register(Str, Interval, func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return interval.Parse(s)
	})
	m.Register(Interval, Str, func(v any) (any, error) {
		iv, ok := v.(interval.Interval)
		if !ok {
			return nil, fmt.Errorf("expected interval.Interval, got %T", v)
		}
		return iv.String(), nil
	})

	m.Register(Frame, Str, func(v any) (any, error) {
		df, ok := v.(DataFrame)
		if !ok {
			return nil, fmt.Errorf("expected DataFrame, got %T", v)
		}
		return df.ToCSV()
	})
	m.Register(Str, Frame, func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return DataFrameFromCSV(s)
	})

	m.Register(Frame, "dict", func(v any) (any, error) {
		df, ok := v.(DataFrame)
		if !ok {
			return nil, fmt.Errorf("expected DataFrame, got %T", v)
		}
		return df.ToDict(), nil
	})
	m.Register("dict", Frame, func(v any) (any, error) {
		dict, ok := v.(map[string][]string)
		if !ok {
			return nil, fmt.Errorf("expected map[string][]string, got %T", v)
		}
		return DataFrameFromDict(dict), nil
	})

	m.Register("dict", Str, func(v any) (any, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	})
	m.Register(Str, "dict", func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, err
		}
		return out, nil
	})

	return m
}
