package types

import (
	"bytes"
	"encoding/json"
)

// Default carries an argument field's default value along with a
// nullability marker distinguishing "no default" from "default is the
// null value". The two must round-trip through JSON distinctly: absent
// default marshals as JSON null, default-is-null marshals as a
// single-element array containing null ([null]).
type Default struct {
	Present bool
	Value   any
}

// NoDefault is the zero Default: the field has no default value.
var NoDefault = Default{}

// DefaultValue wraps v as a present default, including nil (meaning the
// default is explicitly null).
func DefaultValue(v any) Default {
	return Default{Present: true, Value: v}
}

// MarshalJSON implements the null vs [null] round-trip described above.
func (d Default) MarshalJSON() ([]byte, error) {
	if !d.Present {
		return []byte("null"), nil
	}
	return json.Marshal([1]any{d.Value})
}

// UnmarshalJSON implements the inverse of MarshalJSON.
func (d *Default) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if string(trimmed) == "null" {
		*d = NoDefault
		return nil
	}
	var wrapped [1]any
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*d = Default{Present: true, Value: wrapped[0]}
	return nil
}

// ArgField is an argument tuple (name, known-type, default?, is_key).
type ArgField struct {
	Name    string   `json:"name"`
	Type    KnownType `json:"type"`
	Default Default  `json:"default"`
	IsKey   bool      `json:"is_key"`
}
