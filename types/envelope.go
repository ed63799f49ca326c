package types

import (
	"encoding/json"
	"fmt"
)

// TypeRefKey is the envelope field identifying the value's known type.
const TypeRefKey = "type_ref$"

// envelope is the on-wire shape for non-trivial known types.
type envelope struct {
	TypeRef string          `json:"type_ref$"`
	Payload json.RawMessage `json:"payload"`
}

// Encode renders v (of known type kt) to its JSON representation. Scalars
// encode directly; non-trivial types (currently dataframe) are wrapped in
// an envelope carrying a type_ref$ tag plus a type-specific payload.
func Encode(v any, kt KnownType, m *Matrix) (json.RawMessage, error) {
	switch kt {
	case Frame:
		df, ok := v.(DataFrame)
		if !ok {
			return nil, fmt.Errorf("types: encode: expected DataFrame, got %T", v)
		}
		dict, err := m.Convert(df, Frame, "dict")
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(dict)
		if err != nil {
			return nil, fmt.Errorf("types: encode dataframe payload: %w", err)
		}
		env := envelope{TypeRef: string(Frame), Payload: payload}
		return json.Marshal(env)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("types: encode %s: %w", kt, err)
		}
		return data, nil
	}
}

// Decode inverts Encode. It detects an envelope by the presence of
// type_ref$ and dispatches reconstruction through the matrix; an unknown
// type_ref$ is a load error.
func Decode(data json.RawMessage, kt KnownType, m *Matrix) (any, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err == nil {
		if rawRef, ok := probe[TypeRefKey]; ok {
			var typeRef string
			if err := json.Unmarshal(rawRef, &typeRef); err != nil {
				return nil, fmt.Errorf("types: decode: malformed type_ref$: %w", err)
			}
			if _, err := TypeFor(typeRef); err != nil {
				return nil, fmt.Errorf("types: decode: unknown type_ref$ %q", typeRef)
			}
			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				return nil, fmt.Errorf("types: decode envelope: %w", err)
			}
			return decodePayload(env, m)
		}
	}

	switch kt {
	case Int:
		var out int64
		err := json.Unmarshal(data, &out)
		return out, err
	case Float:
		var out float64
		err := json.Unmarshal(data, &out)
		return out, err
	case Bool:
		var out bool
		err := json.Unmarshal(data, &out)
		return out, err
	case Str:
		var out string
		err := json.Unmarshal(data, &out)
		return out, err
	default:
		// No known-type tag applies (e.g. a compute result that is a plain
		// JSON object rather than one of the closed set's scalars):
		// decode structurally instead of forcing a scalar shape.
		var out any
		err := json.Unmarshal(data, &out)
		return out, err
	}
}

func decodePayload(env envelope, m *Matrix) (any, error) {
	switch KnownType(env.TypeRef) {
	case Frame:
		var dict map[string][]string
		if err := json.Unmarshal(env.Payload, &dict); err != nil {
			return nil, fmt.Errorf("types: decode dataframe payload: %w", err)
		}
		out, err := m.Convert(dict, "dict", Frame)
		if err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("types: decode: unsupported envelope type %q", env.TypeRef)
	}
}
