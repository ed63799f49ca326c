// Package types implements the closed set of known value types, their
// conversions, and the JSON envelope used to carry non-trivial values
// (currently dataframe) across the wire with a type tag.
package types

import (
	"fmt"
)

// KnownType is a tagged alias drawn from the closed set of value types the
// engine understands. Unknown type names are rejected at registry lookup.
type KnownType string

// The closed set of known types.
const (
	Int      KnownType = "int"
	Float    KnownType = "float"
	Str      KnownType = "str"
	Bool     KnownType = "bool"
	Date     KnownType = "date"
	DateTime KnownType = "datetime"
	PathType KnownType = "path"
	Interval KnownType = "interval"
	Frame    KnownType = "dataframe"
	Blob     KnownType = "blob"
)

var known = map[KnownType]bool{
	Int: true, Float: true, Str: true, Bool: true,
	Date: true, DateTime: true, PathType: true, Interval: true,
	Frame: true, Blob: true,
}

// TypeFor resolves a registered type name to its KnownType. It returns an
// error for any name outside the closed set.
func TypeFor(name string) (KnownType, error) {
	kt := KnownType(name)
	if !known[kt] {
		return "", fmt.Errorf("types: unknown type %q", name)
	}
	return kt, nil
}

// JSONSurrogate returns the JSON-friendly surrogate type name for kt, i.e.
// the shape a value of kt takes once encoded (e.g. date -> str,
// dataframe -> structured object). Scalars surrogate to themselves.
func JSONSurrogate(kt KnownType) string {
	switch kt {
	case Date, DateTime, PathType, Interval, Blob:
		return "str"
	case Frame:
		return "object"
	default:
		return string(kt)
	}
}
