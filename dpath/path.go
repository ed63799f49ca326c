// Package dpath implements the hierarchical path algebra used to name data
// nodes in the tree and the physical tables that back their cached state.
package dpath

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSegment is returned when a segment contains a forbidden
// character or is empty where a non-empty segment was required.
var ErrInvalidSegment = errors.New("dpath: invalid segment")

// Path is an immutable ordered sequence of non-empty segments. The root
// path is the empty sequence. Segments may not contain "/", "$" or
// whitespace.
type Path struct {
	segments []string
}

// Root is the empty path.
var Root = Path{}

// Parse splits str on "/", stripping leading and trailing slashes, and
// validates every resulting segment. Both "" and "/" yield the root path.
func Parse(str string) (Path, error) {
	trimmed := strings.Trim(str, "/")
	if trimmed == "" {
		return Root, nil
	}
	parts := strings.Split(trimmed, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if err := validateSegment(part); err != nil {
			return Path{}, err
		}
		segments = append(segments, part)
	}
	return Path{segments: segments}, nil
}

// MustParse parses str and panics on error. Intended for compile-time
// constant paths in tests and configuration defaults.
func MustParse(str string) Path {
	p, err := Parse(str)
	if err != nil {
		panic(err)
	}
	return p
}

func validateSegment(seg string) error {
	if seg == "" {
		return fmt.Errorf("%w: empty segment", ErrInvalidSegment)
	}
	if strings.ContainsAny(seg, "/$") {
		return fmt.Errorf("%w: %q contains a forbidden character", ErrInvalidSegment, seg)
	}
	for _, r := range seg {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return fmt.Errorf("%w: %q contains whitespace", ErrInvalidSegment, seg)
		}
	}
	return nil
}

// Append returns a new path with the given segments appended. It validates
// each new segment and returns an error rather than mutating the receiver.
func (p Path) Append(segs ...string) (Path, error) {
	out := make([]string, 0, len(p.segments)+len(segs))
	out = append(out, p.segments...)
	for _, s := range segs {
		if err := validateSegment(s); err != nil {
			return Path{}, err
		}
		out = append(out, s)
	}
	return Path{segments: out}, nil
}

// Parent returns the path with its last segment removed. Parent of the
// root is the root.
func (p Path) Parent() Path {
	if len(p.segments) == 0 {
		return Root
	}
	return Path{segments: append([]string(nil), p.segments[:len(p.segments)-1]...)}
}

// Parents returns the root-first list of proper ancestors of p, including
// the root itself. The path p is not included.
func (p Path) Parents() []Path {
	if len(p.segments) == 0 {
		return []Path{}
	}
	out := make([]Path, 0, len(p.segments))
	cur := Root
	out = append(out, cur)
	for i := 0; i < len(p.segments)-1; i++ {
		cur, _ = cur.Append(p.segments[i])
		out = append(out, cur)
	}
	return out
}

// Name returns the last segment, or the empty string for the root.
func (p Path) Name() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Segments returns a copy of the path's segment tuple.
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// IsRoot reports whether p is the root path.
func (p Path) IsRoot() bool {
	return len(p.segments) == 0
}

// Table projects the path to its physical table name by joining segments
// with "$".
func (p Path) Table() string {
	return strings.Join(p.segments, "$")
}

// String renders the path in "/"-joined form, matching Parse's input
// format so that Parse(p.String()) == p.
func (p Path) String() string {
	return strings.Join(p.segments, "/")
}

// Equal reports structural equality.
func (p Path) Equal(other Path) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// Compare provides the total lexicographic ordering over segment tuples
// required by spec: -1 if p < other, 0 if equal, 1 if p > other.
func (p Path) Compare(other Path) int {
	n := len(p.segments)
	if len(other.segments) < n {
		n = len(other.segments)
	}
	for i := 0; i < n; i++ {
		if p.segments[i] != other.segments[i] {
			if p.segments[i] < other.segments[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(p.segments) < len(other.segments):
		return -1
	case len(p.segments) > len(other.segments):
		return 1
	default:
		return 0
	}
}

// Hash returns a hash of the segment tuple. Path itself holds a slice and
// is therefore not comparable/usable as a Go map key directly; callers
// that need a map key should use String() or Table(), both of which are
// injective over valid paths. Hash is provided for set/bucket membership
// tests that don't need exact equality.
func (p Path) Hash() uint64 {
	var h uint64 = 14695981039346656037 // FNV-1a offset basis
	const prime uint64 = 1099511628211
	for _, seg := range p.segments {
		for i := 0; i < len(seg); i++ {
			h ^= uint64(seg[i])
			h *= prime
		}
		h ^= '/'
		h *= prime
	}
	return h
}
