// Package event implements the per-invocation event record (spec.md §4.7):
// the resolved key values, as-of date, cache parameters and latency
// staging chain threaded through a single data-node invocation.
package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/x2ee/c3/dpath"
	"github.com/x2ee/c3/interval"
	"github.com/x2ee/c3/types"
)

// ErrArity is raised when the number of raw key values does not match
// the number of argument fields at event resolution.
type ErrArity struct {
	Got, Want int
}

func (e *ErrArity) Error() string {
	return fmt.Sprintf("event: arity mismatch: got %d key values, want %d", e.Got, e.Want)
}

// CacheParams carries the effective force flag and interval for one
// invocation, resolved per spec.md §4.4 from either the caller's override
// or the cache's configured expiry.
type CacheParams struct {
	Force       bool
	Interval    interval.Interval
	HasInterval bool
}

// Stage is one named latency checkpoint appended to an event's timing
// chain.
type Stage struct {
	Name string
	At   time.Time
}

// Event captures a single invocation of a data node.
type Event struct {
	ID                string
	Timestamp         time.Time
	AsOfDate          time.Time
	Path              dpath.Path
	RawKeyValues      []string
	ResolvedKeyValues map[string]any
	Fields            []types.ArgField
	Params            CacheParams
	Stages            []Stage
}

// New builds an Event, resolving each raw string key value through its
// field's known type via the conversion matrix. asOf, if nil, defaults to
// clk.Now(), kept with its time of day.
func New(clk *interval.Clock, path dpath.Path, rawKeyValues []string, fields []types.ArgField, asOf *time.Time, params CacheParams, matrix *types.Matrix) (*Event, error) {
	if len(rawKeyValues) != len(fields) {
		return nil, &ErrArity{Got: len(rawKeyValues), Want: len(fields)}
	}

	now := clk.Now()
	effectiveAsOf := now
	if asOf != nil {
		effectiveAsOf = *asOf
	}

	resolved := make(map[string]any, len(fields))
	for i, f := range fields {
		v, err := matrix.Convert(rawKeyValues[i], types.Str, f.Type)
		if err != nil {
			return nil, fmt.Errorf("event: resolving field %q: %w", f.Name, err)
		}
		resolved[f.Name] = v
	}

	ev := &Event{
		ID:                uuid.NewString(),
		Timestamp:         now,
		AsOfDate:          effectiveAsOf,
		Path:              path,
		RawKeyValues:      append([]string(nil), rawKeyValues...),
		ResolvedKeyValues: resolved,
		Fields:            append([]types.ArgField(nil), fields...),
		Params:            params,
	}
	ev.Stage("created")
	return ev, nil
}

// Stage appends a named latency checkpoint, timestamped with the real wall
// time (time.Now()), not the simulated clock.
func (e *Event) Stage(name string) {
	e.Stages = append(e.Stages, Stage{Name: name, At: time.Now()})
}

// Duration returns the elapsed time between the first and last stage.
func (e *Event) Duration() time.Duration {
	if len(e.Stages) < 2 {
		return 0
	}
	return e.Stages[len(e.Stages)-1].At.Sub(e.Stages[0].At)
}

// KeyValues returns the resolved key values in field-declaration order,
// matching the argument list used to key the state store.
func (e *Event) KeyValues() []any {
	out := make([]any, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = e.ResolvedKeyValues[f.Name]
	}
	return out
}

// RawKeyFieldValues returns the raw string values of only the fields
// marked IsKey, in field-declaration order — the tuple a state store's
// key columns are keyed by, which may be a strict subset of the node's
// full argument list (spec.md §3: "the state store's key columns default
// to the compute's arguments unless the state config explicitly lists
// its own keys").
func (e *Event) RawKeyFieldValues() []string {
	var out []string
	for i, f := range e.Fields {
		if f.IsKey {
			out = append(out, e.RawKeyValues[i])
		}
	}
	return out
}
