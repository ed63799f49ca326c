// Package logic implements the logic loader (spec.md §4.6), redesigned per
// spec.md §9 as a compile-time registry: textual identifiers are resolved
// against handlers registered ahead of time by this program's init()
// functions, rather than resolved dynamically via reflection or a
// module:symbol import at first use. Unknown identifiers are rejected the
// moment a configuration document is loaded.
package logic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownRef is returned when a global reference names no registered
// constructor or function.
var ErrUnknownRef = errors.New("logic: unknown reference")

// ErrNoRef is returned when a config carries no ref$ and no default ref
// was supplied by the caller.
var ErrNoRef = errors.New("logic: no ref$ and no default ref")

// Kind tags a Handler as synchronous or asynchronous (spec.md §9's sum
// type over {SyncHandler, AsyncHandler}).
type Kind int

const (
	Sync Kind = iota
	Async
)

// Handler is the opaque callable produced by resolving a global
// reference: either a function handler or a constructed, callable
// instance, tagged sync or async so that callers dispatch correctly
// (spec.md §5 — sync handlers must be offloaded to the blocking executor
// by the caller, never called in-line from the cooperative loop).
type Handler struct {
	Kind Kind
	Call func(ctx context.Context, args map[string]any) (any, error)
}

// Registration describes one compile-time-registered identifier: either a
// plain function handler (remaining config keys must be empty) or a
// class-like constructor (remaining config keys become constructor
// arguments).
type Registration struct {
	IsClass bool
	Build   func(remaining map[string]any) (Handler, error)
}

// Registry is the compile-time logic-loader table. It is safe for
// concurrent reads after all registrations have been installed at program
// start; Register is expected to be called only from init() functions.
type Registry struct {
	entries map[string]Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Registration)}
}

// ParseRef splits a global reference of the form "module:symbol". symbol
// may be empty; bare "module" (no colon) is equivalent to "module:".
// Empty input and multi-colon input are rejected.
func ParseRef(ref string) (module, symbol string, err error) {
	if ref == "" {
		return "", "", fmt.Errorf("logic: empty global reference")
	}
	parts := strings.Split(ref, ":")
	switch len(parts) {
	case 1:
		return parts[0], "", nil
	case 2:
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("logic: malformed global reference %q (multiple colons)", ref)
	}
}

// Register installs a registration under ref (its canonical "module:symbol"
// form). A bare module identifier normalizes to "module:" before lookup,
// so Register and Resolve agree regardless of which form config authors
// use.
func (r *Registry) Register(ref string, reg Registration) error {
	module, symbol, err := ParseRef(ref)
	if err != nil {
		return err
	}
	r.entries[module+":"+symbol] = reg
	return nil
}

// Resolve implements the loader policy of spec.md §4.6: cfg carries
// "ref$" (falling back to defaultRef when absent); the remaining keys
// (cfg minus "ref$") are validated against the registration's kind —
// empty for a function ref, passed through as constructor arguments for a
// class ref — and the resulting Handler is returned.
func (r *Registry) Resolve(cfg map[string]any, defaultRef string) (Handler, error) {
	ref, _ := cfg["ref$"].(string)
	if ref == "" {
		ref = defaultRef
	}
	if ref == "" {
		return Handler{}, ErrNoRef
	}

	module, symbol, err := ParseRef(ref)
	if err != nil {
		return Handler{}, err
	}
	key := module + ":" + symbol

	reg, ok := r.entries[key]
	if !ok {
		return Handler{}, fmt.Errorf("%w: %q", ErrUnknownRef, ref)
	}

	remaining := make(map[string]any, len(cfg))
	for k, v := range cfg {
		if k == "ref$" {
			continue
		}
		remaining[k] = v
	}

	if !reg.IsClass && len(remaining) > 0 {
		return Handler{}, fmt.Errorf("Unexpected entries %s", formatEntries(remaining))
	}

	return reg.Build(remaining)
}

// FormatUnexpectedEntries renders a map as a Python-dict-literal-like
// string, sorted by key, matching the engine's historical
// "Unexpected entries {'a': 3}" diagnostic. Exported so other
// configuration-driven packages (dnode's service config validation) can
// raise the same diagnostic shape without re-implementing it.
func FormatUnexpectedEntries(entries map[string]any) string {
	return formatEntries(entries)
}

// formatEntries renders a map as a Python-dict-literal-like string, sorted
// by key, matching the shape of the engine's historical error message
// ("Unexpected entries {'a': 3}") so operators migrating configuration
// documents see a familiar diagnostic.
func formatEntries(entries map[string]any) string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "'%s': %s", k, formatValue(entries[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return "'" + val + "'"
	default:
		return fmt.Sprintf("%v", val)
	}
}
