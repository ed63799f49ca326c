package main

import (
	"fmt"

	"github.com/x2ee/c3/interval"
)

// parseInvocationArgs splits the CLI's positional arguments (everything
// after the config-module, with flags already stripped by cobra/pflag)
// into the optional interval, the required path, and the key-value pairs,
// per spec.md §6: "<config-module> [-force] [<interval>] <path>
// [<key-value>…]". The interval token is optional and only a path is
// mandatory, so whether the first remaining token is an interval is
// decided by trying to parse it as one: a leading token that parses as an
// interval is always taken as the interval, so a single-segment path
// whose name looks like an interval token (e.g. `5d`) is read as the
// interval, not as the path.
func parseInvocationArgs(rest []string) (iv *interval.Interval, path string, keyValues []string, err error) {
	if len(rest) == 0 {
		return nil, "", nil, fmt.Errorf("c3: missing <path> argument")
	}

	if parsed, parseErr := interval.Parse(rest[0]); parseErr == nil {
		iv = &parsed
		rest = rest[1:]
	}

	if len(rest) == 0 {
		return nil, "", nil, fmt.Errorf("c3: missing <path> argument")
	}
	path = rest[0]
	keyValues = rest[1:]
	return iv, path, keyValues, nil
}
