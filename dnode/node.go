// Package dnode implements the data-node tree (spec.md §4.5): parsing a
// nested configuration object into directory and data nodes, synthesising
// missing intermediate directories, and resolving each data node's four
// services (compute, state, cache, cron) with nearest-ancestor default
// inheritance.
package dnode

import (
	"context"
	"errors"
	"time"

	"github.com/x2ee/c3/cache"
	"github.com/x2ee/c3/common"
	"github.com/x2ee/c3/dpath"
	"github.com/x2ee/c3/event"
	"github.com/x2ee/c3/interval"
	"github.com/x2ee/c3/statestore"
	"github.com/x2ee/c3/types"
)

func logNonCachedInterval(path dpath.Path) {
	common.Logger.WithField("get_path", path.String()).Warning("Cannot set interval on non-cached source")
}

func logNonCachedForce(path dpath.Path) {
	common.Logger.WithField("get_path", path.String()).Warning("Non-cached source is always recomputed. Setting `force` has no impact")
}

var errNoStateForDistinctKeys = errors.New("dnode: get_distinct_keys on a non-cached node requires a state service")

// Node is the common interface of directory and data nodes.
type Node interface {
	Path() dpath.Path
}

// DirNode is a non-terminal tree node: it holds children and, optionally,
// a defaults block indexed by service name, inherited by descendant data
// nodes that don't override a given service wholesale.
type DirNode struct {
	path     dpath.Path
	defaults map[string]map[string]any
	children map[string]Node
}

func newDirNode(path dpath.Path) *DirNode {
	return &DirNode{path: path, children: make(map[string]Node)}
}

// Path implements Node.
func (d *DirNode) Path() dpath.Path { return d.path }

func (d *DirNode) add(n Node) {
	d.children[n.Path().Name()] = n
}

// Children returns the node's direct children.
func (d *DirNode) Children() map[string]Node {
	return d.children
}

// Compute is a data node's required service: the opaque handler that
// produces its value, together with the argument fields that define the
// node's key-value tuple.
type Compute struct {
	args    []types.ArgField
	call    func(ctx context.Context, args map[string]any) (any, error)
	isAsync bool
	pool    Offloader
}

// Args returns the compute's argument fields, which also serve as the
// data node's key-tuple shape and (absent an explicit override) the state
// store's key columns.
func (c *Compute) Args() []types.ArgField { return c.args }

// IsAsync reports whether the underlying handler was tagged async by the
// logic loader.
func (c *Compute) IsAsync() bool { return c.isAsync }

// Calculate invokes the compute handler for one event, resolving the
// handler's argument map from the event's resolved key values plus the
// event's as-of date.
func (c *Compute) Calculate(ctx context.Context, ev *event.Event) (any, error) {
	args := make(map[string]any, len(c.args)+1)
	args["as_of_date"] = ev.AsOfDate
	for _, f := range c.args {
		args[f.Name] = ev.ResolvedKeyValues[f.Name]
	}
	if c.isAsync || c.pool == nil {
		return c.call(ctx, args)
	}
	return offload(ctx, c.pool, func() (any, error) {
		return c.call(ctx, args)
	})
}

// CalculateFunc adapts Calculate to cache.ComputeFunc.
func (c *Compute) CalculateFunc() cache.ComputeFunc {
	return c.Calculate
}

// DataNode is a terminal tree node assembled from up to four services.
type DataNode struct {
	path      dpath.Path
	rawConfig map[string]any
	Compute   *Compute
	State     statestore.Store
	Cache     cache.Service
	Cron      *Cron
}

func newDataNode(path dpath.Path) *DataNode {
	return &DataNode{path: path}
}

// Path implements Node.
func (n *DataNode) Path() dpath.Path { return n.path }

// ArgFields returns the node's argument-field list, defined by its compute
// service (spec.md §3 invariant: "the argument fields of a data node are
// the argument list of its compute").
func (n *DataNode) ArgFields() []types.ArgField {
	return n.Compute.Args()
}

// Get resolves one invocation: if the node has no cache, it always calls
// compute and warns about a caller-supplied interval or force flag that
// can have no effect (spec.md §4.4's non-cached bypass, with the §9
// logger-method fix applied — a genuine "warning" level call, not the
// source's missing method name).
func (n *DataNode) Get(ctx context.Context, clk *interval.Clock, rawKeyValues []string, asOf *time.Time, iv *interval.Interval, force bool, matrix *types.Matrix, tracker *event.Tracker) (any, error) {
	params := event.CacheParams{Force: force}
	if iv != nil {
		params.Interval = *iv
		params.HasInterval = true
	}

	ev, err := event.New(clk, n.path, rawKeyValues, n.ArgFields(), asOf, params, matrix)
	if err != nil {
		return nil, err
	}
	if tracker != nil {
		tracker.Start(ev)
	}

	result, err := n.dispatch(ctx, ev)

	if tracker != nil {
		tracker.Complete(ev.ID, err)
	}
	return result, err
}

func (n *DataNode) dispatch(ctx context.Context, ev *event.Event) (any, error) {
	if n.Cache == nil {
		if ev.Params.HasInterval {
			logNonCachedInterval(n.path)
		}
		if ev.Params.Force {
			logNonCachedForce(n.path)
		}
		return n.Compute.Calculate(ctx, ev)
	}
	return n.Cache.Get(ctx, ev)
}

// GetDistinctKeys implements spec.md §4.5's non-cached get_distinct_keys
// fallback: a node without a cache reads distinct keys directly off its
// state store over the caller-supplied interval.
func (n *DataNode) GetDistinctKeys(ctx context.Context, asOf time.Time, iv interval.Interval) (statestore.DistinctKeys, error) {
	if n.Cache == nil {
		if n.State == nil {
			return statestore.DistinctKeys{}, errNoStateForDistinctKeys
		}
		return n.State.GetDistinctKeys(ctx, asOf, iv)
	}
	return n.Cache.GetDistinctKeys(ctx, asOf, iv)
}
