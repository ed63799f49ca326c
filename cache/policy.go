// Package cache implements the timed-expiry cache policy (spec.md §4.4):
// a "compute-if-stale" wrapper over a state store and a compute callable.
// A cache presupposes a state store — it always reads and writes through
// one, never holding derived state of its own.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/x2ee/c3/event"
	"github.com/x2ee/c3/interval"
	"github.com/x2ee/c3/statestore"
	"github.com/x2ee/c3/types"
)

// ComputeFunc is the shape a data node's compute service exposes to a
// cache policy: opaque, async from the policy's point of view.
type ComputeFunc func(ctx context.Context, ev *event.Event) (any, error)

// Service is the interface a data node's cache field satisfies.
type Service interface {
	Get(ctx context.Context, ev *event.Event) (any, error)
	GetDistinctKeys(ctx context.Context, asOf time.Time, iv interval.Interval) (statestore.DistinctKeys, error)

	// Expire and OnExpire expose the policy's configured expiry and
	// stale-row disposition so the wiring layer (ctx.Handle) can
	// synthesise a clean_cache cron task per on_expire=purge node without
	// type-asserting down to *Policy.
	Expire() interval.Interval
	OnExpire() OnExpire
}

// Policy is the timed-expiry cache: configured with an expiry interval and
// an on_expire disposition. on_expire=purge is carried here only as a flag
// consulted by ctx.Handle when it schedules a clean_cache maintenance task
// for the node — the read path never purges (spec.md §4.4, §9).
type Policy struct {
	store    statestore.Store
	compute  ComputeFunc
	expire   interval.Interval
	onExpire OnExpire
	matrix   *types.Matrix
}

// OnExpire is the cache's stale-row disposition.
type OnExpire string

const (
	Purge OnExpire = "purge"
	Keep  OnExpire = "keep"
)

// NewPolicy returns a Policy reading/writing through store, recomputing via
// compute on a miss or a forced call.
func NewPolicy(store statestore.Store, compute ComputeFunc, expire interval.Interval, onExpire OnExpire, matrix *types.Matrix) *Policy {
	return &Policy{store: store, compute: compute, expire: expire, onExpire: onExpire, matrix: matrix}
}

// Expire returns the policy's configured expiry interval.
func (p *Policy) Expire() interval.Interval { return p.expire }

// OnExpire reports the policy's stale-row disposition.
func (p *Policy) OnExpire() OnExpire { return p.onExpire }

// Get implements the three-step policy of spec.md §4.4:
//  1. derive the effective interval from the event (falling back to the
//     policy's configured expiry) and carry the event's force flag;
//  2. unless forced, read through state and return a fresh hit;
//  3. otherwise call compute, serialise, write through state, read back,
//     and assert freshness before decoding and returning.
func (p *Policy) Get(ctx context.Context, ev *event.Event) (any, error) {
	ev.Stage("cache_lookup")

	iv := p.expire
	if ev.Params.HasInterval {
		iv = ev.Params.Interval
	}

	keyValues := ev.RawKeyFieldValues()

	if !ev.Params.Force {
		if row, ok, err := p.store.Read(ctx, ev.AsOfDate, iv, keyValues); err != nil {
			return nil, fmt.Errorf("cache: reading state: %w", err)
		} else if ok {
			ev.Stage("cache_hit")
			return types.Decode([]byte(row.Text), "", p.matrix)
		}
	}

	ev.Stage("compute_start")
	result, err := p.compute(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("cache: compute: %w", err)
	}
	ev.Stage("compute_done")

	kt := types.KnownType("")
	if _, ok := result.(types.DataFrame); ok {
		kt = types.Frame
	}
	encoded, err := types.Encode(result, kt, p.matrix)
	if err != nil {
		return nil, fmt.Errorf("cache: encoding result: %w", err)
	}

	if err := p.store.Write(ctx, string(encoded), ev.AsOfDate, keyValues); err != nil {
		return nil, fmt.Errorf("cache: writing state: %w", err)
	}
	ev.Stage("state_write")

	row, ok, err := p.store.Read(ctx, ev.AsOfDate, iv, keyValues)
	if err != nil {
		return nil, fmt.Errorf("cache: re-reading state after write: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("cache: row written at %s is not fresh under interval %s", ev.AsOfDate.Format("2006-01-02"), iv)
	}

	return types.Decode([]byte(row.Text), kt, p.matrix)
}

// GetDistinctKeys delegates to the backing state store.
func (p *Policy) GetDistinctKeys(ctx context.Context, asOf time.Time, iv interval.Interval) (statestore.DistinctKeys, error) {
	return p.store.GetDistinctKeys(ctx, asOf, iv)
}
