package worker

import (
	"context"
	"time"

	"github.com/x2ee/c3/common"
)

// Monitor polls a remote worker's Endpoint on a fixed heartbeat interval
// and reports the worker dead once it has missed three heartbeats in a
// row (spec.md §9's fourth suspected source bug: the original predicate
// was `missing_hearbeats > 3`, inverted against its own `while` guard so
// the loop only ever ran when already past the threshold; here a miss
// counter is compared `< 3` to keep monitoring, exiting the loop as soon
// as three consecutive misses accumulate).
type Monitor struct {
	Endpoint        Endpoint
	HeartbeatPeriod time.Duration
	MaxMissedBeats  int
	onDead          func()
}

// NewMonitor returns a Monitor polling endpoint every period, considering
// a worker dead after maxMissed consecutive failed/unhealthy heartbeats.
// maxMissed <= 0 defaults to 3, matching the source's constant.
func NewMonitor(endpoint Endpoint, period time.Duration, maxMissed int, onDead func()) *Monitor {
	if maxMissed <= 0 {
		maxMissed = 3
	}
	return &Monitor{Endpoint: endpoint, HeartbeatPeriod: period, MaxMissedBeats: maxMissed, onDead: onDead}
}

// Run polls until ctx is cancelled or the worker is declared dead, in
// which case onDead is invoked and Run returns.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.HeartbeatPeriod)
	defer ticker.Stop()

	missed := 0
	for missed < m.MaxMissedBeats {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ok, err := m.Endpoint.Status()
		if err != nil || !ok {
			missed++
			common.Logger.WithField("missed_heartbeats", missed).Warning("worker heartbeat missed")
			continue
		}
		missed = 0
	}

	common.Logger.Warning("worker declared dead after consecutive missed heartbeats")
	if m.onDead != nil {
		m.onDead()
	}
}
