// Package cron implements cron-task schedule evaluation (spec.md §4.7)
// and the clean_cache built-in maintenance task that actually purges
// expired cache rows — the source's cron_clean_cache stub was never
// implemented; this package supplies the real behaviour.
package cron

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// fieldRanges gives the inclusive value range of each of the five
// standard cron fields, in order: minute, hour, day-of-month, month,
// day-of-week.
var fieldRanges = [5][2]int{
	{0, 59},
	{0, 23},
	{1, 31},
	{1, 12},
	{0, 6},
}

// Schedule evaluates a standard 5-field cron expression against the
// engine's clock. A bare wildcard minute field is replaced with a fixed
// minute deterministically derived from the task's hash id before
// parsing, mirroring the source's use of croniter's hash_id: two tasks
// sharing a wildcard-minute expression fire at different, stable minutes
// instead of
// colliding on every tick, which is how the engine "deterministically
// breaks ties in schedule evaluation" (spec.md §4.7).
type Schedule struct {
	expr  string
	sched cron.Schedule
}

// NewSchedule parses expr, a standard 5-field cron expression, hashing
// a bare "*" minute field against hashID. Wildcards in the other fields
// keep their standard meaning.
func NewSchedule(expr, hashID string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron: expected 5 fields, got %d: %q", len(fields), expr)
	}

	seed := hashSeed(hashID)
	for i, f := range fields {
		if i != 0 || f != "*" {
			continue
		}
		lo, hi := fieldRanges[i][0], fieldRanges[i][1]
		span := uint32(hi - lo + 1)
		v := lo + int((seed>>uint(i*5))%span)
		fields[i] = strconv.Itoa(v)
	}

	sched, err := parser.Parse(strings.Join(fields, " "))
	if err != nil {
		return nil, fmt.Errorf("cron: parsing %q: %w", expr, err)
	}
	return &Schedule{expr: expr, sched: sched}, nil
}

func hashSeed(hashID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(hashID))
	return h.Sum32()
}

// Next returns the schedule's next activation time strictly after last.
func (s *Schedule) Next(last time.Time) time.Time {
	return s.sched.Next(last)
}

// String returns the expression the schedule was parsed from, before
// wildcard hashing.
func (s *Schedule) String() string { return s.expr }

// IsDue reports whether the schedule has at least one activation in
// (lastRun, now]. A zero lastRun is treated as "never run" and is due
// immediately.
func IsDue(sched *Schedule, lastRun, now time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	return !sched.Next(lastRun).After(now)
}
