// Package schedule decides when a harvest configuration is due.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron"

	"github.com/nucleus/harvest-core/pkg/harvest"
)

// DefaultGuard is the minimum time between two runs of one configuration.
const DefaultGuard = time.Minute

// Parse parses a standard five field cron expression.
func Parse(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty schedule")
	}
	return cron.ParseStandard(expr)
}

// Gate evaluates schedules in a local time zone.
type Gate struct {
	location *time.Location
	guard    time.Duration
}

// NewGate creates a Gate. A nil location means UTC; a non-positive guard
// means DefaultGuard.
func NewGate(location *time.Location, guard time.Duration) *Gate {
	if location == nil {
		location = time.UTC
	}
	if guard <= 0 {
		guard = DefaultGuard
	}
	return &Gate{location: location, guard: guard}
}

// CanRun reports whether cfg may start a harvest at now.
//
// A configuration whose schedule does not parse never runs. One that has
// never been harvested runs immediately. Otherwise the last harvest must be
// at least the guard window in the past and the schedule must have fired
// since then.
func (g *Gate) CanRun(cfg harvest.Config, now time.Time) bool {
	sched, err := Parse(cfg.Content.Schedule)
	if err != nil {
		return false
	}
	last := cfg.Content.TimeOfLastHarvest
	if last == nil {
		return true
	}
	if last.After(now.Add(-g.guard)) {
		return false
	}
	next := sched.Next(last.In(g.location))
	if next.IsZero() {
		// the expression never fires, e.g. February 30th
		return false
	}
	return !next.After(now)
}

// Next returns the first fire time after cfg's last harvest, or after now
// when it has never run.
func (g *Gate) Next(cfg harvest.Config, now time.Time) (time.Time, error) {
	sched, err := Parse(cfg.Content.Schedule)
	if err != nil {
		return time.Time{}, err
	}
	from := now
	if cfg.Content.TimeOfLastHarvest != nil {
		from = *cfg.Content.TimeOfLastHarvest
	}
	return sched.Next(from.In(g.location)), nil
}
