package countdown

import (
	"fmt"
	"time"
)

// Kind identifies which rule produced an announcement.
type Kind string

// Announcement kinds.
const (
	KindDaily      Kind = "daily"
	KindLaunchDay  Kind = "launch_day"
	KindCheckpoint Kind = "checkpoint"
)

// window is the width of a sub-checkpoint's firing interval. It equals the tick period,
// so a steady 60 s tick lands in each window exactly once.
const window = time.Minute

// checkpoints on the target's calendar day, largest first.
var checkpoints = []struct {
	offset time.Duration
	text   string
}{
	{12 * time.Hour, "Only 12 hours left!"},
	{3 * time.Hour, "Only 3 hours left!"},
	{2 * time.Hour, "Only 2 hours left!"},
	{time.Hour, "Only 1 hour left!"},
	{10 * time.Minute, "Only 10 minutes left!"},
}

// Announcement is a milestone message due at a particular instant.
type Announcement struct {
	Kind Kind
	Name string // stable name of the milestone, e.g. "7d" or "3h0m0s"
	Text string
}

// Key identifies the milestone for a given target, for at-most-once delivery.
func (a Announcement) Key(target time.Time) string {
	return fmt.Sprintf("%s/%s/%s", target.UTC().Format(time.RFC3339), a.Kind, a.Name)
}

// Evaluate decides whether a milestone announcement is due at now. Both instants are
// compared in target's location. At most one announcement is returned.
//
// More than 24h out, a daily message fires in the minute whose wall clock matches the
// target's. On the target's calendar day, local midnight opens launch day and the fixed
// checkpoints fire when the remaining time first reaches them.
func Evaluate(now, target time.Time) (Announcement, bool) {
	loc := target.Location()
	now = now.In(loc)
	remaining := target.Sub(now)
	if remaining <= 0 {
		return Announcement{}, false
	}

	if remaining > day {
		if now.Hour() != target.Hour() || now.Minute() != target.Minute() {
			return Announcement{}, false
		}
		n := ceilUnits(remaining, day)
		return Announcement{
			Kind: KindDaily,
			Name: fmt.Sprintf("%dd", n),
			Text: plural(n, "day") + " remaining",
		}, true
	}

	midnight := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, loc)
	if now.Before(midnight) {
		return Announcement{}, false
	}

	if now.Hour() == 0 && now.Minute() == 0 {
		n := ceilUnits(remaining, time.Hour)
		return Announcement{
			Kind: KindLaunchDay,
			Name: "midnight",
			Text: fmt.Sprintf("Today is launch day! %s remaining", plural(n, "hour")),
		}, true
	}

	for _, cp := range checkpoints {
		if over := remaining - cp.offset; over >= 0 && over < window {
			return Announcement{
				Kind: KindCheckpoint,
				Name: cp.offset.String(),
				Text: cp.text,
			}, true
		}
	}
	return Announcement{}, false
}
