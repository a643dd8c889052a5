package countdown

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validation errors returned by ParseTarget.
var (
	ErrInvalidTarget   = errors.New("invalid ISO-8601 target")
	ErrInvalidTimezone = errors.New("unknown time zone")
)

const day = 24 * time.Hour

// Layouts carrying an explicit offset; parsed values are converted into the zone.
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04Z07:00",
}

// Naive layouts; interpreted as wall-clock time in the zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// LoadZone resolves an IANA time zone name.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// ParseTarget parses an ISO-8601 timestamp. Strings without an offset are read as local time
// in zone; strings with an offset are converted into zone.
func ParseTarget(iso, zone string) (time.Time, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return time.Time{}, err
	}

	s := strings.TrimSpace(iso)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTarget)
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTarget, iso)
}

// ceilUnits returns ceil(d / unit) for positive d.
func ceilUnits(d, unit time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + unit - 1) / unit)
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatRemaining renders a duration in its single largest unit: days and hours round up,
// minutes round down.
func FormatRemaining(d time.Duration) string {
	switch {
	case d >= day:
		return plural(ceilUnits(d, day), "day")
	case d >= time.Hour:
		return plural(ceilUnits(d, time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return "0 minutes"
	}
}
