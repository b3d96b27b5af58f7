package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTimezone = errors.New("invalid timezone")
	ErrInvalidInterval = errors.New("invalid interval")
)

// LoadLocation resolves an IANA zone name. Empty means UTC.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return loc, nil
}

// StartOfLocalDay returns local midnight of the calendar day containing t, in UTC.
// On an invalid zone the UTC day is returned together with ErrInvalidTimezone,
// so the result is always usable.
func StartOfLocalDay(t time.Time, tz string) (time.Time, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return localMidnight(t.In(loc), 0), err
}

// StartOfNextLocalDay returns local midnight of the day after the one containing t, in UTC.
// Invalid zones fall back to UTC like StartOfLocalDay.
func StartOfNextLocalDay(t time.Time, tz string) (time.Time, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return localMidnight(t.In(loc), 1), err
}

// LocalDayBounds returns [start, next) of the local calendar day containing t.
func LocalDayBounds(t time.Time, tz string) (start, next time.Time, err error) {
	start, err = StartOfLocalDay(t, tz)
	next, _ = StartOfNextLocalDay(t, tz)
	return start, next, err
}

// localMidnight returns the first instant of local's date plus addDays, in UTC.
// Where a DST gap swallows midnight (America/Havana, Atlantic/Azores) the day
// starts at the end of the gap.
func localMidnight(local time.Time, addDays int) time.Time {
	loc := local.Location()
	noon := time.Date(local.Year(), local.Month(), local.Day()+addDays, 12, 0, 0, 0, loc)
	y, mo, d := noon.Date()

	m := time.Date(y, mo, d, 0, 0, 0, 0, loc)
	if my, mmo, md := m.Date(); my != y || mmo != mo || md != d {
		_, m = m.ZoneBounds()
	}
	return m.UTC()
}
