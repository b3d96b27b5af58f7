package domain

import (
	"fmt"
	"time"
)

const (
	// DayStartHour is the local hour every hydration day begins at.
	// Local hours before it are quiet hours.
	DayStartHour = 6

	// SuppressionWindow is how far back a self-log suppresses a due reminder.
	SuppressionWindow = 5 * time.Minute
)

// InQuietHours reports whether t falls between local midnight and DayStartHour.
func InQuietHours(t time.Time, loc *time.Location) bool {
	return t.In(loc).Hour() < DayStartHour
}

// NextReminderInstant computes the next grid instant in UTC.
// The grid is anchored at DayStartHour of the local day containing now and
// advances by intervalMin minutes. A candidate that lands in the quiet hours
// of the following morning, or past the next day's start hour (a 24h interval
// on a 23h day), is moved to the next day's start hour.
func NextReminderInstant(intervalMin int, tz string, now time.Time) (time.Time, error) {
	if intervalMin <= 0 {
		return time.Time{}, fmt.Errorf("%w: %d minutes", ErrInvalidInterval, intervalMin)
	}
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}

	local := now.In(loc)
	todayStart := dayStartAt(local, 0)
	if todayStart.After(now) {
		// Today's hydration day hasn't begun yet.
		return todayStart.UTC(), nil
	}

	interval := time.Duration(intervalMin) * time.Minute
	idx := now.Sub(todayStart) / interval
	candidate := todayStart.Add((idx + 1) * interval)

	if tomorrow := dayStartAt(local, 1); InQuietHours(candidate, loc) || candidate.After(tomorrow) {
		return tomorrow.UTC(), nil
	}
	return candidate.UTC(), nil
}

// NextDayStart returns DayStartHour of the calendar day after the one containing now.
// It ignores the interval grid; used to suspend reminders once the goal is met.
func NextDayStart(tz string, now time.Time) (time.Time, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	return dayStartAt(now.In(loc), 1).UTC(), nil
}

// dayStartAt builds DayStartHour local time on local's date plus addDays.
func dayStartAt(local time.Time, addDays int) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day()+addDays, DayStartHour, 0, 0, 0, local.Location())
}
