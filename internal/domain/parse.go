package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyDuration   = errors.New("empty duration")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrTooSmall        = errors.New("duration too small")
	ErrTooLarge        = errors.New("duration too large")
	ErrInvalidAmount   = errors.New("invalid amount")
)

const (
	MaxAmountML = 10000
	MaxGoalML   = 10000

	MinInterval = 10 * time.Minute
	MaxInterval = 24 * time.Hour
)

var (
	hoursRe   = regexp.MustCompile(`(\d+)\s*h`)
	minutesRe = regexp.MustCompile(`(\d+)\s*m`)
)

// ParseDurationHuman parses human-friendly durations like "30m", "1h30m", "90m", "2h".
// A bare number is minutes. Constraints: 10m <= d <= 24h, whole minutes only.
func ParseDurationHuman(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, ErrEmptyDuration
	}

	var total time.Duration
	if isAllDigits(s) {
		mins, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, s)
		}
		total = time.Duration(mins) * time.Minute
	} else {
		rest := s
		if mh := hoursRe.FindStringSubmatch(rest); len(mh) == 2 {
			h, _ := strconv.Atoi(mh[1])
			total += time.Duration(h) * time.Hour
			rest = strings.Replace(rest, mh[0], "", 1)
		}
		if mm := minutesRe.FindStringSubmatch(rest); len(mm) == 2 {
			m, _ := strconv.Atoi(mm[1])
			total += time.Duration(m) * time.Minute
			rest = strings.Replace(rest, mm[0], "", 1)
		}
		if strings.TrimSpace(rest) != "" || total == 0 {
			return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, s)
		}
	}

	if total < MinInterval {
		return 0, fmt.Errorf("%w: min %s", ErrTooSmall, MinInterval)
	}
	if total > MaxInterval {
		return 0, fmt.Errorf("%w: max %s", ErrTooLarge, MaxInterval)
	}
	return total, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ParseAmount parses a logged amount in ml (1..MaxAmountML).
func ParseAmount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if n <= 0 || n > MaxAmountML {
		return 0, fmt.Errorf("%w: must be between 1 and %d ml", ErrInvalidAmount, MaxAmountML)
	}
	return n, nil
}

// ParseGoal parses a daily goal in ml (0..MaxGoalML). Zero disables the goal.
func ParseGoal(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if n < 0 || n > MaxGoalML {
		return 0, fmt.Errorf("%w: must be between 0 and %d ml", ErrInvalidAmount, MaxGoalML)
	}
	return n, nil
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	loc, err := LoadLocation(strings.TrimSpace(tz))
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}

// FormatMinutes renders an interval in minutes as "45 minutes", "1 hour", "1h30m".
func FormatMinutes(mins int) string {
	switch {
	case mins < 60:
		return fmt.Sprintf("%d minutes", mins)
	case mins == 60:
		return "1 hour"
	case mins%60 == 0:
		return fmt.Sprintf("%d hours", mins/60)
	default:
		return fmt.Sprintf("%dh%02dm", mins/60, mins%60)
	}
}

// LocalizeTime formats t in user's timezone, e.g. "January 31, 2026, 03:00 PM".
func LocalizeTime(t time.Time, tz string) (string, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format("January 2, 2006, 03:04 PM"), nil
}
