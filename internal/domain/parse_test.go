package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseDurationHuman(t *testing.T) {
	ok := map[string]time.Duration{
		"30m":    30 * time.Minute,
		"90":     90 * time.Minute,
		"2h":     2 * time.Hour,
		"1h30m":  90 * time.Minute,
		" 1H 5M": 65 * time.Minute,
		"24h":    24 * time.Hour,
	}
	for in, want := range ok {
		got, err := ParseDurationHuman(in)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: want %s, got %s", in, want, got)
		}
	}

	bad := map[string]error{
		"":      ErrEmptyDuration,
		"abc":   ErrInvalidDuration,
		"5m":    ErrTooSmall,
		"25h":   ErrTooLarge,
		"1h30x": ErrInvalidDuration,
	}
	for in, want := range bad {
		if _, err := ParseDurationHuman(in); !errors.Is(err, want) {
			t.Fatalf("%q: want %v, got %v", in, want, err)
		}
	}
}

func TestParseAmountAndGoal(t *testing.T) {
	if n, err := ParseAmount(" 250 "); err != nil || n != 250 {
		t.Fatalf("amount: got %d, %v", n, err)
	}
	for _, in := range []string{"0", "-5", "10001", "lots"} {
		if _, err := ParseAmount(in); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %q: want ErrInvalidAmount, got %v", in, err)
		}
	}

	if n, err := ParseGoal("0"); err != nil || n != 0 {
		t.Fatalf("goal: got %d, %v", n, err)
	}
	if n, err := ParseGoal("2000"); err != nil || n != 2000 {
		t.Fatalf("goal: got %d, %v", n, err)
	}
	for _, in := range []string{"-1", "10001", "2l"} {
		if _, err := ParseGoal(in); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("goal %q: want ErrInvalidAmount, got %v", in, err)
		}
	}
}

func TestValidateTZ(t *testing.T) {
	if tz, err := ValidateTZ("Asia/Kolkata"); err != nil || tz != "Asia/Kolkata" {
		t.Fatalf("got %q, %v", tz, err)
	}
	if _, err := ValidateTZ("Asia/Atlantis"); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("want ErrInvalidTimezone, got %v", err)
	}
}

func TestFormatMinutes(t *testing.T) {
	cases := map[int]string{30: "30 minutes", 60: "1 hour", 180: "3 hours", 90: "1h30m"}
	for in, want := range cases {
		if got := FormatMinutes(in); got != want {
			t.Fatalf("%d: want %q, got %q", in, want, got)
		}
	}
}

func TestLocalizeTime(t *testing.T) {
	at := mustLocalUTC(t, "Asia/Kolkata", 2026, time.January, 31, 15, 0)
	got, err := LocalizeTime(at, "Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}
	if want := "January 31, 2026, 03:00 PM"; got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}
