package domain

import "time"

// User represents one chat identity: its daily goal and reminder settings.
type User struct {
	ChatID              int64
	Username            string
	FirstName           string
	LastName            string
	LanguageCode        string
	GoalML              int    // daily goal in ml, 0 disables goal tracking
	ReminderEnabled     bool   // false means no wake timer is kept
	ReminderIntervalMin int    // minutes between grid instants, > 0
	ReminderTZ          string // IANA zone name
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DisplayName returns "First Last" when both are known, otherwise the username.
func (u *User) DisplayName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// IntakeLog is a single append-only intake record.
type IntakeLog struct {
	ID        string
	ChatID    int64
	AmountML  int
	CreatedAt time.Time // UTC
}

// ReminderSettingsUpdate carries a partial change of reminder settings.
// Nil fields are left untouched.
type ReminderSettingsUpdate struct {
	Enabled     *bool
	IntervalMin *int
	TZ          *string
}

// Reschedules reports whether the update changes the reminder grid.
func (u ReminderSettingsUpdate) Reschedules() bool {
	return u.IntervalMin != nil || u.TZ != nil
}

// QuickLogAmounts are the one-tap amounts offered with a reminder.
var QuickLogAmounts = []int{100, 200, 250, 500}
