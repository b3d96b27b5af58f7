// Package alarm implements the per-user reminder state machine.
//
// A user is Disabled (no wake timer), Active (timer on a grid instant from
// domain.NextReminderInstant) or Suspended (timer on domain.NextDayStart after
// the day's goal was met). The machine assumes its caller serializes all
// operations for one user and holds no locks itself.
package alarm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flashblaze/drinky-bot/internal/domain"
	"github.com/flashblaze/drinky-bot/internal/store"
)

var (
	ErrSchedulingImpossible = errors.New("scheduling impossible")
	ErrTimerCommit          = errors.New("timer commit failed")
	ErrNotification         = errors.New("notification failed")
)

// SettingsStore reads and writes the user's reminder settings.
type SettingsStore interface {
	GetUser(ctx context.Context, chatID int64) (*domain.User, error)
	UpdateReminderSettings(ctx context.Context, chatID int64, upd domain.ReminderSettingsUpdate) (*domain.User, error)
}

// LogStore answers the intake questions the machine needs.
type LogStore interface {
	SumIntake(ctx context.Context, chatID int64, from, to time.Time) (int, error)
	MostRecentIntakeAt(ctx context.Context, chatID int64) (*time.Time, error)
}

// TimerStore holds the single wake timer of each user.
type TimerStore interface {
	SetWakeTimer(ctx context.Context, chatID int64, at time.Time) error
	GetWakeTimer(ctx context.Context, chatID int64) (*time.Time, error)
	ClearWakeTimer(ctx context.Context, chatID int64) error
}

// NotificationKind selects the message a Notifier renders.
type NotificationKind int

const (
	NotifyReminder NotificationKind = iota
	NotifyGoalReached
)

// Notification is what the machine asks the channel to deliver.
type Notification struct {
	Kind       NotificationKind
	ConsumedML int
	GoalML     int
	QuickLogML []int // one-tap log shortcuts, reminders only
}

// Notifier delivers notifications to a user. Failures are logged, never retried.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, n Notification) error
}

// Machine drives each user's wake timer.
type Machine struct {
	settings SettingsStore
	logs     LogStore
	timers   TimerStore
	notifier Notifier
	observer Observer
	now      func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithObserver sets the event sink.
func WithObserver(o Observer) Option {
	return func(m *Machine) { m.observer = o }
}

// New creates a Machine. Without WithObserver events are dropped.
func New(settings SettingsStore, logs LogStore, timers TimerStore, notifier Notifier, opts ...Option) *Machine {
	m := &Machine{
		settings: settings,
		logs:     logs,
		timers:   timers,
		notifier: notifier,
		observer: ObserverFunc(func(Event) {}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GoalMet reports whether consumed reaches a non-zero goal.
func GoalMet(goalML, consumedML int) bool {
	return goalML > 0 && consumedML >= goalML
}

// ApplySettings persists upd and moves the timer accordingly:
// enabling schedules, disabling cancels, and an interval or timezone change
// reschedules only while reminders are enabled.
func (m *Machine) ApplySettings(ctx context.Context, chatID int64, upd domain.ReminderSettingsUpdate) (*domain.User, error) {
	u, err := m.settings.UpdateReminderSettings(ctx, chatID, upd)
	if err != nil {
		return nil, err
	}

	switch {
	case upd.Enabled != nil && *upd.Enabled:
		err = m.Schedule(ctx, u)
	case upd.Enabled != nil:
		err = m.Cancel(ctx, chatID)
	case upd.Reschedules() && u.ReminderEnabled:
		err = m.Schedule(ctx, u)
	}
	return u, err
}

// Schedule commits the next grid instant for an enabled user.
// An uncomputable instant is reported as an event and leaves no timer.
func (m *Machine) Schedule(ctx context.Context, u *domain.User) error {
	if !u.ReminderEnabled {
		return nil
	}
	return m.commit(ctx, u.ChatID, EventScheduled, func(now time.Time) (time.Time, error) {
		return domain.NextReminderInstant(u.ReminderIntervalMin, u.ReminderTZ, now)
	})
}

// Cancel clears the user's wake timer if one is set.
func (m *Machine) Cancel(ctx context.Context, chatID int64) error {
	cur, err := m.timers.GetWakeTimer(ctx, chatID)
	if err != nil {
		return fmt.Errorf("get wake timer: %w", err)
	}
	if cur == nil {
		return nil
	}
	if err := m.timers.ClearWakeTimer(ctx, chatID); err != nil {
		err = fmt.Errorf("%w: %w", ErrTimerCommit, err)
		m.emit(Event{Kind: EventCommitFailed, ChatID: chatID, Err: err})
		return err
	}
	m.emit(Event{Kind: EventCancelled, ChatID: chatID, At: *cur})
	return nil
}

// Wake handles a fired wake timer.
func (m *Machine) Wake(ctx context.Context, chatID int64) error {
	return m.wake(ctx, chatID, true)
}

// Rearm runs the same decisions as Wake without notifying. It is used to
// retry a wake whose notification already went out but whose timer commit failed.
func (m *Machine) Rearm(ctx context.Context, chatID int64) error {
	return m.wake(ctx, chatID, false)
}

func (m *Machine) wake(ctx context.Context, chatID int64, notify bool) error {
	now := m.now()

	u, err := m.settings.GetUser(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		m.emit(Event{Kind: EventWakeIgnored, ChatID: chatID, Now: now, Err: err})
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if !u.ReminderEnabled {
		m.emit(Event{Kind: EventWakeIgnored, ChatID: chatID, Now: now})
		return nil
	}

	consumed, err := m.IntakeToday(ctx, u, now)
	if err != nil {
		return fmt.Errorf("intake today: %w", err)
	}

	if GoalMet(u.GoalML, consumed) {
		if notify {
			m.notify(ctx, u, now, Notification{Kind: NotifyGoalReached, ConsumedML: consumed, GoalML: u.GoalML})
		}
		return m.commit(ctx, chatID, EventSuspended, func(now time.Time) (time.Time, error) {
			return domain.NextDayStart(u.ReminderTZ, now)
		})
	}

	last, err := m.logs.MostRecentIntakeAt(ctx, chatID)
	if err != nil {
		return fmt.Errorf("most recent intake: %w", err)
	}
	if last != nil && !last.Before(now.Add(-domain.SuppressionWindow)) {
		m.emit(Event{Kind: EventSkippedRecentLog, ChatID: chatID, Now: now, At: *last})
		return m.Schedule(ctx, u)
	}

	if notify {
		m.notify(ctx, u, now, Notification{
			Kind:       NotifyReminder,
			ConsumedML: consumed,
			GoalML:     u.GoalML,
			QuickLogML: domain.QuickLogAmounts,
		})
	}
	return m.Schedule(ctx, u)
}

// IntakeToday sums the user's intake over the local calendar day containing now.
// An invalid timezone falls back to the UTC day.
func (m *Machine) IntakeToday(ctx context.Context, u *domain.User, now time.Time) (int, error) {
	from, to, err := domain.LocalDayBounds(now, u.ReminderTZ)
	if err != nil {
		m.emit(Event{Kind: EventTimezoneFallback, ChatID: u.ChatID, Now: now, Err: err})
	}
	return m.logs.SumIntake(ctx, u.ChatID, from, to)
}

// commit computes an instant and persists it as the wake timer.
// An instant not after now is recomputed once; a second miss aborts the commit.
func (m *Machine) commit(ctx context.Context, chatID int64, kind EventKind, compute func(now time.Time) (time.Time, error)) error {
	now := m.now()

	at, err := compute(now)
	if err != nil {
		m.emit(Event{Kind: EventSchedulingFailed, ChatID: chatID, Now: now, Err: fmt.Errorf("%w: %w", ErrSchedulingImpossible, err)})
		return nil
	}
	if !at.After(now) {
		m.emit(Event{Kind: EventRecomputed, ChatID: chatID, Now: now, At: at})
		at, err = compute(m.now())
		if err == nil && !at.After(now) {
			err = fmt.Errorf("instant %s not after %s", at.Format(time.RFC3339), now.Format(time.RFC3339))
		}
		if err != nil {
			m.emit(Event{Kind: EventSchedulingFailed, ChatID: chatID, Now: now, Err: fmt.Errorf("%w: %w", ErrSchedulingImpossible, err)})
			return nil
		}
	}

	if err := m.timers.SetWakeTimer(ctx, chatID, at); err != nil {
		err = fmt.Errorf("%w: %w", ErrTimerCommit, err)
		m.emit(Event{Kind: EventCommitFailed, ChatID: chatID, Now: now, At: at, Err: err})
		return err
	}
	m.emit(Event{Kind: kind, ChatID: chatID, Now: now, At: at})
	return nil
}

func (m *Machine) notify(ctx context.Context, u *domain.User, now time.Time, n Notification) {
	if err := m.notifier.Notify(ctx, u.ChatID, n); err != nil {
		m.emit(Event{Kind: EventNotifyFailed, ChatID: u.ChatID, Now: now, Err: fmt.Errorf("%w: %w", ErrNotification, err)})
		return
	}
	kind := EventReminderSent
	if n.Kind == NotifyGoalReached {
		kind = EventCongratsSent
	}
	m.emit(Event{Kind: kind, ChatID: u.ChatID, Now: now})
}

func (m *Machine) emit(e Event) {
	if e.Now.IsZero() {
		e.Now = m.now()
	}
	m.observer.Observe(e)
}
