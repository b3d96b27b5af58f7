package alarm

import (
	"time"

	"go.uber.org/zap"
)

// EventKind names a decision or outcome of the alarm machine.
type EventKind string

const (
	EventScheduled        EventKind = "scheduled"         // grid timer committed
	EventSuspended        EventKind = "suspended"         // next-day timer committed after goal met
	EventCancelled        EventKind = "cancelled"         // timer cleared on disable
	EventRecomputed       EventKind = "recomputed"        // computed instant was in the past
	EventSchedulingFailed EventKind = "scheduling_failed" // no usable instant, nothing committed
	EventCommitFailed     EventKind = "commit_failed"     // timer write failed
	EventReminderSent     EventKind = "reminder_sent"
	EventCongratsSent     EventKind = "congrats_sent"
	EventNotifyFailed     EventKind = "notify_failed"
	EventSkippedRecentLog EventKind = "skipped_recent_log"
	EventWakeIgnored      EventKind = "wake_ignored" // user missing or reminders disabled
	EventTimezoneFallback EventKind = "timezone_fallback"
)

// Event is emitted for every branch the machine takes.
type Event struct {
	Kind   EventKind
	ChatID int64
	Now    time.Time
	At     time.Time // committed or computed instant, zero when not applicable
	Err    error
}

// Observer receives machine events. Implementations must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Observers fans an event out to several observers.
type Observers []Observer

func (os Observers) Observe(e Event) {
	for _, o := range os {
		o.Observe(e)
	}
}

// LogObserver writes events to a zap logger.
type LogObserver struct {
	log *zap.Logger
}

// NewLogObserver creates an observer that logs each event at a level matching its severity.
func NewLogObserver(log *zap.Logger) *LogObserver {
	return &LogObserver{log: log.Named("alarm")}
}

func (o *LogObserver) Observe(e Event) {
	fields := []zap.Field{
		zap.String("event", string(e.Kind)),
		zap.Int64("chatID", e.ChatID),
		zap.Time("now", e.Now),
	}
	if !e.At.IsZero() {
		fields = append(fields, zap.Time("at", e.At), zap.Duration("in", e.At.Sub(e.Now)))
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}

	switch e.Kind {
	case EventSchedulingFailed, EventCommitFailed:
		o.log.Error("alarm", fields...)
	case EventNotifyFailed, EventRecomputed, EventTimezoneFallback:
		o.log.Warn("alarm", fields...)
	case EventWakeIgnored:
		o.log.Debug("alarm", fields...)
	default:
		o.log.Info("alarm", fields...)
	}
}
