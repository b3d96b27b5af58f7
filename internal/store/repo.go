package store

import (
	"context"
	"errors"
	"time"

	"github.com/flashblaze/drinky-bot/internal/domain"
)

// ErrNotFound is returned when the addressed user does not exist.
var ErrNotFound = errors.New("not found")

// DueTimer is a wake timer whose instant has passed.
type DueTimer struct {
	ChatID int64
	FireAt time.Time
}

// Repo defines storage operations for users, intake logs and wake timers.
type Repo interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, chatID int64) (*domain.User, error)
	UpdateGoal(ctx context.Context, chatID int64, goalML int) error
	UpdateReminderSettings(ctx context.Context, chatID int64, upd domain.ReminderSettingsUpdate) (*domain.User, error)
	DeleteUser(ctx context.Context, chatID int64) error

	InsertIntake(ctx context.Context, chatID int64, amountML int, at time.Time) (*domain.IntakeLog, error)
	SumIntake(ctx context.Context, chatID int64, from, to time.Time) (int, error)
	MostRecentIntakeAt(ctx context.Context, chatID int64) (*time.Time, error)

	SetWakeTimer(ctx context.Context, chatID int64, at time.Time) error
	GetWakeTimer(ctx context.Context, chatID int64) (*time.Time, error)
	ClearWakeTimer(ctx context.Context, chatID int64) error
	ListDueWakeTimers(ctx context.Context, now time.Time, limit int) ([]DueTimer, error)

	Ping(ctx context.Context) error
	Close() error
}
