// Package tracker is the per-user application service: every operation runs
// inside the user's actor so settings changes, intake logs and wake delivery
// never interleave for the same user.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flashblaze/drinky-bot/internal/actor"
	"github.com/flashblaze/drinky-bot/internal/alarm"
	"github.com/flashblaze/drinky-bot/internal/domain"
	"github.com/flashblaze/drinky-bot/internal/store"
)

// Defaults are applied to users created on first contact.
type Defaults struct {
	GoalML      int
	IntervalMin int
	TZ          string
}

// Profile is the chat identity reported by the transport.
type Profile struct {
	ChatID       int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
}

// Stats is today's intake against the goal.
type Stats struct {
	ConsumedML int
	GoalML     int
	TZ         string
}

// GoalMet reports whether the stats reach a non-zero goal.
func (s Stats) GoalMet() bool { return alarm.GoalMet(s.GoalML, s.ConsumedML) }

// Delivery is the outcome of a wake timer delivery.
type Delivery string

const (
	Delivered Delivery = "ok"
	Stale     Delivery = "stale" // cleared or replaced before delivery
	Failed    Delivery = "error"
	Deferred  Delivery = "deferred" // commit retry is backing off
)

// Commit retry backoff after a wake whose notification went out but whose
// timer could not be committed.
const (
	retryBase = time.Minute
	retryMax  = 30 * time.Minute
)

// pendingCommit remembers a notified timer whose commit failed, so the
// retry rearms it without notifying again.
type pendingCommit struct {
	fireAt    time.Time
	attempts  int
	notBefore time.Time
}

func retryDelay(attempts int) time.Duration {
	d := retryBase
	for i := 1; i < attempts && d < retryMax; i++ {
		d *= 2
	}
	if d > retryMax {
		d = retryMax
	}
	return d
}

// IntakeRecorder is notified about every logged intake.
type IntakeRecorder interface {
	IntakeLogged(amountML int)
}

// Service coordinates the store, the alarm machine and the actor registry.
type Service struct {
	repo     store.Repo
	machine  *alarm.Machine
	actors   *actor.Registry
	log      *zap.Logger
	recorder IntakeRecorder
	defaults Defaults
	now      func() time.Time

	mu      sync.Mutex
	pending map[int64]pendingCommit
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIntakeRecorder sets the intake metrics sink.
func WithIntakeRecorder(r IntakeRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// New creates a Service.
func New(repo store.Repo, machine *alarm.Machine, actors *actor.Registry, log *zap.Logger, defaults Defaults, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		machine:  machine,
		actors:   actors,
		log:      log,
		defaults: defaults,
		now:      time.Now,
		pending:  make(map[int64]pendingCommit),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates the user on first contact. The returned flag is true for new users.
func (s *Service) Register(ctx context.Context, p Profile) (*domain.User, bool, error) {
	var (
		u       *domain.User
		created bool
	)
	err := s.actors.Do(ctx, p.ChatID, func(ctx context.Context) error {
		var err error
		u, created, err = s.ensure(ctx, p)
		return err
	})
	return u, created, err
}

// EnsureUser returns the user, creating it with defaults if missing.
func (s *Service) EnsureUser(ctx context.Context, chatID int64) (*domain.User, error) {
	u, _, err := s.Register(ctx, Profile{ChatID: chatID})
	return u, err
}

func (s *Service) ensure(ctx context.Context, p Profile) (*domain.User, bool, error) {
	u, err := s.repo.GetUser(ctx, p.ChatID)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	u = &domain.User{
		ChatID:              p.ChatID,
		Username:            p.Username,
		FirstName:           p.FirstName,
		LastName:            p.LastName,
		LanguageCode:        p.LanguageCode,
		GoalML:              s.defaults.GoalML,
		ReminderEnabled:     false,
		ReminderIntervalMin: s.defaults.IntervalMin,
		ReminderTZ:          s.defaults.TZ,
		CreatedAt:           s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, false, err
	}
	s.log.Info("user created", zap.Int64("chatID", p.ChatID))
	return u, true, nil
}

// LogIntake appends an intake row stamped with the current time.
func (s *Service) LogIntake(ctx context.Context, chatID int64, amountML int) (*domain.IntakeLog, error) {
	var l *domain.IntakeLog
	err := s.actors.Do(ctx, chatID, func(ctx context.Context) error {
		if _, _, err := s.ensure(ctx, Profile{ChatID: chatID}); err != nil {
			return err
		}
		var err error
		l, err = s.repo.InsertIntake(ctx, chatID, amountML, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.recorder != nil {
		s.recorder.IntakeLogged(amountML)
	}
	return l, nil
}

// SetGoal changes the daily goal. The current timer is left as is.
func (s *Service) SetGoal(ctx context.Context, chatID int64, goalML int) error {
	if goalML < 0 || goalML > domain.MaxGoalML {
		return fmt.Errorf("%w: goal %d", domain.ErrInvalidAmount, goalML)
	}
	return s.actors.Do(ctx, chatID, func(ctx context.Context) error {
		if _, _, err := s.ensure(ctx, Profile{ChatID: chatID}); err != nil {
			return err
		}
		return s.repo.UpdateGoal(ctx, chatID, goalML)
	})
}

// Today returns the intake of the user's current local calendar day.
func (s *Service) Today(ctx context.Context, chatID int64) (Stats, error) {
	var st Stats
	err := s.actors.Do(ctx, chatID, func(ctx context.Context) error {
		u, _, err := s.ensure(ctx, Profile{ChatID: chatID})
		if err != nil {
			return err
		}
		consumed, err := s.machine.IntakeToday(ctx, u, s.now())
		if err != nil {
			return err
		}
		st = Stats{ConsumedML: consumed, GoalML: u.GoalML, TZ: u.ReminderTZ}
		return nil
	})
	return st, err
}

// UpdateReminderSettings validates and applies a settings change, moving the timer as needed.
func (s *Service) UpdateReminderSettings(ctx context.Context, chatID int64, upd domain.ReminderSettingsUpdate) (*domain.User, error) {
	if upd.IntervalMin != nil {
		d := time.Duration(*upd.IntervalMin) * time.Minute
		if d < domain.MinInterval || d > domain.MaxInterval {
			return nil, fmt.Errorf("%w: %d minutes", domain.ErrInvalidInterval, *upd.IntervalMin)
		}
	}
	if upd.TZ != nil {
		tz, err := domain.ValidateTZ(*upd.TZ)
		if err != nil {
			return nil, err
		}
		upd.TZ = &tz
	}

	var u *domain.User
	err := s.actors.Do(ctx, chatID, func(ctx context.Context) error {
		if _, _, err := s.ensure(ctx, Profile{ChatID: chatID}); err != nil {
			return err
		}
		var err error
		u, err = s.machine.ApplySettings(ctx, chatID, upd)
		return err
	})
	return u, err
}

// ToggleReminders flips reminderEnabled.
func (s *Service) ToggleReminders(ctx context.Context, chatID int64) (*domain.User, error) {
	var u *domain.User
	err := s.actors.Do(ctx, chatID, func(ctx context.Context) error {
		cur, _, err := s.ensure(ctx, Profile{ChatID: chatID})
		if err != nil {
			return err
		}
		enabled := !cur.ReminderEnabled
		u, err = s.machine.ApplySettings(ctx, chatID, domain.ReminderSettingsUpdate{Enabled: &enabled})
		return err
	})
	return u, err
}

// NextWake returns the pending wake timer (nil if none) and the user.
func (s *Service) NextWake(ctx context.Context, chatID int64) (*time.Time, *domain.User, error) {
	var (
		at *time.Time
		u  *domain.User
	)
	err := s.actors.Do(ctx, chatID, func(ctx context.Context) error {
		var err error
		if u, _, err = s.ensure(ctx, Profile{ChatID: chatID}); err != nil {
			return err
		}
		at, err = s.repo.GetWakeTimer(ctx, chatID)
		return err
	})
	return at, u, err
}

// DeleteUser removes the user, its intake logs and its wake timer.
func (s *Service) DeleteUser(ctx context.Context, chatID int64) error {
	return s.actors.Do(ctx, chatID, func(ctx context.Context) error {
		if err := s.repo.DeleteUser(ctx, chatID); err != nil {
			return err
		}
		s.forgetPending(chatID)
		s.log.Info("user deleted", zap.Int64("chatID", chatID))
		return nil
	})
}

// DeliverWake runs the alarm for a due timer. A timer that was cleared or
// moved into the future before the actor got its turn is a stale delivery.
// The timer is consumed only if the alarm finished without replacing it,
// so a failed delivery stays due and is retried. When the notification went
// out but the commit failed, retries back off and rearm without notifying.
func (s *Service) DeliverWake(ctx context.Context, chatID int64) (Delivery, error) {
	outcome := Failed
	err := s.actors.Do(ctx, chatID, func(ctx context.Context) error {
		cur, err := s.repo.GetWakeTimer(ctx, chatID)
		if err != nil {
			return fmt.Errorf("get wake timer: %w", err)
		}
		now := s.now()
		if cur == nil || cur.After(now) {
			s.forgetPending(chatID)
			outcome = Stale
			return nil
		}

		p, retry := s.pendingFor(chatID, *cur)
		if retry && now.Before(p.notBefore) {
			outcome = Deferred
			return nil
		}

		if retry {
			err = s.machine.Rearm(ctx, chatID)
		} else {
			err = s.machine.Wake(ctx, chatID)
		}
		if err != nil {
			if errors.Is(err, alarm.ErrTimerCommit) {
				s.deferCommit(chatID, *cur, p, now)
			}
			return err
		}
		s.forgetPending(chatID)

		after, err := s.repo.GetWakeTimer(ctx, chatID)
		if err != nil {
			return fmt.Errorf("get wake timer: %w", err)
		}
		if after != nil && after.Equal(*cur) {
			if err := s.repo.ClearWakeTimer(ctx, chatID); err != nil {
				return fmt.Errorf("consume wake timer: %w", err)
			}
		}
		outcome = Delivered
		return nil
	})
	if err != nil {
		return Failed, err
	}
	return outcome, nil
}

// pendingFor returns the failed commit recorded for the timer at fireAt.
// A record for any other timer is dropped.
func (s *Service) pendingFor(chatID int64, fireAt time.Time) (pendingCommit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[chatID]
	if !ok {
		return pendingCommit{}, false
	}
	if !p.fireAt.Equal(fireAt) {
		delete(s.pending, chatID)
		return pendingCommit{}, false
	}
	return p, true
}

func (s *Service) deferCommit(chatID int64, fireAt time.Time, p pendingCommit, now time.Time) {
	p.fireAt = fireAt
	p.attempts++
	delay := retryDelay(p.attempts)
	p.notBefore = now.Add(delay)

	s.mu.Lock()
	s.pending[chatID] = p
	s.mu.Unlock()

	s.log.Warn("wake timer commit failed, retrying later",
		zap.Int64("chatID", chatID), zap.Int("attempts", p.attempts), zap.Duration("delay", delay))
}

func (s *Service) forgetPending(chatID int64) {
	s.mu.Lock()
	delete(s.pending, chatID)
	s.mu.Unlock()
}
