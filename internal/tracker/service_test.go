package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flashblaze/drinky-bot/internal/actor"
	"github.com/flashblaze/drinky-bot/internal/alarm"
	"github.com/flashblaze/drinky-bot/internal/domain"
	"github.com/flashblaze/drinky-bot/internal/store"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type notifier struct {
	mu   sync.Mutex
	sent []alarm.Notification
	err  error
}

func (n *notifier) Notify(_ context.Context, _ int64, note alarm.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, note)
	return nil
}

func (n *notifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type intakeCounter struct {
	mu    sync.Mutex
	total int
}

func (c *intakeCounter) IntakeLogged(ml int) {
	c.mu.Lock()
	c.total += ml
	c.mu.Unlock()
}

type fixture struct {
	svc   *Service
	repo  *store.SQLiteRepo
	clock *clock
	note  *notifier
	count *intakeCounter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	c := &clock{t: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)}
	n := &notifier{}
	ic := &intakeCounter{}
	m := alarm.New(repo, repo, repo, n, alarm.WithClock(c.Now))
	svc := New(repo, m, actor.NewRegistry(), zap.NewNop(),
		Defaults{GoalML: 2000, IntervalMin: 60, TZ: "UTC"},
		WithClock(c.Now), WithIntakeRecorder(ic))
	return &fixture{svc: svc, repo: repo, clock: c, note: n, count: ic}
}

func at(hh, mm int) time.Time {
	return time.Date(2026, 2, 1, hh, mm, 0, 0, time.UTC)
}

func (f *fixture) timer(t *testing.T, chatID int64) *time.Time {
	t.Helper()
	ts, err := f.repo.GetWakeTimer(context.Background(), chatID)
	require.NoError(t, err)
	return ts
}

func TestRegister_AppliesDefaultsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, created, err := f.svc.Register(ctx, Profile{ChatID: 1, FirstName: "Ada"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2000, u.GoalML)
	assert.Equal(t, 60, u.ReminderIntervalMin)
	assert.Equal(t, "UTC", u.ReminderTZ)
	assert.False(t, u.ReminderEnabled)

	u, created, err = f.svc.Register(ctx, Profile{ChatID: 1, FirstName: "Other"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Ada", u.FirstName)
}

func TestToggleReminders_SchedulesAndCancels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.svc.ToggleReminders(ctx, 1)
	require.NoError(t, err)
	assert.True(t, u.ReminderEnabled)
	ts := f.timer(t, 1)
	require.NotNil(t, ts)
	assert.True(t, at(11, 0).Equal(*ts), "got %s", ts)

	u, err = f.svc.ToggleReminders(ctx, 1)
	require.NoError(t, err)
	assert.False(t, u.ReminderEnabled)
	assert.Nil(t, f.timer(t, 1))
}

func TestDeliverWake_RemindsAndReschedules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.ToggleReminders(ctx, 1)
	require.NoError(t, err)

	f.clock.Set(at(11, 0))
	got, err := f.svc.DeliverWake(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Delivered, got)
	require.Equal(t, 1, f.note.count())
	assert.Equal(t, alarm.NotifyReminder, f.note.sent[0].Kind)
	assert.Equal(t, domain.QuickLogAmounts, f.note.sent[0].QuickLogML)

	ts := f.timer(t, 1)
	require.NotNil(t, ts)
	assert.True(t, at(12, 0).Equal(*ts), "got %s", ts)
}

func TestDeliverWake_FutureTimerIsStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.ToggleReminders(ctx, 1)
	require.NoError(t, err)

	got, err := f.svc.DeliverWake(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Stale, got)
	assert.Zero(t, f.note.count())
	assert.True(t, at(11, 0).Equal(*f.timer(t, 1)))
}

func TestDeliverWake_NoTimerIsStale(t *testing.T) {
	f := newFixture(t)
	got, err := f.svc.DeliverWake(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, Stale, got)
}

func TestDeliverWake_NotifyFailureStillReschedules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.ToggleReminders(ctx, 1)
	require.NoError(t, err)

	f.note.err = errors.New("chat blocked")
	f.clock.Set(at(11, 0))
	got, err := f.svc.DeliverWake(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Delivered, got)
	assert.True(t, at(12, 0).Equal(*f.timer(t, 1)))
}

func TestDeliverWake_GoalMetSuspendsUntilNextDayStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.ToggleReminders(ctx, 1)
	require.NoError(t, err)

	f.clock.Set(at(10, 30))
	_, err = f.svc.LogIntake(ctx, 1, 2000)
	require.NoError(t, err)

	f.clock.Set(at(11, 0))
	_, err = f.svc.DeliverWake(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, f.note.count())
	assert.Equal(t, alarm.NotifyGoalReached, f.note.sent[0].Kind)

	ts := f.timer(t, 1)
	require.NotNil(t, ts)
	assert.True(t, time.Date(2026, 2, 2, 6, 0, 0, 0, time.UTC).Equal(*ts), "got %s", ts)
}

func TestDeliverWake_DisabledUserConsumesLeftoverTimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.EnsureUser(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, f.repo.SetWakeTimer(ctx, 1, at(9, 0)))

	got, err := f.svc.DeliverWake(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Delivered, got)
	assert.Zero(t, f.note.count())
	assert.Nil(t, f.timer(t, 1))
}

// flakyTimers fails SetWakeTimer while broken is set.
type flakyTimers struct {
	*store.SQLiteRepo
	mu     sync.Mutex
	broken bool
}

func (r *flakyTimers) setBroken(b bool) {
	r.mu.Lock()
	r.broken = b
	r.mu.Unlock()
}

func (r *flakyTimers) SetWakeTimer(ctx context.Context, chatID int64, at time.Time) error {
	r.mu.Lock()
	broken := r.broken
	r.mu.Unlock()
	if broken {
		return errors.New("database is locked")
	}
	return r.SQLiteRepo.SetWakeTimer(ctx, chatID, at)
}

func TestDeliverWake_FailedCommitDoesNotRepeatNotification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := &flakyTimers{SQLiteRepo: f.repo}
	m := alarm.New(repo, repo, repo, f.note, alarm.WithClock(f.clock.Now))
	svc := New(repo, m, actor.NewRegistry(), zap.NewNop(),
		Defaults{GoalML: 2000, IntervalMin: 60, TZ: "UTC"}, WithClock(f.clock.Now))

	_, err := svc.ToggleReminders(ctx, 1)
	require.NoError(t, err)

	repo.setBroken(true)
	f.clock.Set(at(11, 0))
	got, err := svc.DeliverWake(ctx, 1)
	require.ErrorIs(t, err, alarm.ErrTimerCommit)
	assert.Equal(t, Failed, got)
	assert.Equal(t, 1, f.note.count())
	assert.True(t, at(11, 0).Equal(*f.timer(t, 1)), "timer must stay due")

	// Next scheduler tick, still inside the backoff.
	f.clock.Set(at(11, 0).Add(time.Second))
	got, err = svc.DeliverWake(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Deferred, got)
	assert.Equal(t, 1, f.note.count())

	// Backoff elapsed, commit still failing.
	f.clock.Set(at(11, 2))
	_, err = svc.DeliverWake(ctx, 1)
	require.ErrorIs(t, err, alarm.ErrTimerCommit)
	assert.Equal(t, 1, f.note.count())

	// Second backoff is longer.
	f.clock.Set(at(11, 3))
	got, err = svc.DeliverWake(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Deferred, got)

	repo.setBroken(false)
	f.clock.Set(at(11, 5))
	got, err = svc.DeliverWake(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Delivered, got)
	assert.Equal(t, 1, f.note.count())
	assert.True(t, at(12, 5).Equal(*f.timer(t, 1)), "got %s", f.timer(t, 1))

	// The rearmed timer notifies normally.
	f.clock.Set(at(12, 5))
	got, err = svc.DeliverWake(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Delivered, got)
	assert.Equal(t, 2, f.note.count())
}

func TestRetryDelay_DoublesUpToCap(t *testing.T) {
	assert.Equal(t, time.Minute, retryDelay(1))
	assert.Equal(t, 2*time.Minute, retryDelay(2))
	assert.Equal(t, 16*time.Minute, retryDelay(5))
	assert.Equal(t, 30*time.Minute, retryDelay(6))
	assert.Equal(t, 30*time.Minute, retryDelay(40))
}

func TestLogIntake_ConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.LogIntake(ctx, 1, 100)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, err := f.svc.Today(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2000, st.ConsumedML)
	assert.True(t, st.GoalMet())
	assert.Equal(t, 2000, f.count.total)
}

func TestLogIntake_RejectsNonPositive(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.LogIntake(context.Background(), 1, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Zero(t, f.count.total)
}

func TestSetGoal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.SetGoal(ctx, 1, 1500))
	st, err := f.svc.Today(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1500, st.GoalML)

	assert.ErrorIs(t, f.svc.SetGoal(ctx, 1, -1), domain.ErrInvalidAmount)
}

func TestUpdateReminderSettings_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	five := 5
	_, err := f.svc.UpdateReminderSettings(ctx, 1, domain.ReminderSettingsUpdate{IntervalMin: &five})
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)

	bad := "Mars/Olympus"
	_, err = f.svc.UpdateReminderSettings(ctx, 1, domain.ReminderSettingsUpdate{TZ: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidTimezone)
}

func TestUpdateReminderSettings_TimezoneMovesTimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.ToggleReminders(ctx, 1)
	require.NoError(t, err)

	// 10:00 UTC is 15:30 in Kolkata; next hourly slot on the 06:00 grid is 16:00 local.
	tz := "Asia/Kolkata"
	u, err := f.svc.UpdateReminderSettings(ctx, 1, domain.ReminderSettingsUpdate{TZ: &tz})
	require.NoError(t, err)
	assert.Equal(t, tz, u.ReminderTZ)
	assert.True(t, at(10, 30).Equal(*f.timer(t, 1)))
}

func TestNextWakeAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.ToggleReminders(ctx, 1)
	require.NoError(t, err)

	ts, u, err := f.svc.NextWake(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.True(t, u.ReminderEnabled)

	require.NoError(t, f.svc.DeleteUser(ctx, 1))
	assert.Nil(t, f.timer(t, 1))
	assert.ErrorIs(t, f.svc.DeleteUser(ctx, 1), store.ErrNotFound)
}
