package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flashblaze/drinky-bot/internal/store"
	"github.com/flashblaze/drinky-bot/internal/tracker"
)

type fakeSource struct {
	due   []store.DueTimer
	err   error
	limit int
	now   time.Time
}

func (f *fakeSource) ListDueWakeTimers(_ context.Context, now time.Time, limit int) ([]store.DueTimer, error) {
	f.now, f.limit = now, limit
	return f.due, f.err
}

type fakeDeliverer struct {
	mu       sync.Mutex
	chats    []int64
	outcomes map[int64]tracker.Delivery
	fail     map[int64]error
}

func (f *fakeDeliverer) DeliverWake(_ context.Context, chatID int64) (tracker.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, chatID)
	if err := f.fail[chatID]; err != nil {
		return tracker.Failed, err
	}
	if o, ok := f.outcomes[chatID]; ok {
		return o, nil
	}
	return tracker.Delivered, nil
}

type countRecorder map[string]int

func (c countRecorder) WakeDelivered(outcome string) { c[outcome]++ }

func TestTick_DeliversEveryDueTimer(t *testing.T) {
	fixed := time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC)
	src := &fakeSource{due: []store.DueTimer{
		{ChatID: 1, FireAt: fixed.Add(-time.Minute)},
		{ChatID: 2, FireAt: fixed},
		{ChatID: 3, FireAt: fixed},
	}}
	del := &fakeDeliverer{
		outcomes: map[int64]tracker.Delivery{2: tracker.Stale},
		fail:     map[int64]error{3: errors.New("db locked")},
	}
	rec := countRecorder{}

	s := New(src, del, rec, zap.NewNop(), time.Second)
	s.now = func() time.Time { return fixed }
	s.tick(context.Background())

	assert.Equal(t, []int64{1, 2, 3}, del.chats)
	assert.Equal(t, countRecorder{"ok": 1, "stale": 1, "error": 1}, rec)
	assert.True(t, fixed.Equal(src.now))
	assert.Equal(t, 100, src.limit)
}

func TestTick_ListFailureDeliversNothing(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	del := &fakeDeliverer{}

	New(src, del, nil, zap.NewNop(), time.Second).tick(context.Background())
	assert.Empty(t, del.chats)
}

func TestRun_TicksImmediatelyAndStops(t *testing.T) {
	src := &fakeSource{due: []store.DueTimer{{ChatID: 7}}}
	del := &fakeDeliverer{}
	s := New(src, del, nil, zap.NewNop(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		del.mu.Lock()
		defer del.mu.Unlock()
		return len(del.chats) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
