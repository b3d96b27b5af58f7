package actor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SerializesSameKey(t *testing.T) {
	r := NewRegistry()
	var (
		inFlight atomic.Int32
		maxSeen  atomic.Int32
		counter  int // guarded by the registry only
		wg       sync.WaitGroup
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.Do(context.Background(), 7, func(context.Context) error {
				n := inFlight.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				counter++
				time.Sleep(time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 50, counter)
	assert.Zero(t, r.Len(), "idle entries must be dropped")
}

func TestDo_DifferentKeysRunConcurrently(t *testing.T) {
	r := NewRegistry()
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = r.Do(context.Background(), 1, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	done := make(chan struct{})
	go func() {
		_ = r.Do(context.Background(), 2, func(context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("key 2 blocked behind key 1")
	}
	close(release)
}

func TestDo_ContextCancelledWhileWaiting(t *testing.T) {
	r := NewRegistry()
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = r.Do(context.Background(), 1, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := r.Do(ctx, 1, func(context.Context) error { called = true; return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
	close(release)
}

func TestDo_ReturnsFnError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	require.ErrorIs(t, r.Do(context.Background(), 3, func(context.Context) error { return boom }), boom)
}
