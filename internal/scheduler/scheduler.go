package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/flashblaze/drinky-bot/internal/store"
	"github.com/flashblaze/drinky-bot/internal/tracker"
)

// Source lists wake timers that are due.
type Source interface {
	ListDueWakeTimers(ctx context.Context, now time.Time, limit int) ([]store.DueTimer, error)
}

// Deliverer runs the alarm for one due timer. tracker.Service implements this.
type Deliverer interface {
	DeliverWake(ctx context.Context, chatID int64) (tracker.Delivery, error)
}

// Recorder counts delivery outcomes.
type Recorder interface {
	WakeDelivered(outcome string)
}

// Scheduler periodically polls the DB and delivers due wake timers.
// A timer stays in the table until its delivery succeeds, so a failed or
// interrupted delivery is picked up again by a later tick.
type Scheduler struct {
	src       Source
	deliverer Deliverer
	recorder  Recorder
	log       *zap.Logger
	interval  time.Duration
	batch     int
	now       func() time.Time
}

// New creates a new Scheduler polling every interval.
func New(src Source, deliverer Deliverer, recorder Recorder, log *zap.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		src:       src,
		deliverer: deliverer,
		recorder:  recorder,
		log:       log,
		interval:  interval,
		batch:     100,
		now:       time.Now,
	}
}

// Run starts the loop until ctx is canceled. Timers that came due while the
// process was down are delivered by the first tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick performs one cycle: find due timers and deliver each through its user's actor.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().UTC()

	due, err := s.src.ListDueWakeTimers(ctx, now, s.batch)
	if err != nil {
		s.log.Error("ListDueWakeTimers failed", zap.Error(err))
		return
	}
	for _, d := range due {
		if ctx.Err() != nil {
			return
		}
		outcome, err := s.deliverer.DeliverWake(ctx, d.ChatID)
		if s.recorder != nil {
			s.recorder.WakeDelivered(string(outcome))
		}
		if err != nil {
			s.log.Error("wake delivery failed", zap.Error(err),
				zap.Int64("chatID", d.ChatID), zap.Time("fireAt", d.FireAt))
			continue
		}
		switch outcome {
		case tracker.Stale:
			s.log.Debug("stale wake skipped", zap.Int64("chatID", d.ChatID), zap.Time("fireAt", d.FireAt))
		case tracker.Deferred:
			s.log.Debug("wake commit retry deferred", zap.Int64("chatID", d.ChatID), zap.Time("fireAt", d.FireAt))
		}
	}
}
