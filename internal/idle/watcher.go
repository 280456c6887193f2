// Package idle prompts the conversation when the user has been quiet for a
// while.
package idle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/duetvoice/duet/internal/bus"
)

// Activity is what the watcher needs to know about the conversation.
type Activity interface {
	LastInferTime() time.Time
	Busy() bool
}

// Watcher publishes Message once per idle period of length After. The
// period starts at the last turn, or at Start when there has been none.
type Watcher struct {
	activity Activity
	bus      bus.Bus
	after    time.Duration
	message  string

	cron *robfigcron.Cron

	mu       sync.Mutex
	started  time.Time
	firedFor time.Time

	now func() time.Time
}

// NewWatcher returns nil when idleSeconds is not positive or message is
// empty; a nil watcher's Start just waits for ctx.
func NewWatcher(activity Activity, b bus.Bus, idleSeconds int, message string) *Watcher {
	if idleSeconds <= 0 || message == "" {
		return nil
	}
	return &Watcher{
		activity: activity,
		bus:      b,
		after:    time.Duration(idleSeconds) * time.Second,
		message:  message,
		cron: robfigcron.New(
			robfigcron.WithSeconds(),
			robfigcron.WithChain(robfigcron.SkipIfStillRunning(robfigcron.DiscardLogger)),
		),
		now: time.Now,
	}
}

// Start checks every second until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	w.mu.Lock()
	w.started = w.now()
	w.mu.Unlock()

	if _, err := w.cron.AddFunc("@every 1s", func() { w.check(ctx) }); err != nil {
		return err
	}
	w.cron.Start()
	slog.Info("idle: started", "after", w.after)

	<-ctx.Done()
	<-w.cron.Stop().Done()
	slog.Info("idle: stopped")
	return ctx.Err()
}

func (w *Watcher) check(ctx context.Context) {
	if w.activity.Busy() {
		return
	}

	w.mu.Lock()
	ref := w.activity.LastInferTime()
	if ref.IsZero() {
		ref = w.started
	}
	if w.now().Sub(ref) < w.after || ref.Equal(w.firedFor) {
		w.mu.Unlock()
		return
	}
	w.firedFor = ref
	w.mu.Unlock()

	slog.Info("idle: user quiet, prompting", "since", ref.Format(time.RFC3339))
	if err := w.bus.PublishInbound(ctx, bus.NewInboundMessage(bus.SourceIdle, w.message)); err != nil {
		slog.Warn("idle: publish failed", "err", err)
	}
}
