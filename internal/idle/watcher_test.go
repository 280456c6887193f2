package idle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/duetvoice/duet/internal/bus"
)

type fakeActivity struct {
	last time.Time
	busy bool
}

func (f *fakeActivity) LastInferTime() time.Time { return f.last }
func (f *fakeActivity) Busy() bool               { return f.busy }

func newTestWatcher(act *fakeActivity, b bus.Bus, now *time.Time) *Watcher {
	w := NewWatcher(act, b, 60, "在吗？")
	w.now = func() time.Time { return *now }
	w.started = *now
	return w
}

func TestNewWatcher_Disabled(t *testing.T) {
	if w := NewWatcher(&fakeActivity{}, bus.NewMessageBus(1), -1, "hi"); w != nil {
		t.Error("expected nil watcher for -1")
	}
	if w := NewWatcher(&fakeActivity{}, bus.NewMessageBus(1), 10, ""); w != nil {
		t.Error("expected nil watcher for empty message")
	}

	var w *Watcher
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("nil Start = %v", err)
	}
}

func TestWatcher_FiresOncePerIdlePeriod(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	act := &fakeActivity{}
	b := bus.NewMessageBus(4)
	w := newTestWatcher(act, b, &now)
	ctx := context.Background()

	now = now.Add(59 * time.Second)
	w.check(ctx)
	if b.Pending() != 0 {
		t.Fatal("fired before idle time")
	}

	now = now.Add(time.Second)
	w.check(ctx)
	w.check(ctx)
	if b.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", b.Pending())
	}
	msg := <-b.InboundChan()
	if msg.Source() != bus.SourceIdle || msg.Content() != "在吗？" {
		t.Errorf("msg = %s %q", msg.Source(), msg.Content())
	}

	// A new turn starts a new period.
	act.last = now
	now = now.Add(61 * time.Second)
	w.check(ctx)
	if b.Pending() != 1 {
		t.Errorf("pending = %d after second period", b.Pending())
	}
}

func TestWatcher_SkipsWhileBusy(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	act := &fakeActivity{busy: true}
	b := bus.NewMessageBus(4)
	w := newTestWatcher(act, b, &now)

	now = now.Add(10 * time.Minute)
	w.check(context.Background())
	if b.Pending() != 0 {
		t.Error("fired during a turn")
	}
	act.busy = false
	w.check(context.Background())
	if b.Pending() != 1 {
		t.Error("did not fire after the turn")
	}
}

func TestWatcher_StartStops(t *testing.T) {
	w := NewWatcher(&fakeActivity{}, bus.NewMessageBus(1), 3600, "hi")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
