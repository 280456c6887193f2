package companion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/duetvoice/duet/internal/bus"
)

type fakeTurner struct {
	mu       sync.Mutex
	texts    []string
	inFlight int
	maxSeen  int
	done     chan struct{}
	want     int
}

func (f *fakeTurner) SubmitTurn(_ context.Context, text string) error {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	f.texts = append(f.texts, text)
	if len(f.texts) == f.want {
		close(f.done)
	}
	if text == "fail" {
		return &TurnError{Stage: StageStream, Err: errors.New("boom")}
	}
	return nil
}

func TestLoop_RunsTurnsOneAtATime(t *testing.T) {
	b := bus.NewMessageBus(8)
	turner := &fakeTurner{done: make(chan struct{}), want: 3}
	loop := NewLoop(b, turner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	for _, text := range []string{"one", "", "fail", "three"} {
		_ = b.PublishInbound(ctx, bus.NewInboundMessage(bus.SourceVoice, text))
	}

	select {
	case <-turner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("turns not processed")
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}

	turner.mu.Lock()
	defer turner.mu.Unlock()
	if turner.maxSeen != 1 {
		t.Errorf("max concurrent turns = %d, want 1", turner.maxSeen)
	}
	if len(turner.texts) != 3 || turner.texts[0] != "one" || turner.texts[2] != "three" {
		t.Errorf("texts = %q", turner.texts)
	}
}

func TestLoop_MarksTrackedMessagesHandled(t *testing.T) {
	b := bus.NewMessageBus(8)
	turner := &fakeTurner{done: make(chan struct{}), want: 2}
	loop := NewLoop(b, turner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	for _, text := range []string{"", "fail", "ok"} {
		msg := bus.NewInboundMessage(bus.SourceConsole, text).Tracked()
		if err := b.PublishInbound(ctx, msg); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case <-msg.Handled():
		case <-time.After(2 * time.Second):
			t.Fatalf("%q never marked handled", text)
		}
	}

	turner.mu.Lock()
	defer turner.mu.Unlock()
	if len(turner.texts) != 2 || turner.texts[1] != "ok" {
		t.Errorf("texts = %q", turner.texts)
	}
}
