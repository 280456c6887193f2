package companion

import (
	"context"
	"errors"
	"log/slog"

	"github.com/duetvoice/duet/internal/bus"
)

// Turner is the part of Controller the loop drives.
type Turner interface {
	SubmitTurn(ctx context.Context, text string) error
}

// Loop feeds inbound messages to a controller one at a time, which is what
// keeps turns from overlapping in voice mode.
type Loop struct {
	bus    bus.Bus
	turner Turner
}

func NewLoop(b bus.Bus, t Turner) *Loop {
	return &Loop{bus: b, turner: t}
}

// Run consumes the inbound queue until ctx is cancelled.
func (loop *Loop) Run(ctx context.Context) error {
	slog.Info("Turn loop started")

	for {
		select {
		case msg := <-loop.bus.InboundChan():
			loop.handle(ctx, msg)
		case <-ctx.Done():
			slog.Info("Turn loop stopping")
			return ctx.Err()
		}
	}
}

func (loop *Loop) handle(ctx context.Context, msg bus.InboundMessage) {
	defer msg.MarkHandled()
	if msg.Content() == "" {
		return
	}
	slog.Debug("Inbound message", "source", msg.Source(), "preview", msg.Preview())

	err := loop.turner.SubmitTurn(ctx, msg.Content())
	switch {
	case err == nil:
	case errors.Is(err, ErrPersist):
		slog.Warn("Chat history was not saved for this turn", "source", msg.Source(), "err", err)
	case errors.Is(err, ErrProvider):
		slog.Warn("No reply for this turn", "source", msg.Source(), "err", err)
	default:
		slog.Error("Turn error", "source", msg.Source(), "err", err)
	}
}
