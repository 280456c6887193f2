package bus

import "context"

// Source names where an inbound message came from.
type Source string

const (
	SourceConsole Source = "console"
	SourceVoice   Source = "voice"
	SourceIdle    Source = "idle"
)

// Bus carries user input from every input source to the turn loop.
type Bus interface {
	// PublishInbound queues msg, blocking while the queue is full. It gives
	// up when ctx is done.
	PublishInbound(ctx context.Context, msg InboundMessage) error
	// InboundChan returns a receive-only channel for the turn loop.
	InboundChan() <-chan InboundMessage
}

// MessageBus is the in-process Bus backed by a buffered Go channel.
type MessageBus struct {
	inbound chan InboundMessage
}

func NewMessageBus(bufSize int) *MessageBus {
	return &MessageBus{
		inbound: make(chan InboundMessage, bufSize),
	}
}

func (b *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	select {
	case b.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MessageBus) InboundChan() <-chan InboundMessage {
	return b.inbound
}

// Pending reports how many messages are waiting.
func (b *MessageBus) Pending() int { return len(b.inbound) }
