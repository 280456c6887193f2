// Package bus moves user input from the console, the voice listener and the
// idle watcher to the single goroutine that runs conversation turns.
package bus

import (
	"time"

	"github.com/duetvoice/duet/internal/shared/llmutils"
)

// InboundMessage is one piece of user input.
type InboundMessage struct {
	source    Source
	content   string
	timestamp time.Time
	handled   chan struct{}
}

// NewInboundMessage creates an InboundMessage with the timestamp set to now.
func NewInboundMessage(source Source, content string) InboundMessage {
	return InboundMessage{
		source:    source,
		content:   content,
		timestamp: time.Now(),
	}
}

// Tracked returns a copy of m whose Handled channel closes once the turn
// loop is done with it.
func (m InboundMessage) Tracked() InboundMessage {
	m.handled = make(chan struct{})
	return m
}

// Handled is nil for untracked messages.
func (m InboundMessage) Handled() <-chan struct{} { return m.handled }

// MarkHandled closes the Handled channel of a tracked message. Call it once.
func (m InboundMessage) MarkHandled() {
	if m.handled != nil {
		close(m.handled)
	}
}

func (m InboundMessage) Source() Source       { return m.source }
func (m InboundMessage) Content() string      { return m.content }
func (m InboundMessage) Timestamp() time.Time { return m.timestamp }

// Preview returns a short snippet of the content for logging.
func (m InboundMessage) Preview() string {
	return llmutils.Truncate(m.content, 80)
}
