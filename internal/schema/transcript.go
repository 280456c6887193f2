package schema

// Transcript is an ordered list of messages. The zero value is empty and
// ready for use.
type Transcript struct {
	msgs []Message
}

// NewTranscript returns a Transcript holding a copy of msgs.
func NewTranscript(msgs ...Message) Transcript {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return Transcript{msgs: out}
}

// Append adds a message at the end.
func (t *Transcript) Append(role Role, content string) {
	t.msgs = append(t.msgs, Message{Role: role, Content: content})
}

// Add appends an existing message value.
func (t *Transcript) Add(m Message) {
	t.msgs = append(t.msgs, m)
}

// TotalSize sums Size over every message. It rescans on each call.
func (t Transcript) TotalSize() int {
	total := 0
	for _, m := range t.msgs {
		total += m.Size()
	}
	return total
}

func (t Transcript) Len() int { return len(t.msgs) }

// At returns the i-th message. It panics when i is out of range.
func (t Transcript) At(i int) Message { return t.msgs[i] }

// Messages returns a copy of the underlying slice.
func (t Transcript) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Clone returns an independent copy; appending to either side does not
// affect the other.
func (t Transcript) Clone() Transcript {
	return NewTranscript(t.msgs...)
}

// Last returns the final message and false when the transcript is empty.
func (t Transcript) Last() (Message, bool) {
	if len(t.msgs) == 0 {
		return Message{}, false
	}
	return t.msgs[len(t.msgs)-1], true
}
