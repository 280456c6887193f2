package providers

import (
	"strings"

	"github.com/duetvoice/duet/internal/schema"
)

const (
	chatMLStart = "<|im_start|>"
	chatMLEnd   = "<|im_end|>"
)

// DefaultAntiPrompts stop generation at the end of the assistant's turn.
var DefaultAntiPrompts = []string{chatMLEnd}

// DefaultOutputFilter lists fragments that chat-tuned models leak into their
// replies: template tokens and role labels.
var DefaultOutputFilter = []string{
	"<|im_end|>", "<|endoftext|>",
	"assistant:", "user:", "system:",
	"Assistant:", "User:", "System:",
	"output:", "Output:",
	"assistant", "user", "system",
	"Assistant", "User", "System",
	"output",
}

// renderChatML lays the transcript out in the ChatML template used by Qwen
// models and ends with an open assistant turn for the model to complete.
func renderChatML(history schema.Transcript) string {
	var b strings.Builder
	for _, m := range history.Messages() {
		b.WriteString(chatMLStart)
		b.WriteString(chatMLRole(m.Role))
		b.WriteByte('\n')
		b.WriteString(m.Content)
		b.WriteString(chatMLEnd)
		b.WriteByte('\n')
	}
	b.WriteString(chatMLStart)
	b.WriteString(chatMLRole(schema.RoleAssistant))
	b.WriteByte('\n')
	return b.String()
}

func chatMLRole(r schema.Role) string {
	switch r {
	case schema.RoleSystem:
		return "system"
	case schema.RoleAssistant:
		return "assistant"
	case schema.RoleUser:
		return "user"
	}
	return r.String()
}
