package schema

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Role identifies the speaker of a message. The set is closed; every switch
// over Role must handle all three values.
type Role int

const (
	RoleSystem Role = iota
	RoleAssistant
	RoleUser
)

func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleAssistant:
		return "assistant"
	case RoleUser:
		return "user"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole accepts the lower-case wire names and the capitalised names used
// by older preset files.
func ParseRole(s string) (Role, error) {
	switch s {
	case "system", "System":
		return RoleSystem, nil
	case "assistant", "Assistant":
		return RoleAssistant, nil
	case "user", "User":
		return RoleUser, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalJSON() ([]byte, error) {
	switch r {
	case RoleSystem, RoleAssistant, RoleUser:
		return json.Marshal(r.String())
	}
	return nil, fmt.Errorf("marshal role: invalid value %d", int(r))
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("role must be a string: %w", err)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalYAML and UnmarshalYAML let preset files written in YAML use the
// same role names as JSON.
func (r Role) MarshalYAML() (any, error) { return r.String(), nil }

func (r *Role) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("line %d: role must be a string: %w", value.Line, err)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Message is one entry in a transcript. Treat it as a value; it is never
// modified after construction.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Size is the budget weight of the message: the number of Unicode code
// points in Content. It is a stand-in for tokens, not a token count.
func (m Message) Size() int {
	return utf8.RuneCountInString(m.Content)
}
