package schema

// ChatSnapshot is the on-disk shape of a persisted conversation and of the
// chat content embedded in a character preset.
type ChatSnapshot struct {
	CharacterName string    `json:"characterName" yaml:"characterName"`
	YourName      string    `json:"yourName,omitempty" yaml:"yourName,omitempty"`
	Messages      []Message `json:"messages" yaml:"messages"`
}

// NewChatSnapshot copies t into a snapshot tagged with the given names.
func NewChatSnapshot(characterName, yourName string, t Transcript) ChatSnapshot {
	return ChatSnapshot{
		CharacterName: characterName,
		YourName:      yourName,
		Messages:      t.Messages(),
	}
}

// Transcript rebuilds a transcript from the snapshot's messages.
func (s ChatSnapshot) Transcript() Transcript {
	return NewTranscript(s.Messages...)
}
