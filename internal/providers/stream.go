package providers

import "io"

// textStream is a finished completion delivered as a single chunk.
type textStream struct {
	text string
	sent bool
}

func newTextStream(text string) *textStream { return &textStream{text: text} }

func (s *textStream) Next() (string, error) {
	if s.sent {
		return "", io.EOF
	}
	s.sent = true
	return s.text, nil
}

func (s *textStream) Close() error { return nil }
