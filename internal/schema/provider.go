package schema

import "context"

// SamplingConfig carries the generation parameters for one completion.
type SamplingConfig struct {
	Temperature float64
	// Stop lists sequences that end generation when produced.
	Stop []string
	// MaxTokens caps the reply length; -1 means unbounded.
	MaxTokens int
}

// NewSamplingConfig returns a config with MaxTokens unbounded.
func NewSamplingConfig(temperature float64, stop ...string) SamplingConfig {
	return SamplingConfig{
		Temperature: temperature,
		Stop:        stop,
		MaxTokens:   -1,
	}
}

// ChunkStream yields the text fragments of one completion in order. Next
// returns io.EOF once the completion is finished. A stream is consumed once
// and cannot be restarted. Close releases the underlying connection and is
// safe to call after EOF.
type ChunkStream interface {
	Next() (string, error)
	Close() error
}

// CompletionProvider produces a reply for the given history. history is
// read-only for the provider.
type CompletionProvider interface {
	StreamComplete(ctx context.Context, history Transcript, cfg SamplingConfig) (ChunkStream, error)
	Name() string
}
