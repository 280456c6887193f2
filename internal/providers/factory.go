package providers

import (
	"fmt"
	"time"

	"github.com/duetvoice/duet/internal/schema"
)

// Kind selects the completion backend.
type Kind string

const (
	KindLocal  Kind = "local"
	KindOnline Kind = "online"
)

// Params are the raw values needed to construct any schema.CompletionProvider.
// Extracted from config.Config by the caller to avoid an import cycle.
type Params struct {
	Kind Kind

	// Online.
	APIKey  string
	APIBase string
	Model   string
	Stream  bool
	Timeout time.Duration

	// Local.
	ServerURL    string
	Seed         int
	OutputFilter []string
}

// New creates the provider for p.Kind.
func New(p Params) (schema.CompletionProvider, error) {
	switch p.Kind {
	case KindOnline:
		return NewOpenAIProvider(p.APIKey, p.APIBase, p.Model, p.Stream, p.Timeout), nil
	case KindLocal:
		return NewLlamaProvider(p.ServerURL, p.Seed, p.OutputFilter), nil
	default:
		return nil, fmt.Errorf("unknown model type %q (want %q or %q)", p.Kind, KindLocal, KindOnline)
	}
}
