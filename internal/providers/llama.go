package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/duetvoice/duet/internal/schema"
)

const defaultLlamaURL = "http://127.0.0.1:8080"

// LlamaProvider drives a local llama.cpp server through its native
// /completion endpoint. The transcript is rendered with the ChatML template
// and the streamed text is cleaned with the output keyword filter.
type LlamaProvider struct {
	serverURL    string
	seed         int
	outputFilter []string
	httpClient   *http.Client
}

// NewLlamaProvider creates a provider for the server at serverURL. A nil
// outputFilter selects DefaultOutputFilter; an empty one disables filtering.
func NewLlamaProvider(serverURL string, seed int, outputFilter []string) *LlamaProvider {
	if serverURL == "" {
		serverURL = defaultLlamaURL
	}
	if outputFilter == nil {
		outputFilter = DefaultOutputFilter
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// Prompt processing happens before the first byte arrives.
	transport.ResponseHeaderTimeout = 5 * time.Minute

	return &LlamaProvider{
		serverURL:    strings.TrimRight(serverURL, "/"),
		seed:         seed,
		outputFilter: outputFilter,
		httpClient:   &http.Client{Transport: transport},
	}
}

func (p *LlamaProvider) Name() string { return "llama:" + p.serverURL }

// StreamComplete implements schema.CompletionProvider.
func (p *LlamaProvider) StreamComplete(
	ctx context.Context,
	history schema.Transcript,
	cfg schema.SamplingConfig,
) (schema.ChunkStream, error) {
	stop := cfg.Stop
	if len(stop) == 0 {
		stop = DefaultAntiPrompts
	}
	nPredict := cfg.MaxTokens
	if nPredict <= 0 {
		nPredict = -1
	}

	body := map[string]any{
		"prompt":       renderChatML(history),
		"stream":       true,
		"n_predict":    nPredict,
		"temperature":  cfg.Temperature,
		"seed":         p.seed,
		"stop":         stop,
		"cache_prompt": true,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal llama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/completion", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build llama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llama HTTP request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, newHTTPError("llama", resp.StatusCode, raw)
	}

	return &llamaStream{
		body:   resp.Body,
		sse:    newSSEScanner(resp.Body),
		filter: newKeywordFilter(p.outputFilter),
	}, nil
}

// Health reports whether the server has a model loaded and is ready.
func (p *LlamaProvider) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llama health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return newHTTPError("llama", resp.StatusCode, raw)
	}
	return nil
}

type llamaChunk struct {
	Content string `json:"content"`
	Stop    bool   `json:"stop"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type llamaStream struct {
	body   io.ReadCloser
	sse    *sseScanner
	filter *keywordFilter
	done   bool
	tail   string
}

func (s *llamaStream) Next() (string, error) {
	for {
		if s.done {
			if s.tail != "" {
				out := s.tail
				s.tail = ""
				return out, nil
			}
			return "", io.EOF
		}

		if !s.sse.Next() {
			if err := s.sse.Err(); err != nil {
				return "", fmt.Errorf("read llama stream: %w", err)
			}
			s.finish()
			continue
		}
		if s.sse.Data() == sseDone {
			s.finish()
			continue
		}

		var chunk llamaChunk
		if err := json.Unmarshal([]byte(s.sse.Data()), &chunk); err != nil {
			return "", fmt.Errorf("parse llama chunk: %w", err)
		}
		if chunk.Error != nil {
			return "", fmt.Errorf("llama: %s", chunk.Error.Message)
		}
		out := s.filter.Push(chunk.Content)
		if chunk.Stop {
			s.finish()
		}
		if out != "" {
			return out, nil
		}
	}
}

func (s *llamaStream) finish() {
	s.done = true
	s.tail = s.filter.Flush()
}

func (s *llamaStream) Close() error { return s.body.Close() }
