package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/duetvoice/duet/internal/schema"
)

const (
	defaultOpenAIBase = "https://api.openai.com/v1"
	// placeholderAPIKey is sent when no key is configured. Local
	// OpenAI-compatible servers often reject an empty bearer token.
	placeholderAPIKey = "123456"
)

// OpenAIProvider talks to any OpenAI-compatible /chat/completions endpoint.
// By default it makes one blocking call per turn and yields the reply as a
// single chunk; with streaming enabled it relays the SSE deltas.
type OpenAIProvider struct {
	apiKey     string
	apiBase    string
	model      string
	stream     bool
	timeout    time.Duration
	httpClient *http.Client
}

// NewOpenAIProvider constructs a provider from raw config values.
// apiBase may be given with or without the trailing /v1.
func NewOpenAIProvider(apiKey, apiBase, model string, stream bool, timeout time.Duration) *OpenAIProvider {
	if apiKey == "" {
		apiKey = placeholderAPIKey
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &OpenAIProvider{
		apiKey:     apiKey,
		apiBase:    normalizeAPIBase(apiBase),
		model:      model,
		stream:     stream,
		timeout:    timeout,
		httpClient: &http.Client{Transport: transport},
	}
}

func (p *OpenAIProvider) Name() string { return "openai:" + p.model }

// StreamComplete implements schema.CompletionProvider.
func (p *OpenAIProvider) StreamComplete(
	ctx context.Context,
	history schema.Transcript,
	cfg schema.SamplingConfig,
) (schema.ChunkStream, error) {
	body := map[string]any{
		"model":       p.model,
		"messages":    toWireMessages(history),
		"temperature": cfg.Temperature,
	}
	if cfg.MaxTokens > 0 {
		body["max_tokens"] = cfg.MaxTokens
	}
	if len(cfg.Stop) > 0 {
		body["stop"] = cfg.Stop
	}
	if p.stream {
		body["stream"] = true
		return p.openStream(ctx, body)
	}
	return p.complete(ctx, body)
}

func (p *OpenAIProvider) complete(ctx context.Context, body map[string]any) (schema.ChunkStream, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	text, err := parseOpenAIResponse(raw)
	if err != nil {
		return nil, err
	}
	return newTextStream(text), nil
}

func (p *OpenAIProvider) openStream(ctx context.Context, body map[string]any) (schema.ChunkStream, error) {
	resp, err := p.post(ctx, body)
	if err != nil {
		return nil, err
	}
	return &openAIStream{body: resp.Body, sse: newSSEScanner(resp.Body)}, nil
}

// post sends the request and returns the response only for a 200 answer.
func (p *OpenAIProvider) post(ctx context.Context, body map[string]any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.apiBase+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if p.stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, newHTTPError("openai", resp.StatusCode, raw)
	}
	return resp, nil
}

// ---------------------------------------------------------------------------
// Wire format
// ---------------------------------------------------------------------------

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func toWireMessages(history schema.Transcript) []wireMessage {
	out := make([]wireMessage, 0, history.Len())
	for _, m := range history.Messages() {
		out = append(out, wireMessage{Role: wireRole(m.Role), Content: m.Content})
	}
	return out
}

func wireRole(r schema.Role) string {
	switch r {
	case schema.RoleSystem:
		return "system"
	case schema.RoleAssistant:
		return "assistant"
	case schema.RoleUser:
		return "user"
	}
	panic(fmt.Sprintf("unhandled role %d", int(r)))
}

// openAIRespBody is the subset of the chat completion response we care about.
type openAIRespBody struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func parseOpenAIResponse(raw []byte) (string, error) {
	var body openAIRespBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("parse OpenAI response: %w", err)
	}
	if body.Error != nil {
		return "", fmt.Errorf("openai: %s", body.Error.Message)
	}
	if len(body.Choices) == 0 {
		return "", errors.New("empty choices in response")
	}
	return body.Choices[0].Message.Content, nil
}

// openAIStream relays content deltas from a streaming chat completion.
type openAIStream struct {
	body io.ReadCloser
	sse  *sseScanner
	done bool
}

func (s *openAIStream) Next() (string, error) {
	for !s.done {
		if !s.sse.Next() {
			s.done = true
			if err := s.sse.Err(); err != nil {
				return "", fmt.Errorf("read stream: %w", err)
			}
			break
		}
		data := s.sse.Data()
		if data == sseDone {
			s.done = true
			break
		}

		var chunk openAIRespBody
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", fmt.Errorf("parse stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return "", fmt.Errorf("openai: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
	return "", io.EOF
}

func (s *openAIStream) Close() error { return s.body.Close() }

func normalizeAPIBase(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return defaultOpenAIBase
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base
}
