// Package tts speaks replies through a Bert-VITS2 HTTP service.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/duetvoice/duet/internal/config"
)

// Client calls the speech service.
type Client struct {
	baseURL    string
	cfg        config.TTSConfig
	httpClient *http.Client
}

func NewClient(cfg config.TTSConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// IsOnline asks the service whether its model is ready.
func (c *Client) IsOnline(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voice/is_voice_service_online", nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("tts status: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("tts status: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var body statusBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return false, fmt.Errorf("tts status: parse: %w", err)
	}
	return body.Status == "success", nil
}

type synthRequest struct {
	Text        string  `json:"text"`
	ID          int     `json:"id"`
	Format      string  `json:"format"`
	Lang        string  `json:"lang"`
	Length      float64 `json:"length"`
	Noise       float64 `json:"noise"`
	Noisew      float64 `json:"noisew"`
	SdpRatio    float64 `json:"sdp_ratio"`
	SegmentSize int     `json:"segment_size"`
	Streaming   bool    `json:"streaming"`
}

// Synthesize returns encoded audio in the configured format.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	data, err := json.Marshal(synthRequest{
		Text:        text,
		ID:          c.cfg.ID,
		Format:      c.cfg.Format,
		Lang:        c.cfg.Lang,
		Length:      c.cfg.Length,
		Noise:       c.cfg.Noise,
		Noisew:      c.cfg.Noisew,
		SdpRatio:    c.cfg.SdpRatio,
		SegmentSize: c.cfg.SegmentSize,
		Streaming:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voice/bert-vits2", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(audio))
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return nil, fmt.Errorf("tts request: HTTP %d: %s", resp.StatusCode, msg)
	}
	return audio, nil
}
