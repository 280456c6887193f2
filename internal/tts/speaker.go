package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/duetvoice/duet/internal/config"
	"github.com/duetvoice/duet/internal/shared/llmutils"
)

// Synthesizer turns text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Speaker receives finished replies and speaks them one after another. Speak
// never blocks the caller; Run does the work.
type Speaker struct {
	synth    Synthesizer
	format   string
	audioDir string
	player   []string
	queue    chan string

	filters []*regexp.Regexp
}

// NewSpeaker builds a speaker. Patterns that fail to compile are skipped
// with a warning.
func NewSpeaker(synth Synthesizer, cfg config.TTSConfig, exceptPatterns []string) *Speaker {
	s := &Speaker{
		synth:    synth,
		format:   llmutils.StringOrDefault(cfg.Format, "wav"),
		audioDir: llmutils.StringOrDefault(cfg.AudioDir, "Audio"),
		player:   cfg.PlayerCommand,
		queue:    make(chan string, 16),
	}
	s.SetFilters(exceptPatterns)
	return s
}

// SetFilters replaces the removal patterns. Call it only while Run is not
// processing a reply, e.g. between turns on the turn goroutine.
func (s *Speaker) SetFilters(patterns []string) {
	s.filters = s.filters[:0]
	for _, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			slog.Warn("Skipping invalid speech filter", "pattern", p, "err", err)
			continue
		}
		s.filters = append(s.filters, re)
	}
}

// SpeechText prepares a reply for synthesis. Each filter removes its
// matches; if a filter leaves an empty string, the reply is used unfiltered.
// Whitespace left behind counts as text and is skipped later by say.
func (s *Speaker) SpeechText(reply string) string {
	reply = llmutils.StripThink(reply)
	out := reply
	for _, re := range s.filters {
		out = re.ReplaceAllStringFunc(out, func(m string) string {
			slog.Debug("Removed from speech", "text", m)
			return ""
		})
		if out == "" {
			out = reply
		}
	}
	return out
}

// Speak queues reply. When the queue is full the reply is dropped.
func (s *Speaker) Speak(reply string) {
	select {
	case s.queue <- reply:
	default:
		slog.Warn("Speech queue full, dropping reply", "preview", llmutils.Truncate(reply, 40))
	}
}

// Run speaks queued replies until ctx is cancelled.
func (s *Speaker) Run(ctx context.Context) error {
	for {
		select {
		case reply := <-s.queue:
			if _, err := s.say(ctx, reply); err != nil {
				slog.Error("Speech failed", "err", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Flush speaks whatever is queued and returns once the queue is empty.
// It is for one-shot use when Run is not running.
func (s *Speaker) Flush(ctx context.Context) {
	for {
		select {
		case reply := <-s.queue:
			if _, err := s.say(ctx, reply); err != nil {
				slog.Error("Speech failed", "err", err)
			}
		default:
			return
		}
	}
}

// say synthesizes one reply, stores the audio and plays it. It returns the
// audio file path.
func (s *Speaker) say(ctx context.Context, reply string) (string, error) {
	text := s.SpeechText(reply)
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.audioDir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	path := filepath.Join(s.audioDir, fmt.Sprintf("reply-%d.%s", time.Now().UnixNano(), s.format))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	slog.Info("Reply synthesized", "file", path, "bytes", len(audio))

	if len(s.player) > 0 {
		if err := s.play(ctx, path); err != nil {
			return path, err
		}
	}
	return path, nil
}

func (s *Speaker) play(ctx context.Context, path string) error {
	args := make([]string, 0, len(s.player)-1)
	for _, a := range s.player[1:] {
		args = append(args, strings.ReplaceAll(a, "{file}", path))
	}
	cmd := exec.CommandContext(ctx, s.player[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("play %s: %w: %s", path, err, strings.TrimSpace(string(out)))
	}
	return nil
}
