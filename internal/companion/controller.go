// Package companion runs conversation turns against a completion provider.
//
// A turn is: trim the rolling transcript to the context budget, save a
// snapshot that already contains the new user message, stream the reply,
// append it, save again, then hand the full reply to the reply callbacks.
package companion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/duetvoice/duet/internal/history"
	"github.com/duetvoice/duet/internal/schema"
	"github.com/duetvoice/duet/internal/session"
	"github.com/duetvoice/duet/internal/shared/llmutils"
)

// State is the step a controller is currently executing.
type State int32

const (
	StateIdle State = iota
	StateTrimming
	StatePersistingPre
	StateStreaming
	StatePersistingPost
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTrimming:
		return "trimming"
	case StatePersistingPre:
		return "persisting-pre"
	case StateStreaming:
		return "streaming"
	case StatePersistingPost:
		return "persisting-post"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SnapshotSink persists the whole conversation, replacing what it held.
type SnapshotSink interface {
	Save(schema.ChatSnapshot) error
}

// TurnRecorder archives completed turns. Failures are logged only.
type TurnRecorder interface {
	Record(session.TurnRecord) error
}

// Observer sees a turn as it happens. Chunk receives streamed fragments;
// the assembled reply goes to the callbacks registered with OnReply.
type Observer interface {
	TurnStarted(text string)
	Chunk(fragment string)
	TurnFailed(err error)
}

// ReplyFunc receives the full reply text once per successful turn.
type ReplyFunc func(text string)

// Settings tunes a controller.
type Settings struct {
	// Budget is the context size in characters shared by the history and
	// the pending user message.
	Budget   int
	Sampling schema.SamplingConfig
}

// Controller owns one conversation.
//
// Turns must not overlap: callers must wait for SubmitTurn to return before
// calling it again or calling LoadPreset. The transcripts are not guarded by
// a lock. LastInferTime and State may be read from any goroutine.
type Controller struct {
	provider schema.CompletionProvider
	sink     SnapshotSink
	settings Settings

	recorder  TurnRecorder
	observers []Observer
	replies   []ReplyFunc

	characterName string
	yourName      string
	preset        schema.Transcript
	rolling       schema.Transcript

	lastInfer atomic.Int64
	state     atomic.Int32

	now func() time.Time
}

// NewController creates a controller with an empty preset.
func NewController(provider schema.CompletionProvider, sink SnapshotSink, settings Settings) *Controller {
	return &Controller{
		provider: provider,
		sink:     sink,
		settings: settings,
		now:      time.Now,
	}
}

// SetRecorder attaches an archive for completed turns.
func (c *Controller) SetRecorder(r TurnRecorder) { c.recorder = r }

// Observe registers o for turn events.
func (c *Controller) Observe(o Observer) { c.observers = append(c.observers, o) }

// OnReply registers a reply callback.
func (c *Controller) OnReply(fn ReplyFunc) { c.replies = append(c.replies, fn) }

// LoadPreset replaces the persona. Both transcripts are rebuilt and the
// rolling history starts over as a copy of the preset.
func (c *Controller) LoadPreset(content schema.ChatSnapshot) {
	c.characterName = content.CharacterName
	c.yourName = content.YourName
	c.preset = content.Transcript()
	c.rolling = c.preset.Clone()

	slog.Info("Preset loaded",
		"character", c.characterName,
		"messages", c.preset.Len(),
		"size", c.preset.TotalSize(),
	)
	if size := c.preset.TotalSize(); size > c.settings.Budget {
		slog.Warn("Preset is larger than the context budget", "size", size, "budget", c.settings.Budget)
	}
}

func (c *Controller) CharacterName() string { return c.characterName }

// Transcript returns a copy of the rolling history.
func (c *Controller) Transcript() schema.Transcript { return c.rolling.Clone() }

// LastInferTime is when the most recent turn started. Zero before the first.
func (c *Controller) LastInferTime() time.Time {
	ns := c.lastInfer.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (c *Controller) State() State { return State(c.state.Load()) }

// Busy reports whether a turn is in progress.
func (c *Controller) Busy() bool {
	s := c.State()
	return s != StateIdle && s != StateFailed
}

func (c *Controller) setState(s State) { c.state.Store(int32(s)) }

// SubmitTurn runs one turn for the user's text.
//
// A provider failure leaves the user message in the history without a reply
// and skips the second snapshot and the callbacks. A snapshot failure is
// reported as is; nothing already applied to the history is undone.
func (c *Controller) SubmitTurn(ctx context.Context, text string) (err error) {
	c.lastInfer.Store(c.now().UnixNano())
	turnID := uuid.NewString()
	log := slog.With("turn", turnID)

	defer func() {
		if err != nil {
			c.setState(StateFailed)
			log.Error("Turn failed", "err", err)
			for _, o := range c.observers {
				o.TurnFailed(err)
			}
			return
		}
		c.setState(StateIdle)
	}()

	log.Info("Processing message", "character", c.characterName, "preview", llmutils.Truncate(text, 80))

	c.setState(StateTrimming)
	pending := schema.NewUserMessage(text)
	res := history.Trim(c.preset, c.rolling, pending, c.settings.Budget)
	if res.PresetOverBudget {
		log.Warn("Preset alone exceeds the context budget",
			"preset", c.preset.TotalSize(), "budget", c.settings.Budget)
	}
	if res.Trimmed {
		log.Info("History trimmed", "dropped", res.Dropped, "kept", res.Transcript.Len())
	}
	c.rolling = res.Transcript

	c.setState(StatePersistingPre)
	pre := c.rolling.Clone()
	pre.Add(pending)
	if err := c.sink.Save(c.snapshot(pre)); err != nil {
		return &TurnError{Stage: StagePersistPre, Err: err}
	}

	c.rolling.Add(pending)
	for _, o := range c.observers {
		o.TurnStarted(text)
	}

	c.setState(StateStreaming)
	full, err := c.stream(ctx)
	if err != nil {
		return &TurnError{Stage: StageStream, Err: err}
	}

	c.rolling.Append(schema.RoleAssistant, full)

	c.setState(StatePersistingPost)
	if err := c.sink.Save(c.snapshot(c.rolling)); err != nil {
		return &TurnError{Stage: StagePersistPost, Err: err}
	}

	log.Info("Turn complete", "reply", llmutils.Truncate(llmutils.OneLine(full), 120))
	c.record(log, turnID, text, full)

	for _, fn := range c.replies {
		fn(full)
	}
	return nil
}

// stream drains one completion. Any error, including ctx ending mid-stream,
// abandons the whole reply.
func (c *Controller) stream(ctx context.Context) (string, error) {
	chunks, err := c.provider.StreamComplete(ctx, c.rolling.Clone(), c.settings.Sampling)
	if err != nil {
		return "", err
	}
	defer chunks.Close()

	var full strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		chunk, err := chunks.Next()
		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			return "", err
		}
		full.WriteString(chunk)
		for _, o := range c.observers {
			o.Chunk(chunk)
		}
	}
}

func (c *Controller) snapshot(t schema.Transcript) schema.ChatSnapshot {
	return schema.NewChatSnapshot(c.characterName, c.yourName, t)
}

func (c *Controller) record(log *slog.Logger, id, user, reply string) {
	if c.recorder == nil {
		return
	}
	err := c.recorder.Record(session.TurnRecord{
		ID:        id,
		Character: c.characterName,
		User:      user,
		Assistant: reply,
		At:        c.now(),
	})
	if err != nil {
		log.Warn("Failed to archive turn", "err", err)
	}
}
