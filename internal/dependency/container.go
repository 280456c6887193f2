// Package dependency wires duet's services using go.uber.org/dig.
package dependency

import (
	"fmt"
	"log/slog"

	"go.uber.org/dig"

	"github.com/duetvoice/duet/internal/bus"
	"github.com/duetvoice/duet/internal/companion"
	"github.com/duetvoice/duet/internal/config"
	"github.com/duetvoice/duet/internal/feed"
	"github.com/duetvoice/duet/internal/idle"
	"github.com/duetvoice/duet/internal/providers"
	"github.com/duetvoice/duet/internal/schema"
	"github.com/duetvoice/duet/internal/session"
	"github.com/duetvoice/duet/internal/sidecar"
	"github.com/duetvoice/duet/internal/tts"
	"github.com/duetvoice/duet/internal/voice"
)

// Container holds the resolved service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	cfg        *config.Config
	preset     config.CharacterPreset
	provider   schema.CompletionProvider
	store      *session.SnapshotStore
	archive    *session.Archive
	controller *companion.Controller
	msgBus     *bus.MessageBus
	loop       *companion.Loop
	ttsClient  *tts.Client
	speaker    *tts.Speaker
	monitor    *tts.Monitor
	hub        *feed.Hub
	voice      *voice.Server
	idle       *idle.Watcher
	sidecars   *sidecar.Supervisor
}

func (c *Container) Config() *config.Config              { return c.cfg }
func (c *Container) Preset() config.CharacterPreset      { return c.preset }
func (c *Container) Provider() schema.CompletionProvider { return c.provider }
func (c *Container) SnapshotStore() *session.SnapshotStore {
	return c.store
}
func (c *Container) Controller() *companion.Controller { return c.controller }
func (c *Container) MessageBus() *bus.MessageBus       { return c.msgBus }
func (c *Container) Loop() *companion.Loop             { return c.loop }
func (c *Container) TTSClient() *tts.Client            { return c.ttsClient }
func (c *Container) TTSMonitor() *tts.Monitor          { return c.monitor }
func (c *Container) Feed() *feed.Hub                   { return c.hub }
func (c *Container) VoiceServer() *voice.Server        { return c.voice }
func (c *Container) IdleWatcher() *idle.Watcher        { return c.idle }
func (c *Container) Sidecars() *sidecar.Supervisor     { return c.sidecars }

// Speaker is nil when speech is disabled.
func (c *Container) Speaker() *tts.Speaker { return c.speaker }

// Close releases the turn archive.
func (c *Container) Close() error {
	if c.archive == nil {
		return nil
	}
	return c.archive.Close()
}

// New builds and wires all services from cfg.
func New(cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", config.ConfigPath(), err)
	}

	d := dig.New()
	for _, ctor := range []any{
		func() *config.Config { return cfg },
		newPreset,
		newProvider,
		newSnapshotStore,
		newArchive,
		newMessageBus,
		newFeedHub,
		newTTSClient,
		newSpeaker,
		newController,
		newLoop,
		newVoiceServer,
		newIdleWatcher,
		newSidecars,
	} {
		if err := d.Provide(ctor); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		preset config.CharacterPreset,
		provider schema.CompletionProvider,
		store *session.SnapshotStore,
		archive *session.Archive,
		controller *companion.Controller,
		msgBus *bus.MessageBus,
		loop *companion.Loop,
		ttsClient *tts.Client,
		speaker *tts.Speaker,
		hub *feed.Hub,
		voiceSrv *voice.Server,
		watcher *idle.Watcher,
		sidecars *sidecar.Supervisor,
	) {
		result = &Container{
			cfg:        cfg,
			preset:     preset,
			provider:   provider,
			store:      store,
			archive:    archive,
			controller: controller,
			msgBus:     msgBus,
			loop:       loop,
			ttsClient:  ttsClient,
			speaker:    speaker,
			monitor:    tts.NewMonitor(ttsClient),
			hub:        hub,
			voice:      voiceSrv,
			idle:       watcher,
			sidecars:   sidecars,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("wire services: %w", err)
	}
	return result, nil
}

func newPreset(cfg *config.Config) (config.CharacterPreset, error) {
	return config.LoadPreset(cfg.PresetPath)
}

func newProvider(cfg *config.Config) (schema.CompletionProvider, error) {
	return providers.New(providers.Params{
		Kind:         providers.Kind(cfg.ModelType),
		APIKey:       cfg.Online.APIKey,
		APIBase:      cfg.Online.URL,
		Model:        cfg.Online.Model,
		Stream:       cfg.Online.Stream,
		Timeout:      cfg.OnlineTimeout(),
		ServerURL:    cfg.Local.ServerURL,
		Seed:         cfg.Local.Seed,
		OutputFilter: cfg.Local.OutputFilter,
	})
}

func newSnapshotStore(cfg *config.Config) *session.SnapshotStore {
	return session.NewSnapshotStore(cfg.HistoryDir)
}

// newArchive never fails: without an archive turns are simply not recorded.
func newArchive(cfg *config.Config) *session.Archive {
	a, err := session.OpenArchive(cfg.ArchivePath)
	if err != nil {
		slog.Warn("Turn archive unavailable", "err", err)
		return nil
	}
	return a
}

func newMessageBus() *bus.MessageBus {
	return bus.NewMessageBus(16)
}

func newFeedHub() *feed.Hub { return feed.NewHub() }

func newTTSClient(cfg *config.Config) *tts.Client { return tts.NewClient(cfg.TTS) }

// newSpeaker returns nil when speech is disabled.
func newSpeaker(cfg *config.Config, client *tts.Client, preset config.CharacterPreset) *tts.Speaker {
	if !cfg.TTS.Enabled {
		return nil
	}
	return tts.NewSpeaker(client, cfg.TTS, preset.ExceptTextRegexExpression)
}

func newController(
	cfg *config.Config,
	preset config.CharacterPreset,
	provider schema.CompletionProvider,
	store *session.SnapshotStore,
	archive *session.Archive,
	hub *feed.Hub,
	speaker *tts.Speaker,
) *companion.Controller {
	ctrl := companion.NewController(provider, store, companion.Settings{
		Budget:   cfg.ContextBudget(),
		Sampling: cfg.Sampling(),
	})
	if archive != nil {
		ctrl.SetRecorder(archive)
	}
	ctrl.Observe(hub)
	ctrl.OnReply(hub.Reply)
	if speaker != nil {
		ctrl.OnReply(speaker.Speak)
	}
	ctrl.LoadPreset(preset.Content())
	return ctrl
}

func newLoop(b *bus.MessageBus, ctrl *companion.Controller) *companion.Loop {
	return companion.NewLoop(b, ctrl)
}

func newVoiceServer(cfg *config.Config, b *bus.MessageBus, hub *feed.Hub) *voice.Server {
	s := voice.NewServer(cfg.Voice, b)
	s.Mount("/ws", hub)
	return s
}

func newIdleWatcher(preset config.CharacterPreset, ctrl *companion.Controller, b *bus.MessageBus) *idle.Watcher {
	return idle.NewWatcher(ctrl, b, preset.IdleAskMeTime, preset.IdleAskMeMessage)
}

// newSidecars puts llama-server first when duet is asked to launch it.
func newSidecars(cfg *config.Config) (*sidecar.Supervisor, error) {
	specs := cfg.Sidecars
	if cfg.ModelType == config.ModelLocal && cfg.Local.LaunchServer {
		llama, err := cfg.Local.ServerSidecar()
		if err != nil {
			return nil, err
		}
		specs = append([]config.SidecarConfig{llama}, specs...)
	}
	return sidecar.NewSupervisor(specs), nil
}
