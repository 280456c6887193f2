package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/duetvoice/duet/internal/dependency"
	"github.com/duetvoice/duet/internal/voice"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start voice mode: sidecars, voice listener and transcript feed",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logCloser := setupLogging(cfg, true)
	defer logCloser.Close()

	container, err := dependency.New(cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	preset := container.Preset()
	if err := voice.WriteHotwords(cfg.Voice.HotwordsDir, preset.HotZhWords, preset.HotRules); err != nil {
		slog.Warn("Hot words not written", "err", err)
	}

	fmt.Printf("%s Starting duet voice mode on %s as %s...\n", logo, cfg.Voice.ListenAddr, container.Controller().CharacterName())

	// Graceful shutdown context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return container.Sidecars().Start(gctx) })
	g.Go(func() error { return container.VoiceServer().Start(gctx) })
	g.Go(func() error { return container.Loop().Run(gctx) })
	g.Go(func() error { return container.IdleWatcher().Start(gctx) })
	if speaker := container.Speaker(); speaker != nil {
		g.Go(func() error { return container.TTSMonitor().Start(gctx) })
		g.Go(func() error { return speaker.Run(gctx) })
	}

	fmt.Printf("%s Voice mode running. Feed at ws://%s/ws. Press Ctrl+C to stop.\n", logo, cfg.Voice.ListenAddr)

	err = g.Wait()
	container.Feed().Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "serve error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
