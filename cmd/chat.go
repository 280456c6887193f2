package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/duetvoice/duet/internal/console"
	"github.com/duetvoice/duet/internal/dependency"
)

var (
	chatMessage string
	chatLogs    bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the character in the terminal",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
	chatCmd.Flags().BoolVar(&chatLogs, "logs", false, "Show runtime logs")
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logCloser := setupLogging(cfg, chatLogs)
	defer logCloser.Close()

	container, err := dependency.New(cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	ctrl := container.Controller()
	con := console.New(os.Stdin, os.Stdout, container.MessageBus(), ctrl.CharacterName())
	ctrl.Observe(con)
	ctrl.OnReply(con.Reply)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if chatMessage != "" {
		return runSingleMessage(ctx, container)
	}
	return runInteractive(ctx, container, con)
}

// runSingleMessage runs one turn and speaks the reply before returning.
func runSingleMessage(ctx context.Context, container *dependency.Container) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if err := container.Controller().SubmitTurn(ctx, chatMessage); err != nil {
		return err
	}
	if speaker := container.Speaker(); speaker != nil {
		speaker.Flush(ctx)
	}
	return nil
}

// runInteractive runs the REPL next to the turn loop, the speaker and the
// idle watcher until the user quits.
func runInteractive(ctx context.Context, container *dependency.Container, con *console.Console) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return container.Loop().Run(gctx) })
	g.Go(func() error { return container.IdleWatcher().Start(gctx) })
	if speaker := container.Speaker(); speaker != nil {
		g.Go(func() error { return speaker.Run(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return con.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}
