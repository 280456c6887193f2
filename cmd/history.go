package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/duetvoice/duet/internal/config"
	"github.com/duetvoice/duet/internal/console"
	"github.com/duetvoice/duet/internal/schema"
	"github.com/duetvoice/duet/internal/session"
	"github.com/duetvoice/duet/internal/shared/llmutils"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent turns, or the saved chat history when nothing is archived",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "number", "n", 10, "Number of turns to show")
}

func runHistory(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return showHistory(os.Stdout, cfg, historyLimit)
}

func showHistory(w io.Writer, cfg *config.Config, limit int) error {
	if exists(cfg.ArchivePath) {
		shown, err := printArchive(w, cfg.ArchivePath, limit)
		if err != nil {
			// A running chat or serve holds the archive lock.
			slog.Warn("Archive unavailable, showing saved chat history", "err", err)
		}
		if shown {
			return nil
		}
	}

	snap, err := session.NewSnapshotStore(cfg.HistoryDir).Load()
	if err != nil {
		return fmt.Errorf("no history yet: %w", err)
	}
	for _, m := range snap.Messages {
		speaker := m.Role.String()
		switch m.Role {
		case schema.RoleAssistant:
			speaker = snap.CharacterName
		case schema.RoleUser:
			speaker = llmutils.StringOrDefault(snap.YourName, "You")
		}
		console.PrintMessage(w, speaker, m.Content)
	}
	return nil
}

func printArchive(w io.Writer, path string, limit int) (bool, error) {
	archive, err := session.OpenArchive(path)
	if err != nil {
		return false, err
	}
	defer archive.Close()

	recs, err := archive.Recent(limit)
	if err != nil {
		return false, err
	}
	// Oldest first reads like a conversation.
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		console.PrintExchange(w, r.At.Local().Format(time.DateTime), r.Character, r.User, r.Assistant)
	}
	return len(recs) > 0, nil
}
