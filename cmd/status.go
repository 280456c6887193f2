package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/duetvoice/duet/internal/config"
	"github.com/duetvoice/duet/internal/providers"
	"github.com/duetvoice/duet/internal/session"
	"github.com/duetvoice/duet/internal/tts"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show duet status",
	RunE:  runStatus,
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func runStatus(_ *cobra.Command, _ []string) error {
	fmt.Printf("%s duet Status\n\n", logo)
	fmt.Printf("Config:    %s %s\n", configPath, mark(exists(configPath)))

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  (invalid: %v)\n", err)
	}

	fmt.Printf("Mode:      %s\n", cfg.TextInputMode)
	fmt.Printf("Budget:    %d characters\n", cfg.ContextBudget())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	switch cfg.ModelType {
	case config.ModelOnline:
		key := "(not set)"
		if cfg.Online.APIKey != "" {
			key = "✓"
		}
		fmt.Printf("Model:     online %s at %s, key %s\n", cfg.Online.Model, cfg.Online.URL, key)
	default:
		err := providers.NewLlamaProvider(cfg.Local.ServerURL, cfg.Local.Seed, nil).Health(ctx)
		fmt.Printf("Model:     local %s %s\n", cfg.Local.ServerURL, mark(err == nil))
	}

	preset, presetErr := loadPresetReadOnly(cfg.PresetPath)
	if presetErr != nil {
		fmt.Printf("Preset:    %s ✗ (%v)\n", cfg.PresetPath, presetErr)
	} else {
		fmt.Printf("Preset:    %s (%s, %d messages)\n", cfg.PresetPath, preset.Content().CharacterName, len(preset.ChatContent.Messages))
	}

	store := session.NewSnapshotStore(cfg.HistoryDir)
	fmt.Printf("History:   %s %s\n", store.Path(), mark(exists(store.Path())))

	if cfg.TTS.Enabled {
		online, err := tts.NewClient(cfg.TTS).IsOnline(ctx)
		fmt.Printf("Speech:    %s %s\n", cfg.TTS.URL, mark(online && err == nil))
	} else {
		fmt.Println("Speech:    disabled")
	}
	return nil
}

// loadPresetReadOnly loads the preset without creating it.
func loadPresetReadOnly(path string) (config.CharacterPreset, error) {
	if !exists(path) {
		return config.CharacterPreset{}, os.ErrNotExist
	}
	return config.LoadPreset(path)
}
