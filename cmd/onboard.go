package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/duetvoice/duet/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Create the config and character preset files",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	if exists(configPath) {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		fmt.Scanln()
		existing, loadErr := config.Load(configPath)
		if loadErr != nil {
			def := config.DefaultConfig()
			existing = &def
		}
		if err := config.Save(existing, configPath); err != nil {
			return err
		}
		fmt.Printf("✓ Config refreshed at %s\n", configPath)
	} else {
		cfg := config.DefaultConfig()
		if err := config.Save(&cfg, configPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if !exists(cfg.PresetPath) {
		if _, err := config.LoadPreset(cfg.PresetPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created character preset at %s\n", cfg.PresetPath)
	}
	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	fmt.Printf("\n%s duet is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Describe your character in %s\n", cfg.PresetPath)
	fmt.Printf("  2. Pick modelType \"local\" or \"online\" in %s\n", configPath)
	fmt.Printf("  3. Chat: duet chat -m \"Hello!\"\n")
	return nil
}
