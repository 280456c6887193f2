package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/duetvoice/duet/internal/config"
)

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage character presets",
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List preset files next to the active preset",
	RunE:  runPresetList,
}

func init() {
	presetCmd.AddCommand(presetListCmd)
}

func runPresetList(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	paths, err := config.ListPresets(filepath.Dir(cfg.PresetPath))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("No presets. Run: duet onboard")
		return nil
	}

	active, _ := filepath.Abs(cfg.PresetPath)
	for _, p := range paths {
		abs, _ := filepath.Abs(p)
		name := "?"
		if preset, err := config.LoadPreset(p); err == nil {
			name = preset.Content().CharacterName
		}
		current := " "
		if abs == active {
			current = "*"
		}
		fmt.Printf("%s %-40s %s\n", current, p, name)
	}
	return nil
}
