// Package cmd implements the duet CLI using cobra.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/duetvoice/duet/internal/config"
	"github.com/duetvoice/duet/internal/logging"
)

const version = "0.1.0"
const logo = "🎙"

var configPath string

// rootCmd is the base command. Without a subcommand it starts the mode
// named by textInputMode.
var rootCmd = &cobra.Command{
	Use:   "duet",
	Short: logo + " duet: a voice and text AI companion",
	Long:  logo + " duet talks with you as a character, by keyboard or by voice, using a local or online model",
	RunE:  runDefault,
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.ConfigPath(), "Config file")

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(presetCmd)
}

func runDefault(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.TextInputMode == config.InputVoice {
		return runServe(cmd, args)
	}
	return runChat(cmd, args)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// setupLogging installs the default logger. The returned closer is never nil.
func setupLogging(cfg *config.Config, toStderr bool) io.Closer {
	closer, err := logging.Setup(cfg.Log, toStderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		closer, _ = logging.Setup(config.LogConfig{Level: cfg.Log.Level}, toStderr)
	}
	return closer
}
