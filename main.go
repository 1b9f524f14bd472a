// Package main provides the entry point for the parley CLI application.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/config"
	"github.com/dgnsrekt/parley/internal/logging"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	logLevel   string

	// cfg is loaded before any subcommand runs.
	cfg       config.Config
	logCloser io.Closer

	rootCmd = &cobra.Command{
		Use:   "parley",
		Short: "Play prioritized dialogue with subtitles and lip sync",
		Long: paragraph(
			fmt.Sprintf("\nPlay dialogue scripts through a %s scheduler, with subtitles and lip sync.", keyword("priority-preemptive")),
		),
		SilenceErrors:     false,
		SilenceUsage:      true,
		TraverseChildren:  true,
		PersistentPreRunE: loadConfig,
	}
)

func loadConfig(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	c, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = c

	closer, err := setupLog(cfg)
	if err != nil {
		return err
	}
	logCloser = closer

	log.Debug("Configuration loaded", "file", viper.ConfigFileUsed(), "engine", cfg.TTS.Engine, "backend", cfg.Audio.Backend)
	return nil
}

func main() {
	err := rootCmd.Execute()
	if logCloser != nil {
		_ = logCloser.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&playEngine, "engine", "e", "", "synthesis engine (mock, piper), overrides the config")

	playCmd.Flags().StringVarP(&playBackend, "backend", "b", "", "audio backend (oto, mock), overrides the config")
	playCmd.Flags().StringSliceVarP(&playSpeakers, "speaker", "s", nil, "only play lines of matching speakers (fuzzy)")
	playCmd.Flags().BoolVarP(&playWatch, "watch", "w", false, "restart when the script changes")
	playCmd.Flags().BoolVar(&playPlain, "plain", false, "print subtitles as log lines instead of the TUI")
	playCmd.Flags().BoolVar(&playNoLipSync, "no-lipsync", false, "disable lip sync")
	playCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel (TUI-mode only)")
	_ = playCmd.Flags().MarkHidden("mouse")

	checkCmd.Flags().BoolVarP(&checkQuick, "quick", "q", false, "only check that the engine binary is installed")

	// Config bindings
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(playCmd, checkCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "parley")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "parley")}, dirs...)
	}

	if c := os.Getenv("PARLEY_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("parley")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("parley")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	configFile = filepath.Join(dirs[0], "parley.yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}

// configuredLevel returns the configured log level for loggers built
// outside setupLog.
func configuredLevel() log.Level {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
