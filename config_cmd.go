package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# log level: debug, info, warn or error
log_level: info
# log file (default: parley.log in the user cache dir)
# log_file: /tmp/parley.log

scheduler:
  # concurrently active lines per tier: critical, high, normal, low
  tier_limits: [1, 2, 4, 8]
  crossfade_window: 500ms
  synthesis_timeout: 30s
  # priority used when a line has none (0 critical to 3 low)
  default_priority: 2
  volume: 1.0
  # finished lines remembered for state queries
  history_size: 256
  # replace interrupt decisions, "new:current": none|immediate|crossfade|pause_and_resume
  # interrupt_overrides:
  #   "1:2": pause_and_resume

subtitle:
  # shortest time a subtitle stays up
  min_display: 3s
  # added after the spoken duration
  buffer: 1s

lipsync:
  enabled: true

tts:
  # synthesis engine: mock or piper
  engine: mock
  requests_per_minute: 60
  burst: 5
  # synthesis cache in bytes, 0 disables it
  cache_size: 67108864
  # zstd level for cached audio, 0 stores it uncompressed
  compression_level: 3

  mock:
    words_per_minute: 160
    delay: 0s

  piper:
    binary: piper
    # model_path: ~/.local/share/piper/models/en_US-lessac-medium.onnx
    # config_path: ~/.local/share/piper/models/en_US-lessac-medium.onnx.json
    sample_rate: 22050
    speed: 1.0
    timeout: 30s
    # speaker numbers of a multi-speaker model, keyed by speaker id
    # voices:
    #   guard: 3

audio:
  # playback backend: oto or mock
  backend: oto
  # 44100 or 48000
  sample_rate: 44100
  channels: 2
  buffer_size: 4096
  # category_gain:
  #   voice: 1.0
  #   music: 0.5
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the parley config file",
	Long:    paragraph(fmt.Sprintf("\n%s the parley config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("parley config\nparley config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Parley", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
