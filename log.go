package main

import (
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/config"
	"github.com/dgnsrekt/parley/internal/logging"
	gap "github.com/muesli/go-app-paths"
)

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, "parley").CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "parley.log"), nil
}

// setupLog points the default logger at the configured log file, or the
// user cache dir when none is set, so log output never mixes with the TUI.
func setupLog(c config.Config) (io.Closer, error) {
	path := c.LogFile
	if path == "" {
		var err error
		if path, err = getLogFilePath(); err != nil {
			return nil, err
		}
	}

	logger, closer, err := logging.Setup(c.LogLevel, path)
	if err != nil {
		return nil, err
	}
	log.SetDefault(logger)
	return closer, nil
}
