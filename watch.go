package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// watchScript reloads the script at path whenever it is written and sends
// each version that parses, after applying prepare. Parse errors are
// logged and skipped. The channel is closed when ctx is done.
func watchScript(ctx context.Context, path string, prepare func(*script) (*script, error), logger *log.Logger) (<-chan *script, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("unable to create watcher: %w", err)
	}
	// editors often replace the file, so watch the directory
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("unable to watch %s: %w", path, err)
	}

	out := make(chan *script, 1)
	go func() {
		defer close(out)
		defer watcher.Close() //nolint:errcheck

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				logger.Debug("Script changed on disk", "path", event.Name, "op", event.Op)

				sc, err := loadScript(abs)
				if err == nil && prepare != nil {
					sc, err = prepare(sc)
				}
				if err != nil {
					logger.Warn("Ignoring script change", "path", path, "error", err)
					continue
				}

				// keep only the newest version
				select {
				case <-out:
				default:
				}
				out <- sc

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Watcher error", "error", err)
			}
		}
	}()

	return out, nil
}
