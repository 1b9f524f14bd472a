package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestWatchScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yml")
	write := func(data string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("lines:\n  - {speaker: a, text: one}\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prepared := 0
	prepare := func(sc *script) (*script, error) {
		prepared++
		return sc, nil
	}
	changes, err := watchScript(ctx, path, prepare, log.New(io.Discard))
	if err != nil {
		t.Fatalf("watchScript: %v", err)
	}

	// a broken version is skipped
	write("lines: [")
	write("lines:\n  - {speaker: a, text: two}\n  - {speaker: b, text: three}\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case sc := <-changes:
			if len(sc.Lines) == 2 {
				if prepared == 0 {
					t.Error("prepare was not applied")
				}
				cancel()
				for range changes {
				}
				return
			}
		case <-deadline:
			t.Fatal("no reload received")
		}
	}
}

func TestWatchScript_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "scene.yml")
	if _, err := watchScript(context.Background(), path, nil, log.New(io.Discard)); err == nil {
		t.Error("expected an error for a missing directory")
	}
}
