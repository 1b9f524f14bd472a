package main

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/config"
	"github.com/dgnsrekt/parley/internal/events"
)

// recorder collects events published on a session bus.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) items(typ events.EventType) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, e := range r.events {
		if e.Type == typ {
			ids = append(ids, e.ItemID)
		}
	}
	return ids
}

func testSession(t *testing.T) (*session, *recorder) {
	t.Helper()

	c := config.Default()
	c.Audio.Backend = config.BackendMock
	c.TTS.RequestsPerMinute = 0
	c.TTS.Mock.WordsPerMinute = 6000

	sess, err := newSession(c, "", "", log.New(io.Discard))
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })

	rec := &recorder{}
	t.Cleanup(sess.bus.SubscribeAll(rec.handle))
	return sess, rec
}

func mustParse(t *testing.T, data string) *script {
	t.Helper()
	sc, err := parseScript([]byte(data))
	if err != nil {
		t.Fatalf("parseScript: %v", err)
	}
	return sc
}

func TestDirector_PlaysScriptToIdle(t *testing.T) {
	sess, rec := testSession(t)
	sc := mustParse(t, `lines:
  - {id: one, speaker: a, text: first line}
  - {id: two, speaker: b, text: second line, at: 20ms}
  - {id: three, speaker: a, text: third line, at: 40ms, priority: 0}
`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	if err := newDirector(sess).run(ctx, sc, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("run returned only after the deadline")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("run returned after %v, before the last line was due", elapsed)
	}

	if !sess.idle() {
		t.Error("session not idle after run")
	}
	finished := rec.items(events.EventDialogueFinished)
	if len(finished) != 3 {
		t.Fatalf("finished = %v, want 3 items", finished)
	}
	for _, id := range []string{"one", "two", "three"} {
		if sess.scheduler.IsDialogueActive(id) {
			t.Errorf("%s still active", id)
		}
	}
}

func TestDirector_RestartsOnChange(t *testing.T) {
	sess, rec := testSession(t)
	first := mustParse(t, `lines:
  - {id: early, speaker: a, text: hello there}
  - {id: late, speaker: a, text: never spoken, at: 1h}
`)
	second := mustParse(t, `lines:
  - {id: again, speaker: b, text: take two}
`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	changes := make(chan *script)
	done := make(chan error, 1)
	go func() { done <- newDirector(sess).run(ctx, first, changes) }()

	waitFor(t, func() bool { return len(rec.items(events.EventDialogueFinished)) == 1 })
	changes <- second
	waitFor(t, func() bool { return contains(rec.items(events.EventDialogueFinished), "again") })

	close(changes)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("run did not return after changes closed")
	}

	for _, id := range rec.items(events.EventDialogueQueued) {
		if id == "late" {
			t.Error("line of the replaced script was played")
		}
	}
}

func TestDirector_StopsOnCancel(t *testing.T) {
	sess, _ := testSession(t)
	sc := mustParse(t, `lines:
  - {speaker: a, text: much later, at: 1h}
`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newDirector(sess).run(ctx, sc, nil) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v, want nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
