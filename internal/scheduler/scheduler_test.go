package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/audio"
	"github.com/dgnsrekt/parley/internal/events"
	"github.com/dgnsrekt/parley/internal/interrupt"
	"github.com/dgnsrekt/parley/internal/queue"
	"github.com/dgnsrekt/parley/internal/ttypes"
)

var testAudio = []byte{1, 2, 3, 4}

// fakeClock collects deferred callbacks until the test fires them.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) FireAll() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()

	for _, t := range timers {
		if !t.stopped && !t.fired {
			t.fired = true
			t.f()
		}
	}
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// recorder keeps every published event.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) finishedReason(id string) (events.FinishReason, bool) {
	for _, e := range r.ofType(events.EventDialogueFinished) {
		if e.ItemID == id {
			return e.Reason, true
		}
	}
	return "", false
}

type harness struct {
	s       *Scheduler
	backend *audio.MockBackend
	clock   *fakeClock
	rec     *recorder
}

func newHarness(t *testing.T, cfg Config, opts ...Option) *harness {
	t.Helper()
	return newHarnessWith(t, cfg, audio.DefaultMockBackend(), opts...)
}

func newHarnessWith(t *testing.T, cfg Config, backend *audio.MockBackend, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		backend: backend,
		clock:   &fakeClock{},
		rec:     &recorder{},
	}
	bus := events.NewBus()
	bus.SubscribeAll(h.rec.handle)

	base := []Option{
		WithAudioBackend(h.backend),
		WithBus(bus),
		WithAfterFunc(h.clock.AfterFunc),
		WithLogger(log.New(io.Discard)),
	}
	h.s = New(cfg, append(base, opts...)...)
	t.Cleanup(h.s.Close)
	return h
}

func (h *harness) play(t *testing.T, id, speaker string, tier int) {
	t.Helper()
	_, err := h.s.PlayDialogue(speaker, "line "+id,
		WithID(id),
		WithPriority(tier),
		WithAudio(testAudio, 2*time.Second, nil))
	if err != nil {
		t.Fatalf("PlayDialogue(%s) failed: %v", id, err)
	}
}

func (h *harness) expectState(t *testing.T, id string, want ItemState) {
	t.Helper()
	got, ok := h.s.State(id)
	if !ok {
		t.Fatalf("State(%s) unknown, want %v", id, want)
	}
	if got != want {
		t.Errorf("State(%s) = %v, want %v", id, got, want)
	}
}

func limits(l0, l1, l2, l3 int) Config {
	cfg := DefaultConfig()
	cfg.Limits = queue.Limits{l0, l1, l2, l3}
	return cfg
}

func TestScheduler_EndToEnd(t *testing.T) {
	h := newHarness(t, limits(1, 1, 1, 1))

	h.play(t, "a", "npc1", 2)

	// admitted synchronously within PlayDialogue
	if !h.s.IsDialogueActive("a") {
		t.Fatal("first item should be active as soon as PlayDialogue returns")
	}
	h.expectState(t, "a", ItemActive)

	h.play(t, "b", "npc2", 2)
	h.expectState(t, "b", ItemQueued)
	if q := h.s.GetQueueStatus().Queued[ttypes.TierNormal]; q != 1 {
		t.Errorf("Queued[normal] = %d, want 1", q)
	}

	if !h.backend.Finish("a") {
		t.Fatal("backend had no voice for a")
	}

	h.expectState(t, "a", ItemFinished)
	h.expectState(t, "b", ItemActive)
	if reason, _ := h.rec.finishedReason("a"); reason != events.ReasonCompleted {
		t.Errorf("finish reason = %q, want completed", reason)
	}

	for _, typ := range []events.EventType{
		events.EventDialogueQueued,
		events.EventDialogueStarted,
		events.EventSubtitleShow,
		events.EventLipSyncReady,
		events.EventSubtitleHide,
	} {
		if len(h.rec.ofType(typ)) == 0 {
			t.Errorf("no %s event published", typ)
		}
	}
}

func TestScheduler_CriticalAdmissionLimit(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.play(t, "first", "npc1", 0)
	h.play(t, "second", "npc2", 0)

	h.expectState(t, "first", ItemActive)
	h.expectState(t, "second", ItemQueued)

	h.backend.Finish("first")

	h.expectState(t, "second", ItemActive)
}

func TestScheduler_FIFOWithinTier(t *testing.T) {
	h := newHarness(t, limits(1, 1, 1, 1))

	var started []string
	h.s.Bus().Subscribe(func(e events.Event) { started = append(started, e.ItemID) }, events.EventDialogueStarted)

	h.play(t, "A", "s1", 3)
	h.play(t, "B", "s2", 3)
	h.play(t, "C", "s3", 3)

	h.backend.Finish("A")
	h.backend.Finish("B")
	h.backend.Finish("C")

	want := []string{"A", "B", "C"}
	if len(started) != len(want) {
		t.Fatalf("started %v, want %v", started, want)
	}
	for i := range want {
		if started[i] != want[i] {
			t.Errorf("start %d = %s, want %s", i, started[i], want[i])
		}
	}
}

func TestScheduler_Crossfade(t *testing.T) {
	var fades []string
	backend := audio.NewMockBackend(audio.MockCallbacks{
		OnFade: func(handle ttypes.Handle, target float64, d time.Duration) {
			fades = append(fades, fmt.Sprintf("%d->%.1f/%v", handle, target, d))
		},
	})
	h := newHarnessWith(t, DefaultConfig(), backend)

	h.play(t, "bark", "guard", 3)
	old, _ := h.backend.VoiceFor("bark")

	h.play(t, "story", "guard", 1)

	h.expectState(t, "bark", ItemFading)
	h.expectState(t, "story", ItemActive)
	if h.s.IsDialogueActive("bark") {
		t.Error("fading item must not hold an admission slot")
	}
	if id, _ := h.s.ActiveBySpeaker("guard"); id != "story" {
		t.Errorf("speaker owner = %s, want story", id)
	}

	next, _ := h.backend.VoiceFor("story")
	if len(fades) != 2 {
		t.Fatalf("fades = %v, want fade out and fade in", fades)
	}
	if want := fmt.Sprintf("%d->0.0/500ms", old.Handle); fades[0] != want {
		t.Errorf("fade out = %s, want %s", fades[0], want)
	}
	if want := fmt.Sprintf("%d->1.0/500ms", next.Handle); fades[1] != want {
		t.Errorf("fade in = %s, want %s", fades[1], want)
	}

	if h.clock.Pending() != 1 {
		t.Fatalf("expected one deferred stop, got %d", h.clock.Pending())
	}
	h.clock.FireAll()

	h.expectState(t, "bark", ItemStopped)
	if _, ok := h.backend.VoiceFor("bark"); ok {
		t.Error("faded voice should be stopped")
	}
	if reason, _ := h.rec.finishedReason("bark"); reason != events.ReasonInterrupted {
		t.Errorf("finish reason = %q, want interrupted", reason)
	}
}

func TestScheduler_CriticalSelfInterrupt(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.play(t, "alarm1", "king", 0)
	h.play(t, "alarm2", "king", 0)

	h.expectState(t, "alarm1", ItemStopped)
	h.expectState(t, "alarm2", ItemActive)
	if reason, _ := h.rec.finishedReason("alarm1"); reason != events.ReasonInterrupted {
		t.Errorf("finish reason = %q, want interrupted", reason)
	}
	if s := h.s.GetQueueStatus(); s.ActiveByTier[ttypes.TierCritical] != 1 || s.TotalQueued() != 0 {
		t.Errorf("status = %+v", s)
	}
}

func TestScheduler_LowTierWaits(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.play(t, "a", "npc", 3)
	h.play(t, "b", "npc", 3)

	h.expectState(t, "a", ItemActive)
	h.expectState(t, "b", ItemQueued)
	if q := h.s.GetQueueStatus().Queued[ttypes.TierLow]; q != 1 {
		t.Errorf("deferred item should be back in its lane, Queued[low] = %d", q)
	}

	h.backend.Finish("a")
	h.expectState(t, "b", ItemActive)
}

func TestScheduler_PauseAndResume(t *testing.T) {
	table, err := interrupt.WithOverrides(interrupt.DefaultTable(), map[string]string{"1:2": "pause_and_resume"})
	if err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, DefaultConfig(), WithResolver(interrupt.NewResolver(table)))

	h.play(t, "chat", "merchant", 2)
	h.play(t, "urgent", "merchant", 1)

	h.expectState(t, "chat", ItemPaused)
	h.expectState(t, "urgent", ItemActive)
	if v, _ := h.backend.VoiceFor("chat"); v.State != audio.StatePaused {
		t.Errorf("backend voice state = %v, want paused", v.State)
	}
	if s := h.s.GetQueueStatus(); s.Paused != 1 || s.ActiveByTier[ttypes.TierNormal] != 0 {
		t.Errorf("status = %+v", s)
	}

	h.backend.Finish("urgent")

	h.expectState(t, "chat", ItemActive)
	if v, _ := h.backend.VoiceFor("chat"); v.State != audio.StatePlaying {
		t.Errorf("backend voice state = %v, want playing", v.State)
	}
	if len(h.rec.ofType(events.EventDialoguePaused)) != 1 || len(h.rec.ofType(events.EventDialogueResumed)) != 1 {
		t.Error("expected one paused and one resumed event")
	}
	if s := h.s.GetQueueStatus(); s.Paused != 0 {
		t.Errorf("paused = %d after resume", s.Paused)
	}
}

func TestScheduler_DegradesWithoutCapabilities(t *testing.T) {
	table, _ := interrupt.WithOverrides(interrupt.DefaultTable(), map[string]string{"1:2": "pause"})

	tests := []struct {
		name string
		opts []Option
		tier int
	}{
		{"crossfade", nil, 1},
		{"pause", []Option{WithResolver(interrupt.NewResolver(table))}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := audio.DefaultMockBackend()
			h := newHarness(t, DefaultConfig(), append(tt.opts, WithAudioBackend(audio.Basic(mock)))...)
			h.backend = mock

			h.play(t, "old", "npc", 2)
			h.play(t, "new", "npc", tt.tier)

			h.expectState(t, "old", ItemStopped)
			h.expectState(t, "new", ItemActive)
			if m := mock.GetMetrics(); m.FadeCount != 0 || m.PauseCount != 0 || m.StopCount != 1 {
				t.Errorf("metrics = %+v", m)
			}
			if h.clock.Pending() != 0 {
				t.Error("no deferred stop expected")
			}
		})
	}
}

func TestScheduler_NoBackendKeepsDraining(t *testing.T) {
	rec := &recorder{}
	bus := events.NewBus()
	bus.SubscribeAll(rec.handle)
	s := New(limits(1, 1, 1, 1), WithBus(bus), WithLogger(log.New(io.Discard)))
	defer s.Close()

	for _, id := range []string{"a", "b"} {
		if _, err := s.PlayDialogue("npc-"+id, "hi", WithID(id), WithAudio(testAudio, time.Second, nil)); err != nil {
			t.Fatal(err)
		}
	}

	for _, id := range []string{"a", "b"} {
		if st, _ := s.State(id); st != ItemStopped {
			t.Errorf("State(%s) = %v, want stopped", id, st)
		}
		if reason, _ := rec.finishedReason(id); reason != events.ReasonAborted {
			t.Errorf("reason(%s) = %q, want aborted", id, reason)
		}
	}
	if st := s.GetQueueStatus(); st.TotalActive != 0 || st.TotalQueued() != 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestScheduler_PlayErrorAborts(t *testing.T) {
	h := newHarness(t, limits(1, 1, 1, 1))
	h.backend.FailNextPlay(errors.New("device busy"))

	h.play(t, "a", "npc1", 2)
	h.play(t, "b", "npc2", 2)

	h.expectState(t, "a", ItemStopped)
	h.expectState(t, "b", ItemActive)
}

// fakeSynth returns canned results, optionally after release is closed.
type fakeSynth struct {
	result  ttypes.SynthesisResult
	err     error
	release chan struct{}
	calls   chan ttypes.SynthesisRequest
}

func (f *fakeSynth) Synthesize(ctx context.Context, req ttypes.SynthesisRequest) (ttypes.SynthesisResult, error) {
	if f.calls != nil {
		f.calls <- req
	}
	if f.release != nil {
		<-f.release
	}
	return f.result, f.err
}

func waitFor(t *testing.T, what string, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestScheduler_Synthesis(t *testing.T) {
	synth := &fakeSynth{
		result: ttypes.SynthesisResult{
			Audio:       testAudio,
			Duration:    1500 * time.Millisecond,
			WordTimings: []ttypes.WordTiming{{Word: "Ahoy", Start: 0, Duration: time.Second}},
		},
		calls: make(chan ttypes.SynthesisRequest, 1),
	}
	h := newHarness(t, DefaultConfig(), WithSynthesizer(synth))

	id, err := h.s.PlayDialogue("pirate", "Ahoy", WithEmotion("gruff"), WithTraits("loud"))
	if err != nil {
		t.Fatal(err)
	}

	req := <-synth.calls
	if req.Emotion != "gruff" || req.SpeakerID != "pirate" || len(req.PersonalityTraits) != 1 {
		t.Errorf("request = %+v", req)
	}

	waitFor(t, "playback to start", func() bool {
		_, ok := h.s.LipSync(id)
		return ok
	})

	if _, ok := h.backend.VoiceFor(id); !ok {
		t.Error("synthesized audio was not handed to the backend")
	}
	data, ok := h.s.LipSync(id)
	if !ok || len(data.Frames) != 1 || data.Frames[0].Phoneme != "AA" {
		t.Errorf("LipSync = %+v, %v", data, ok)
	}
}

func TestScheduler_SynthesisFailureStillFinishes(t *testing.T) {
	synth := &fakeSynth{err: errors.New("voice model missing")}
	h := newHarness(t, DefaultConfig(), WithSynthesizer(synth))

	id, err := h.s.PlayDialogue("npc", "Hello")
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, "item to finish", func() bool {
		st, _ := h.s.State(id)
		return st == ItemFinished
	})

	if len(h.rec.ofType(events.EventDialogueStarted)) != 1 {
		t.Error("started event should fire for a failed synthesis")
	}
	if len(h.rec.ofType(events.EventWarning)) == 0 {
		t.Error("expected a warning event")
	}
	if h.backend.GetMetrics().PlayCount != 0 {
		t.Error("nothing should be played without audio")
	}
	if h.s.IsDialogueActive(id) {
		t.Error("slot should be released")
	}
}

func TestScheduler_LateSynthesisDiscarded(t *testing.T) {
	synth := &fakeSynth{
		result:  ttypes.SynthesisResult{Audio: testAudio, Duration: time.Second},
		release: make(chan struct{}),
		calls:   make(chan ttypes.SynthesisRequest, 1),
	}
	h := newHarness(t, DefaultConfig(), WithSynthesizer(synth))

	id, _ := h.s.PlayDialogue("npc", "Hello")
	<-synth.calls
	h.expectState(t, id, ItemActive)

	if !h.s.StopDialogue(id) {
		t.Fatal("StopDialogue returned false")
	}
	h.expectState(t, id, ItemStopped)

	close(synth.release)
	time.Sleep(50 * time.Millisecond)

	if n := h.backend.GetMetrics().PlayCount; n != 0 {
		t.Errorf("late synthesis result was played (%d plays)", n)
	}
	if len(h.rec.ofType(events.EventDialogueStarted)) != 0 {
		t.Error("late synthesis result should not start the item")
	}
}

func TestScheduler_PlayErrorAfterSynthesisKeepsDraining(t *testing.T) {
	synth := &fakeSynth{
		result:  ttypes.SynthesisResult{Audio: testAudio, Duration: time.Second},
		release: make(chan struct{}),
		calls:   make(chan ttypes.SynthesisRequest, 1),
	}
	h := newHarness(t, limits(1, 2, 4, 8), WithSynthesizer(synth))

	if _, err := h.s.PlayDialogue("npc1", "Hold the gate", WithID("a"), WithPriority(0)); err != nil {
		t.Fatal(err)
	}
	<-synth.calls
	h.play(t, "b", "npc2", 0)

	h.expectState(t, "a", ItemActive)
	h.expectState(t, "b", ItemQueued)

	h.backend.FailNextPlay(errors.New("device busy"))
	close(synth.release)

	waitFor(t, "b to start", func() bool {
		st, _ := h.s.State("b")
		return st == ItemActive
	})

	h.expectState(t, "a", ItemStopped)
	if reason, _ := h.rec.finishedReason("a"); reason != events.ReasonAborted {
		t.Errorf("reason(a) = %q, want aborted", reason)
	}
	if st := h.s.GetQueueStatus(); st.TotalQueued() != 0 || st.ActiveByTier[ttypes.TierCritical] != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestScheduler_NoSynthesizerNoAudio(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	id, err := h.s.PlayDialogue("npc", "Hello")
	if err != nil {
		t.Fatal(err)
	}

	h.expectState(t, id, ItemFinished)
	if len(h.rec.ofType(events.EventDialogueStarted)) != 1 || len(h.rec.ofType(events.EventDialogueFinished)) != 1 {
		t.Error("expected started and finished events")
	}
}

func TestScheduler_SynchronousCompletion(t *testing.T) {
	h := newHarness(t, limits(1, 1, 1, 1))
	h.backend.SetSyncComplete(true)

	h.play(t, "a", "npc1", 2)
	h.expectState(t, "a", ItemFinished)

	h.play(t, "b", "npc2", 2)
	h.play(t, "c", "npc3", 2)
	h.expectState(t, "b", ItemFinished)
	h.expectState(t, "c", ItemFinished)

	if st := h.s.GetQueueStatus(); st.TotalActive != 0 || st.TotalQueued() != 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestScheduler_InvalidInput(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	tests := []struct {
		name    string
		speaker string
		text    string
		want    error
	}{
		{"empty speaker", "", "hello", ErrEmptySpeaker},
		{"blank text", "npc", "   ", ErrEmptyText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := h.s.PlayDialogue(tt.speaker, tt.text)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if id != "" {
				t.Errorf("id = %q, want empty", id)
			}
		})
	}

	if _, err := h.s.PlayDialogueItem(ttypes.DialogueItem{SpeakerID: "npc", Text: "hi"}); !errors.Is(err, ErrEmptyID) {
		t.Errorf("error = %v, want ErrEmptyID", err)
	}

	h.play(t, "dup", "npc", 2)
	if _, err := h.s.PlayDialogue("npc", "again", WithID("dup")); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("error = %v, want ErrDuplicateID", err)
	}

	if n := len(h.rec.ofType(events.EventWarning)); n != 4 {
		t.Errorf("warnings = %d, want 4", n)
	}
	if st := h.s.GetQueueStatus(); st.TotalActive != 1 || st.TotalQueued() != 0 {
		t.Errorf("invalid input changed state: %+v", st)
	}
}

func TestScheduler_PriorityClamped(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.play(t, "a", "npc", 9)
	if st := h.s.GetQueueStatus(); st.ActiveByTier[ttypes.TierLow] != 1 {
		t.Errorf("priority 9 should run in tier 3: %+v", st)
	}
}

func TestScheduler_StopDialogue(t *testing.T) {
	h := newHarness(t, limits(1, 1, 1, 1))

	h.play(t, "a", "npc1", 2)
	h.play(t, "b", "npc2", 2)

	// queued item
	if !h.s.StopDialogue("b") {
		t.Fatal("StopDialogue(b) = false")
	}
	h.expectState(t, "b", ItemStopped)

	// active item
	if !h.s.StopDialogue("a") {
		t.Fatal("StopDialogue(a) = false")
	}
	h.expectState(t, "a", ItemStopped)
	if _, ok := h.backend.VoiceFor("a"); ok {
		t.Error("backend voice should be stopped")
	}

	if h.s.StopDialogue("missing") {
		t.Error("StopDialogue of unknown id should be false")
	}

	// a completion arriving after the stop is ignored
	h.s.HandleFinished("a")
	h.expectState(t, "a", ItemStopped)
}

func TestScheduler_StopBySpeaker(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.play(t, "a1", "alice", 2)
	h.play(t, "a2", "alice", 3)
	h.play(t, "b1", "bob", 2)

	if n := h.s.StopBySpeaker("alice"); n != 2 {
		t.Errorf("StopBySpeaker = %d, want 2", n)
	}
	h.expectState(t, "a1", ItemStopped)
	h.expectState(t, "a2", ItemStopped)
	h.expectState(t, "b1", ItemActive)

	if n := h.s.StopBySpeaker("nobody"); n != 0 {
		t.Errorf("StopBySpeaker(nobody) = %d", n)
	}
}

func TestScheduler_StopActiveResumesPaused(t *testing.T) {
	table, _ := interrupt.WithOverrides(interrupt.DefaultTable(), map[string]string{"0:2": "pause"})
	h := newHarness(t, DefaultConfig(), WithResolver(interrupt.NewResolver(table)))

	h.play(t, "chat", "npc", 2)
	h.play(t, "alarm", "npc", 0)
	h.expectState(t, "chat", ItemPaused)

	h.s.StopDialogue("alarm")
	h.expectState(t, "chat", ItemActive)
}

func TestScheduler_Reset(t *testing.T) {
	h := newHarness(t, limits(1, 1, 1, 1))

	h.play(t, "a", "npc1", 2)
	h.play(t, "b", "npc2", 2)
	h.play(t, "c", "npc1", 3)

	h.s.Reset()

	st := h.s.GetQueueStatus()
	if st.TotalActive != 0 || st.TotalQueued() != 0 || st.Paused != 0 {
		t.Errorf("status after Reset = %+v", st)
	}
	if h.backend.ActiveCount() != 0 {
		t.Errorf("backend still has %d voices", h.backend.ActiveCount())
	}

	// usable again after a reset
	h.play(t, "d", "npc1", 2)
	h.expectState(t, "d", ItemActive)
}

func TestScheduler_Closed(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.s.Close()

	if _, err := h.s.PlayDialogue("npc", "hi"); !errors.Is(err, ErrClosed) {
		t.Errorf("error = %v, want ErrClosed", err)
	}
}

func TestScheduler_CloseWaitsForBusyExecutor(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	h.s.Bus().Subscribe(func(events.Event) {
		once.Do(func() {
			close(entered)
			<-unblock
		})
	}, events.EventDialogueStarted)

	go func() {
		_, _ = h.s.PlayDialogue("npc1", "line a", WithID("a"), WithAudio(testAudio, 2*time.Second, nil))
	}()
	<-entered

	closed := make(chan struct{})
	go func() {
		h.s.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while the executor was still busy")
	case <-time.After(50 * time.Millisecond):
	}

	close(unblock)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	h.expectState(t, "a", ItemStopped)
	if n := h.backend.ActiveCount(); n != 0 {
		t.Errorf("backend still has %d voices after Close", n)
	}
}

func TestScheduler_ReportProgress(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	_, err := h.s.PlayDialogue("npc", "We ride at dawn",
		WithID("x"),
		WithAudio(testAudio, 2*time.Second, []ttypes.WordTiming{
			{Word: "We", Start: 0},
			{Word: "ride", Start: 400 * time.Millisecond},
			{Word: "at", Start: 800 * time.Millisecond},
			{Word: "dawn", Start: 1200 * time.Millisecond},
		}))
	if err != nil {
		t.Fatal(err)
	}

	h.s.ReportProgress("x", 900*time.Millisecond)
	h.s.ReportProgress("unknown", time.Second)

	updates := h.rec.ofType(events.EventSubtitleUpdate)
	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	if updates[0].Text != "We ride at" {
		t.Errorf("update text = %q", updates[0].Text)
	}

	shows := h.rec.ofType(events.EventSubtitleShow)
	if len(shows) != 1 || shows[0].Subtitle.DisplayDuration != 3*time.Second {
		t.Errorf("subtitle show = %+v", shows)
	}
}

func TestScheduler_ConcurrentCallers(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.backend.SetSyncComplete(true)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				_, err := h.s.PlayDialogue(fmt.Sprintf("npc%d", i%3), "line",
					WithID(id),
					WithPriority(i%4),
					WithAudio(testAudio, time.Second, nil))
				if err != nil {
					t.Errorf("PlayDialogue(%s): %v", id, err)
				}
			}
		}(w)
	}
	wg.Wait()

	st := h.s.GetQueueStatus()
	if st.TotalActive != 0 || st.TotalQueued() != 0 {
		t.Errorf("status after concurrent run = %+v", st)
	}
	for w := 0; w < 8; w++ {
		for i := 0; i < 25; i++ {
			id := fmt.Sprintf("w%d-%d", w, i)
			if st, ok := h.s.State(id); !ok || !st.Terminal() {
				t.Errorf("State(%s) = %v, %v", id, st, ok)
			}
		}
	}
}
