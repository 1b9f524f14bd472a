// Package scheduler decides which dialogue line plays, when a new line may
// interrupt one already playing and how interrupted lines fade, pause and
// resume.
//
// Every mutation runs on a serial executor. An entry point that arrives
// while another is in progress, whether from a synchronous backend
// callback or another goroutine, is queued and run after the current
// operation unwinds. Queries only take a read lock.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/events"
	"github.com/dgnsrekt/parley/internal/interrupt"
	"github.com/dgnsrekt/parley/internal/lipsync"
	"github.com/dgnsrekt/parley/internal/queue"
	"github.com/dgnsrekt/parley/internal/subtitle"
	"github.com/dgnsrekt/parley/internal/ttypes"
	"github.com/google/uuid"
)

// entry is the scheduler's bookkeeping for one dialogue item.
type entry struct {
	item  ttypes.DialogueItem
	state ItemState

	handle ttypes.Handle
	fadeIn bool

	// in-flight synthesis; gen guards against late results
	synthesizing bool
	gen          uint64
	cancel       context.CancelFunc

	fadeTimer Timer

	record  ttypes.SubtitleRecord
	lipSync ttypes.LipSyncData
	started bool
}

// Scheduler orchestrates dialogue playback.
type Scheduler struct {
	cfg       Config
	queue     *queue.PriorityQueue
	resolver  *interrupt.Resolver
	backend   ttypes.AudioBackend
	synth     ttypes.Synthesizer
	bus       *events.Bus
	subtitles *subtitle.Broadcaster
	lipsync   *lipsync.Generator
	logger    *log.Logger
	afterFunc AfterFunc
	life      *lifecycle

	ctx    context.Context
	cancel context.CancelFunc

	// serial executor
	execMu  sync.Mutex
	busy    bool
	pending []func()

	// mu guards the fields below. Only the executor writes them, except
	// PlayDialogueItem which inserts new entries.
	mu        sync.RWMutex
	entries   map[string]*entry
	bySpeaker map[string]string
	paused    []string
	history   map[string]ItemState
	order     []string
	gen       uint64
	closed    bool
}

// New creates a scheduler.
func New(cfg Config, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.CrossfadeWindow <= 0 {
		cfg.CrossfadeWindow = def.CrossfadeWindow
	}
	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = def.SynthesisTimeout
	}
	if cfg.Volume <= 0 || cfg.Volume > 1 {
		cfg.Volume = def.Volume
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	cfg.DefaultPriority = ttypes.ClampTier(int(cfg.DefaultPriority))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		afterFunc: realAfterFunc,
		life:      newLifecycle(),
		entries:   make(map[string]*entry),
		bySpeaker: make(map[string]string),
		history:   make(map[string]ItemState),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = log.Default().WithPrefix("scheduler")
	}
	if s.resolver == nil {
		s.resolver = interrupt.NewResolver(interrupt.DefaultTable())
	}
	if s.bus == nil {
		s.bus = events.NewBus()
	}
	if s.subtitles == nil {
		s.subtitles = subtitle.NewBroadcaster(s.bus, subtitle.DefaultConfig())
	}
	if s.lipsync == nil && cfg.LipSync {
		s.lipsync = lipsync.NewGenerator()
	}

	s.queue = queue.New(cfg.Limits)
	s.queue.SetLogger(s.logger)

	s.life.OnEnter(ItemPaused, func(id string) {
		s.publish(events.EventDialoguePaused, s.lookup(id), "")
	})

	if s.backend != nil {
		s.backend.SetCompletionHandler(s.HandleFinished)
	}

	return s
}

// Bus returns the bus notifications are published on.
func (s *Scheduler) Bus() *events.Bus {
	return s.bus
}

// Subtitles returns the subtitle broadcaster.
func (s *Scheduler) Subtitles() *subtitle.Broadcaster {
	return s.subtitles
}

// PlayDialogue queues a new line for speakerID and returns its id.
func (s *Scheduler) PlayDialogue(speakerID, text string, opts ...PlayOption) (string, error) {
	item := ttypes.DialogueItem{
		SpeakerID: speakerID,
		Text:      text,
		Priority:  s.cfg.DefaultPriority,
	}
	for _, opt := range opts {
		opt(&item)
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	return s.PlayDialogueItem(item)
}

// PlayDialogueItem queues a fully built item. The priority is clamped.
// When nothing else is running the item is dequeued, and started if
// admissible, before this returns.
func (s *Scheduler) PlayDialogueItem(item ttypes.DialogueItem) (string, error) {
	switch {
	case strings.TrimSpace(item.SpeakerID) == "":
		return "", s.reject(ErrEmptySpeaker, item)
	case strings.TrimSpace(item.Text) == "":
		return "", s.reject(ErrEmptyText, item)
	case item.ID == "":
		return "", s.reject(ErrEmptyID, item)
	}
	item.Normalize()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	if _, ok := s.entries[item.ID]; ok {
		s.mu.Unlock()
		return "", s.reject(ErrDuplicateID, item)
	}
	e := &entry{item: item, state: ItemQueued}
	s.entries[item.ID] = e
	delete(s.history, item.ID)
	s.mu.Unlock()

	s.run(func() {
		s.queue.Enqueue(item)
		s.publish(events.EventDialogueQueued, e, "")
		s.processNext()
	})

	return item.ID, nil
}

// ProcessNext drains every admissible queued item.
func (s *Scheduler) ProcessNext() {
	s.run(s.processNext)
}

// HandleFinished is the backend completion callback. Unknown and stale
// ids are ignored.
func (s *Scheduler) HandleFinished(id string) {
	s.run(func() {
		s.handleFinished(id)
	})
}

// StopDialogue cancels an item in any non-terminal state. It reports
// whether the id was known.
func (s *Scheduler) StopDialogue(id string) bool {
	s.mu.RLock()
	_, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	s.run(func() {
		if e := s.lookup(id); e != nil {
			s.stopEntry(e, events.ReasonStopped)
		}
		s.resumePaused()
		s.processNext()
	})
	return true
}

// StopBySpeaker cancels every item of a speaker and returns how many
// were known.
func (s *Scheduler) StopBySpeaker(speakerID string) int {
	ids := s.idsWhere(func(e *entry) bool { return e.item.SpeakerID == speakerID })
	if len(ids) == 0 {
		return 0
	}

	s.run(func() {
		for _, id := range ids {
			if e := s.lookup(id); e != nil {
				s.stopEntry(e, events.ReasonStopped)
			}
		}
		s.resumePaused()
		s.processNext()
	})
	return len(ids)
}

// Reset stops everything and clears the queue. Used at session boundaries.
// When another goroutine is running the executor, the reset is queued
// behind it and Reset returns before it takes effect; operations submitted
// afterwards still run after the reset.
func (s *Scheduler) Reset() {
	s.run(s.reset)
}

// Close cancels in-flight synthesis and stops everything, waiting for the
// stop to complete so the backend can be closed afterwards. Later calls to
// PlayDialogue return ErrClosed. Close must not be called from an event
// handler or a backend callback.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	s.run(func() {
		s.reset()
		close(done)
	})
	<-done
}

// ReportProgress publishes a subtitle update with the words spoken by
// elapsed. Hosts call it from their playback clock.
func (s *Scheduler) ReportProgress(id string, elapsed time.Duration) {
	s.run(func() {
		e := s.lookup(id)
		if e == nil || e.state != ItemActive || !e.started {
			return
		}
		s.subtitles.Update(id, subtitle.TextAt(e.record, elapsed), elapsed)
	})
}

// GetQueueStatus returns per-tier queue lengths and admission counters.
func (s *Scheduler) GetQueueStatus() ttypes.QueueStatus {
	status := s.queue.Status()

	s.mu.RLock()
	status.Paused = len(s.paused)
	s.mu.RUnlock()

	return status
}

// IsDialogueActive reports whether the item currently holds an admission
// slot.
func (s *Scheduler) IsDialogueActive(id string) bool {
	return s.queue.IsActive(id)
}

// State returns the lifecycle state of an item. Finished and stopped
// items are remembered for a bounded time.
func (s *Scheduler) State(id string) (ItemState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[id]; ok {
		return e.state, true
	}
	state, ok := s.history[id]
	return state, ok
}

// LipSync returns the lip-sync data computed when the item started.
func (s *Scheduler) LipSync(id string) (ttypes.LipSyncData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || !e.started || s.lipsync == nil {
		return ttypes.LipSyncData{}, false
	}
	return e.lipSync, true
}

// ActiveBySpeaker returns the id of the speaker's active item.
func (s *Scheduler) ActiveBySpeaker(speakerID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySpeaker[speakerID]
	return id, ok
}

// run executes fn on the serial executor.
func (s *Scheduler) run(fn func()) {
	s.execMu.Lock()
	if s.busy {
		s.pending = append(s.pending, fn)
		s.execMu.Unlock()
		return
	}
	s.busy = true
	s.execMu.Unlock()

	for {
		fn()

		s.execMu.Lock()
		if len(s.pending) == 0 {
			s.busy = false
			s.execMu.Unlock()
			return
		}
		fn = s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.execMu.Unlock()
	}
}

func (s *Scheduler) processNext() {
	var deferred []ttypes.DialogueItem

	for {
		item, ok := s.queue.Dequeue()
		if !ok {
			// a saturated tier may still make room by interrupting its
			// own speaker
			item, ok = s.queue.DequeueWhere(s.displacesSameTier)
		}
		if !ok {
			break
		}

		e := s.lookup(item.ID)
		if e == nil || e.state != ItemQueued {
			s.logger.Debug("Dropping stale queue entry", "id", item.ID)
			continue
		}

		curID, speaking := s.bySpeaker[item.SpeakerID]
		if !speaking {
			s.start(e)
			continue
		}

		cur := s.lookup(curID)
		if cur == nil {
			s.mu.Lock()
			delete(s.bySpeaker, item.SpeakerID)
			s.mu.Unlock()
			s.start(e)
			continue
		}
		action := s.degrade(s.resolver.Resolve(int(item.Priority), int(cur.item.Priority)), cur)

		s.logger.Debug("Resolved interrupt",
			"speaker", item.SpeakerID,
			"new", item.ID,
			"current", curID,
			"action", action)

		switch action {
		case interrupt.None:
			deferred = append(deferred, item)
		case interrupt.Immediate:
			s.stopEntry(cur, events.ReasonInterrupted)
			s.start(e)
		case interrupt.Crossfade:
			s.crossfade(cur, e)
		case interrupt.PauseAndResume:
			s.pause(cur, e)
		}
	}

	for _, item := range deferred {
		s.queue.Enqueue(item)
	}
}

// displacesSameTier reports whether a queued item in a saturated tier can
// take the slot of its own speaker's current item.
func (s *Scheduler) displacesSameTier(item ttypes.DialogueItem) bool {
	curID, ok := s.bySpeaker[item.SpeakerID]
	if !ok {
		return false
	}
	cur := s.lookup(curID)
	if cur == nil || cur.item.Priority != item.Priority {
		return false
	}
	return s.resolver.Resolve(int(item.Priority), int(cur.item.Priority)) != interrupt.None
}

// degrade falls back to Immediate when the backend or the current item
// cannot support the action.
func (s *Scheduler) degrade(action interrupt.Action, cur *entry) interrupt.Action {
	switch action {
	case interrupt.Crossfade:
		if _, ok := s.backend.(ttypes.Fader); !ok || cur.handle == 0 {
			s.logger.Debug("Crossfade unavailable, interrupting immediately", "id", cur.item.ID)
			return interrupt.Immediate
		}
	case interrupt.PauseAndResume:
		if _, ok := s.backend.(ttypes.Pauser); !ok || cur.handle == 0 {
			s.logger.Debug("Pause unavailable, interrupting immediately", "id", cur.item.ID)
			return interrupt.Immediate
		}
	}
	return action
}

// start admits the item and begins playback or synthesis.
func (s *Scheduler) start(e *entry) {
	id := e.item.ID
	if !s.queue.MarkActive(id, e.item) {
		return
	}
	s.mu.Lock()
	s.bySpeaker[e.item.SpeakerID] = id
	s.mu.Unlock()
	s.transition(e, ItemActive)

	if e.item.HasAudio() || s.synth == nil {
		s.beginPlayback(e)
		return
	}
	s.synthesize(e)
}

func (s *Scheduler) synthesize(e *entry) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.SynthesisTimeout)

	s.mu.Lock()
	s.gen++
	gen := s.gen
	e.synthesizing = true
	e.gen = gen
	e.cancel = cancel
	s.mu.Unlock()

	id := e.item.ID
	req := ttypes.SynthesisRequest{
		Text:              e.item.Text,
		SpeakerID:         e.item.SpeakerID,
		PersonalityTraits: e.item.PersonalityTraits,
		Emotion:           e.item.Emotion,
	}

	s.logger.Debug("Requesting synthesis", "id", id, "speaker", req.SpeakerID)

	go func() {
		res, err := s.synth.Synthesize(ctx, req)
		cancel()
		s.run(func() {
			s.applySynthesis(id, gen, res, err)
		})
	}()
}

func (s *Scheduler) applySynthesis(id string, gen uint64, res ttypes.SynthesisResult, err error) {
	e := s.lookup(id)
	if e == nil || e.gen != gen || !e.synthesizing || e.state != ItemActive {
		s.logger.Debug("Discarding late synthesis result", "id", id)
		return
	}

	s.mu.Lock()
	e.synthesizing = false
	e.cancel = nil
	if err != nil {
		e.item.AudioPayload = nil
		e.item.Duration = 0
	} else {
		e.item.AudioPayload = res.Audio
		if res.Duration > 0 {
			e.item.Duration = res.Duration
		}
		if len(e.item.WordTimings) == 0 {
			e.item.WordTimings = res.WordTimings
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Synthesis failed, continuing without audio", "id", id, "error", err)
		s.warn("synthesis failed for "+id+": "+err.Error(), e.item)
	}

	s.beginPlayback(e)

	// a failed start frees its slot outside any processNext pass
	s.resumePaused()
	s.processNext()
}

// beginPlayback hands the payload to the backend. An item without audio
// starts and finishes straight away so its slot is released.
func (s *Scheduler) beginPlayback(e *entry) {
	id := e.item.ID

	if !e.item.HasAudio() {
		s.announceStart(e)
		s.run(func() { s.handleFinished(id) })
		return
	}

	if s.backend == nil {
		s.logger.Warn("No audio backend, aborting dialogue", "id", id)
		s.abort(e)
		return
	}

	volume := s.cfg.Volume
	if e.fadeIn {
		volume = 0
	}

	h, err := s.backend.Play(id, e.item.AudioPayload, ttypes.CategoryVoice, volume)
	if err != nil {
		s.logger.Warn("Playback failed, aborting dialogue", "id", id, "error", err)
		s.abort(e)
		return
	}

	s.mu.Lock()
	e.handle = h
	s.mu.Unlock()

	if e.fadeIn {
		if fader, ok := s.backend.(ttypes.Fader); ok {
			if err := fader.SetVolumeOverTime(h, s.cfg.Volume, s.cfg.CrossfadeWindow); err != nil {
				s.logger.Warn("Fade in failed", "id", id, "error", err)
			}
		}
	}

	s.announceStart(e)
}

// announceStart publishes the started event, shows the subtitle and
// computes lip-sync data.
func (s *Scheduler) announceStart(e *entry) {
	record := s.subtitles.CreateRecord(e.item)
	var data ttypes.LipSyncData
	if s.lipsync != nil {
		data = s.lipsync.Generate(e.item)
	}

	s.mu.Lock()
	e.record = record
	e.lipSync = data
	e.started = true
	s.mu.Unlock()

	s.logger.Debug("Dialogue started", "id", e.item.ID, "speaker", e.item.SpeakerID, "tier", e.item.Priority)

	s.publish(events.EventDialogueStarted, e, "")
	s.subtitles.Show(record)
	if s.lipsync != nil {
		s.bus.Publish(events.Event{
			Type:      events.EventLipSyncReady,
			ItemID:    e.item.ID,
			SpeakerID: e.item.SpeakerID,
			Priority:  e.item.Priority,
			LipSync:   &data,
		})
	}
}

// abort releases an item that could not be played.
func (s *Scheduler) abort(e *entry) {
	s.release(e)
	s.finish(e, ItemStopped, events.ReasonAborted)
}

func (s *Scheduler) crossfade(cur, next *entry) {
	fader := s.backend.(ttypes.Fader)
	window := s.cfg.CrossfadeWindow

	if err := fader.SetVolumeOverTime(cur.handle, 0, window); err != nil {
		s.logger.Warn("Fade out failed, interrupting immediately", "id", cur.item.ID, "error", err)
		s.stopEntry(cur, events.ReasonInterrupted)
		s.start(next)
		return
	}

	s.release(cur)
	s.transition(cur, ItemFading)
	s.subtitles.Hide(cur.item.ID)

	id := cur.item.ID
	timer := s.afterFunc(window, func() {
		s.run(func() { s.finishFade(id) })
	})
	s.mu.Lock()
	cur.fadeTimer = timer
	next.fadeIn = true
	s.mu.Unlock()

	s.start(next)
}

// finishFade stops a crossfaded item once its window has elapsed.
func (s *Scheduler) finishFade(id string) {
	e := s.lookup(id)
	if e == nil || e.state != ItemFading {
		return
	}
	s.stopBackend(e)
	s.finish(e, ItemStopped, events.ReasonInterrupted)
}

func (s *Scheduler) pause(cur, next *entry) {
	pauser := s.backend.(ttypes.Pauser)

	if err := pauser.Pause(cur.handle); err != nil {
		s.logger.Warn("Pause failed, interrupting immediately", "id", cur.item.ID, "error", err)
		s.stopEntry(cur, events.ReasonInterrupted)
		s.start(next)
		return
	}

	s.release(cur)
	s.mu.Lock()
	s.paused = append(s.paused, cur.item.ID)
	s.mu.Unlock()
	s.transition(cur, ItemPaused)
	s.subtitles.Hide(cur.item.ID)

	s.start(next)
}

// resumePaused resumes the earliest paused item whose speaker is free and
// whose tier has room.
func (s *Scheduler) resumePaused() {
	pauser, ok := s.backend.(ttypes.Pauser)
	if !ok {
		return
	}

	for i := 0; i < len(s.paused); i++ {
		e := s.lookup(s.paused[i])
		if e == nil {
			continue
		}
		if _, speaking := s.bySpeaker[e.item.SpeakerID]; speaking {
			continue
		}
		if !s.queue.CanAdmit(e.item.Priority) {
			continue
		}

		s.removePaused(e.item.ID)

		if err := pauser.Resume(e.handle); err != nil {
			s.logger.Warn("Resume failed, dropping paused dialogue", "id", e.item.ID, "error", err)
			s.stopBackend(e)
			s.finish(e, ItemStopped, events.ReasonAborted)
			i = -1
			continue
		}

		s.queue.MarkActive(e.item.ID, e.item)
		s.mu.Lock()
		s.bySpeaker[e.item.SpeakerID] = e.item.ID
		s.mu.Unlock()
		s.transition(e, ItemActive)

		s.publish(events.EventDialogueResumed, e, "")
		s.subtitles.Show(e.record)
		return
	}
}

func (s *Scheduler) handleFinished(id string) {
	e := s.lookup(id)
	if e == nil {
		s.logger.Debug("Ignoring completion for unknown dialogue", "id", id)
		return
	}

	switch e.state {
	case ItemActive:
		if e.synthesizing {
			s.logger.Debug("Ignoring completion while synthesizing", "id", id)
			return
		}
		s.release(e)
		s.finish(e, ItemFinished, events.ReasonCompleted)
	case ItemFading:
		if e.fadeTimer != nil {
			e.fadeTimer.Stop()
		}
		s.finish(e, ItemFinished, events.ReasonCompleted)
	case ItemPaused:
		s.removePaused(id)
		s.finish(e, ItemFinished, events.ReasonCompleted)
	default:
		s.logger.Debug("Ignoring completion", "id", id, "state", e.state)
		return
	}

	s.resumePaused()
	s.processNext()
}

// stopEntry cancels an item in any non-terminal state.
func (s *Scheduler) stopEntry(e *entry, reason events.FinishReason) {
	switch e.state {
	case ItemQueued:
		s.queue.Remove(e.item.ID)
	case ItemActive:
		if e.cancel != nil {
			e.cancel()
		}
		s.stopBackend(e)
		s.release(e)
	case ItemPaused:
		s.stopBackend(e)
		s.removePaused(e.item.ID)
	case ItemFading:
		if e.fadeTimer != nil {
			e.fadeTimer.Stop()
		}
		s.stopBackend(e)
	default:
		return
	}

	s.finish(e, ItemStopped, reason)
}

func (s *Scheduler) stopBackend(e *entry) {
	if e.handle == 0 || s.backend == nil {
		return
	}
	if err := s.backend.Stop(e.handle); err != nil {
		s.logger.Warn("Failed to stop playback", "id", e.item.ID, "error", err)
	}
}

// release gives up the admission slot and the speaker.
func (s *Scheduler) release(e *entry) {
	s.queue.MarkInactive(e.item.ID)

	s.mu.Lock()
	if s.bySpeaker[e.item.SpeakerID] == e.item.ID {
		delete(s.bySpeaker, e.item.SpeakerID)
	}
	s.mu.Unlock()
}

// finish moves the item to a terminal state and publishes the outcome.
// Items that never started only get the finished event.
func (s *Scheduler) finish(e *entry, to ItemState, reason events.FinishReason) {
	wasShowing := e.state == ItemActive && e.started
	if !s.transition(e, to) {
		return
	}

	s.publish(events.EventDialogueFinished, e, reason)
	if wasShowing {
		s.subtitles.Hide(e.item.ID)
	}
}

// transition validates and applies a state change. Terminal states drop
// the entry into the bounded history.
func (s *Scheduler) transition(e *entry, to ItemState) bool {
	from := e.state
	if !s.life.valid(from, to) {
		s.logger.Warn("Invalid dialogue transition", "id", e.item.ID, "from", from, "to", to)
		return false
	}

	id := e.item.ID
	s.mu.Lock()
	e.state = to
	if to.Terminal() {
		delete(s.entries, id)
		s.remember(id, to)
	}
	s.mu.Unlock()

	s.life.entered(to, id)
	return true
}

// remember records a terminal state. Caller holds mu.
func (s *Scheduler) remember(id string, state ItemState) {
	if _, ok := s.history[id]; !ok {
		s.order = append(s.order, id)
	}
	s.history[id] = state

	for len(s.order) > s.cfg.HistorySize {
		delete(s.history, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Scheduler) removePaused(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, pid := range s.paused {
		if pid == id {
			s.paused = append(s.paused[:i], s.paused[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) reset() {
	ids := s.idsWhere(func(*entry) bool { return true })
	for _, id := range ids {
		if e := s.lookup(id); e != nil {
			s.stopEntry(e, events.ReasonStopped)
		}
	}

	s.queue.ClearAll()
	s.mu.Lock()
	s.bySpeaker = make(map[string]string)
	s.paused = nil
	s.mu.Unlock()
}

func (s *Scheduler) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}

func (s *Scheduler) idsWhere(fn func(*entry) bool) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, e := range s.entries {
		if fn(e) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Scheduler) publish(t events.EventType, e *entry, reason events.FinishReason) {
	if e == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:      t,
		ItemID:    e.item.ID,
		SpeakerID: e.item.SpeakerID,
		Priority:  e.item.Priority,
		Reason:    reason,
	})
}

// reject logs invalid input and publishes a warning.
func (s *Scheduler) reject(err error, item ttypes.DialogueItem) error {
	s.logger.Warn("Rejected dialogue", "error", err, "id", item.ID, "speaker", item.SpeakerID)
	s.warn(err.Error(), item)
	return err
}

func (s *Scheduler) warn(msg string, item ttypes.DialogueItem) {
	s.bus.Publish(events.Event{
		Type:      events.EventWarning,
		ItemID:    item.ID,
		SpeakerID: item.SpeakerID,
		Message:   msg,
	})
}
