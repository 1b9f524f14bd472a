// Package events carries scheduler notifications to presentation sinks.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/parley/internal/ttypes"
)

// EventType identifies different event types
type EventType string

const (
	// Dialogue lifecycle events
	EventDialogueQueued   EventType = "dialogue.queued"
	EventDialogueStarted  EventType = "dialogue.started"
	EventDialogueFinished EventType = "dialogue.finished"
	EventDialoguePaused   EventType = "dialogue.paused"
	EventDialogueResumed  EventType = "dialogue.resumed"

	// Subtitle events
	EventSubtitleShow   EventType = "subtitle.show"
	EventSubtitleUpdate EventType = "subtitle.update"
	EventSubtitleHide   EventType = "subtitle.hide"

	// Lip-sync events
	EventLipSyncReady EventType = "lipsync.ready"

	// Scheduler events
	EventWarning EventType = "scheduler.warning"
)

// FinishReason explains why a dialogue left the active set.
type FinishReason string

const (
	ReasonCompleted   FinishReason = "completed"
	ReasonInterrupted FinishReason = "interrupted"
	ReasonStopped     FinishReason = "stopped"
	ReasonAborted     FinishReason = "aborted"
)

// Event is a single notification. Only the fields relevant to Type are set.
type Event struct {
	Type      EventType
	ItemID    string
	SpeakerID string
	Priority  ttypes.Tier
	Time      time.Time

	// Subtitle is set for subtitle.show
	Subtitle *ttypes.SubtitleRecord

	// LipSync is set for lipsync.ready
	LipSync *ttypes.LipSyncData

	// Text and Elapsed are set for subtitle.update
	Text    string
	Elapsed time.Duration

	// Reason is set for dialogue.finished
	Reason FinishReason

	// Message is set for scheduler.warning
	Message string
}

// Handler is a function that handles events
type Handler func(Event)

type subscription struct {
	id      uint64
	types   map[EventType]bool // nil matches everything
	handler Handler
}

// Bus is a synchronous pub/sub bus. Handlers run on the publishing
// goroutine in subscription order, so events arrive in publish order.
// Handlers must not block.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe adds a handler for the given event types and returns a
// function that removes it.
func (b *Bus) Subscribe(handler Handler, types ...EventType) func() {
	set := make(map[EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return b.add(subscription{types: set, handler: handler})
}

// SubscribeAll adds a handler that receives every event.
func (b *Bus) SubscribeAll(handler Handler) func() {
	return b.add(subscription{handler: handler})
}

func (b *Bus) add(s subscription) func() {
	b.mu.Lock()
	b.nextID++
	s.id = b.nextID
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	return func() { b.remove(s.id) }
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to every matching handler. A zero Time is
// filled in with the current time.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.types == nil || s.types[e.Type] {
			s.handler(e)
		}
	}
}

// Clear removes all handlers
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

// ChanSink forwards events into a buffered channel without blocking the
// publisher. Events that do not fit are dropped and counted.
type ChanSink struct {
	ch      chan Event
	dropped atomic.Int64
}

// NewChanSink creates a sink with the given buffer size.
func NewChanSink(size int) *ChanSink {
	if size <= 0 {
		size = 64
	}
	return &ChanSink{ch: make(chan Event, size)}
}

// Handle is a Handler that enqueues the event.
func (s *ChanSink) Handle(e Event) {
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

// C returns the receive side of the sink.
func (s *ChanSink) C() <-chan Event {
	return s.ch
}

// Dropped returns the number of events that did not fit.
func (s *ChanSink) Dropped() int64 {
	return s.dropped.Load()
}
