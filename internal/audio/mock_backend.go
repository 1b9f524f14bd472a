package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/parley/internal/ttypes"
)

// PlayerState represents the playback state of one voice.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StatePaused
	StateClosed
)

// String returns the string representation of the state.
func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrUnknownHandle is returned for handles that are not playing.
var ErrUnknownHandle = errors.New("unknown playback handle")

// ErrBackendClosed is returned after Close.
var ErrBackendClosed = errors.New("audio backend is closed")

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnPlay   func(id string, h ttypes.Handle)
	OnStop   func(h ttypes.Handle)
	OnPause  func(h ttypes.Handle)
	OnResume func(h ttypes.Handle)
	OnFade   func(h ttypes.Handle, target float64, d time.Duration)
}

// VoiceInfo is a snapshot of one mock voice.
type VoiceInfo struct {
	ID       string
	Handle   ttypes.Handle
	State    PlayerState
	Volume   float64
	Category ttypes.Category
	Payload  []byte
}

// MockBackend simulates playback without producing sound. Voices finish
// when the test calls Finish, or on their own when auto-complete is on.
type MockBackend struct {
	mu         sync.Mutex
	voices     map[ttypes.Handle]*mockVoice
	nextHandle ttypes.Handle
	onComplete func(id string)
	closed     bool

	callbacks MockCallbacks

	// Test configuration
	autoComplete bool
	durationOf   func(payload []byte) time.Duration
	syncComplete bool
	failNext     error

	// Metrics for testing
	playCount   atomic.Int64
	pauseCount  atomic.Int64
	resumeCount atomic.Int64
	stopCount   atomic.Int64
	fadeCount   atomic.Int64
}

type mockVoice struct {
	info      VoiceInfo
	remaining time.Duration
	started   time.Time
	timer     *time.Timer
}

// NewMockBackend creates a mock backend with custom callbacks.
func NewMockBackend(callbacks MockCallbacks) *MockBackend {
	return &MockBackend{
		voices:     make(map[ttypes.Handle]*mockVoice),
		callbacks:  callbacks,
		durationOf: WAVDuration,
	}
}

// DefaultMockBackend creates a mock backend with no callbacks.
func DefaultMockBackend() *MockBackend {
	return NewMockBackend(MockCallbacks{})
}

// SetAutoComplete makes voices finish after their payload's duration, as
// reported by durationOf. A nil durationOf decodes the payload as WAV.
func (m *MockBackend) SetAutoComplete(enabled bool, durationOf func([]byte) time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoComplete = enabled
	if durationOf != nil {
		m.durationOf = durationOf
	}
}

// SetSyncComplete makes Play fire the completion handler before it
// returns, the way some engines report zero-length clips.
func (m *MockBackend) SetSyncComplete(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncComplete = enabled
}

// FailNextPlay makes the next Play call return err.
func (m *MockBackend) FailNextPlay(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// SetCompletionHandler registers the natural-end callback.
func (m *MockBackend) SetCompletionHandler(fn func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onComplete = fn
}

// Play starts a simulated voice.
func (m *MockBackend) Play(id string, payload []byte, category ttypes.Category, volume float64) (ttypes.Handle, error) {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return 0, ErrBackendClosed
	}
	if err := m.failNext; err != nil {
		m.failNext = nil
		m.mu.Unlock()
		return 0, err
	}
	if volume < 0 || volume > 1 {
		m.mu.Unlock()
		return 0, fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}

	m.nextHandle++
	h := m.nextHandle
	data := make([]byte, len(payload))
	copy(data, payload)

	v := &mockVoice{
		info: VoiceInfo{
			ID:       id,
			Handle:   h,
			State:    StatePlaying,
			Volume:   volume,
			Category: category,
			Payload:  data,
		},
		started: time.Now(),
	}
	m.voices[h] = v
	m.playCount.Add(1)

	if m.autoComplete {
		v.remaining = m.durationOf(data)
		v.timer = time.AfterFunc(v.remaining, func() { m.complete(h) })
	}
	syncComplete := m.syncComplete
	m.mu.Unlock()

	if m.callbacks.OnPlay != nil {
		m.callbacks.OnPlay(id, h)
	}
	if syncComplete {
		m.complete(h)
	}

	return h, nil
}

// Stop halts a voice without firing the completion handler.
func (m *MockBackend) Stop(h ttypes.Handle) error {
	m.mu.Lock()
	v, ok := m.voices[h]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownHandle
	}
	if v.timer != nil {
		v.timer.Stop()
	}
	delete(m.voices, h)
	m.stopCount.Add(1)
	m.mu.Unlock()

	if m.callbacks.OnStop != nil {
		m.callbacks.OnStop(h)
	}
	return nil
}

// Pause pauses a playing voice.
func (m *MockBackend) Pause(h ttypes.Handle) error {
	m.mu.Lock()
	v, ok := m.voices[h]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownHandle
	}
	if v.info.State != StatePlaying {
		m.mu.Unlock()
		return fmt.Errorf("cannot pause: voice is %s", v.info.State)
	}
	if v.timer != nil {
		v.timer.Stop()
		v.remaining -= time.Since(v.started)
	}
	v.info.State = StatePaused
	m.pauseCount.Add(1)
	m.mu.Unlock()

	if m.callbacks.OnPause != nil {
		m.callbacks.OnPause(h)
	}
	return nil
}

// Resume resumes a paused voice.
func (m *MockBackend) Resume(h ttypes.Handle) error {
	m.mu.Lock()
	v, ok := m.voices[h]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownHandle
	}
	if v.info.State != StatePaused {
		m.mu.Unlock()
		return fmt.Errorf("cannot resume: voice is %s", v.info.State)
	}
	v.info.State = StatePlaying
	v.started = time.Now()
	if m.autoComplete {
		v.timer = time.AfterFunc(v.remaining, func() { m.complete(h) })
	}
	m.resumeCount.Add(1)
	m.mu.Unlock()

	if m.callbacks.OnResume != nil {
		m.callbacks.OnResume(h)
	}
	return nil
}

// SetVolumeOverTime records the fade and jumps straight to the target.
func (m *MockBackend) SetVolumeOverTime(h ttypes.Handle, target float64, d time.Duration) error {
	if target < 0 || target > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", target)
	}

	m.mu.Lock()
	v, ok := m.voices[h]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownHandle
	}
	v.info.Volume = target
	m.fadeCount.Add(1)
	m.mu.Unlock()

	if m.callbacks.OnFade != nil {
		m.callbacks.OnFade(h, target, d)
	}
	return nil
}

// Finish ends the voice playing id as if it reached its end. It returns
// false when no such voice exists.
func (m *MockBackend) Finish(id string) bool {
	m.mu.Lock()
	var handle ttypes.Handle
	for h, v := range m.voices {
		if v.info.ID == id {
			handle = h
			break
		}
	}
	m.mu.Unlock()

	if handle == 0 {
		return false
	}
	return m.complete(handle)
}

func (m *MockBackend) complete(h ttypes.Handle) bool {
	m.mu.Lock()
	v, ok := m.voices[h]
	if !ok {
		m.mu.Unlock()
		return false
	}
	if v.timer != nil {
		v.timer.Stop()
	}
	delete(m.voices, h)
	fn := m.onComplete
	m.mu.Unlock()

	if fn != nil {
		fn(v.info.ID)
	}
	return true
}

// Close stops every voice.
func (m *MockBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for h, v := range m.voices {
		if v.timer != nil {
			v.timer.Stop()
		}
		delete(m.voices, h)
	}
	m.closed = true
	return nil
}

// Test helper methods

// Voice returns a snapshot of the voice behind a handle.
func (m *MockBackend) Voice(h ttypes.Handle) (VoiceInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.voices[h]
	if !ok {
		return VoiceInfo{}, false
	}
	return v.info, true
}

// VoiceFor returns a snapshot of the voice playing id.
func (m *MockBackend) VoiceFor(id string) (VoiceInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.voices {
		if v.info.ID == id {
			return v.info, true
		}
	}
	return VoiceInfo{}, false
}

// ActiveCount returns the number of playing or paused voices.
func (m *MockBackend) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// MockBackendMetrics contains playback metrics for testing.
type MockBackendMetrics struct {
	PlayCount   int64
	PauseCount  int64
	ResumeCount int64
	StopCount   int64
	FadeCount   int64
}

// GetMetrics returns playback metrics for testing.
func (m *MockBackend) GetMetrics() MockBackendMetrics {
	return MockBackendMetrics{
		PlayCount:   m.playCount.Load(),
		PauseCount:  m.pauseCount.Load(),
		ResumeCount: m.resumeCount.Load(),
		StopCount:   m.stopCount.Load(),
		FadeCount:   m.fadeCount.Load(),
	}
}

// Basic hides any fade or pause support of b, leaving only the
// AudioBackend methods.
func Basic(b ttypes.AudioBackend) ttypes.AudioBackend {
	return basicBackend{b}
}

type basicBackend struct {
	ttypes.AudioBackend
}

// Ensure MockBackend implements the backend interfaces
var (
	_ ttypes.AudioBackend = (*MockBackend)(nil)
	_ ttypes.Fader        = (*MockBackend)(nil)
	_ ttypes.Pauser       = (*MockBackend)(nil)
)
