// Package ttypes contains shared types and interfaces for the dialogue system.
// This package is used to break import cycles between scheduler, queue, audio,
// tts, lipsync and subtitle packages.
package ttypes

import (
	"context"
	"time"
)

// Tier is the priority class of a dialogue line. 0 is the highest.
type Tier int

const (
	// TierCritical always wins an interrupt.
	TierCritical Tier = iota

	// TierHigh for important story lines
	TierHigh

	// TierNormal for regular conversation
	TierNormal

	// TierLow for barks and ambient chatter
	TierLow
)

// NumTiers is the number of priority lanes.
const NumTiers = 4

// ClampTier forces an arbitrary priority value into [0,3].
func ClampTier(p int) Tier {
	if p < int(TierCritical) {
		return TierCritical
	}
	if p > int(TierLow) {
		return TierLow
	}
	return Tier(p)
}

// String returns the string representation of the tier
func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierHigh:
		return "high"
	case TierNormal:
		return "normal"
	case TierLow:
		return "low"
	default:
		return "unknown"
	}
}

// EngineType represents the synthesis engine selection
type EngineType string

const (
	// EngineMock generates deterministic tones for development and tests
	EngineMock EngineType = "mock"

	// EnginePiper represents the Piper offline TTS engine
	EnginePiper EngineType = "piper"

	// EngineNone represents no engine selected
	EngineNone EngineType = ""
)

// Category routes a playback request to a mixer bus in the audio backend.
type Category string

const (
	CategoryVoice   Category = "voice"
	CategoryMusic   Category = "music"
	CategorySFX     Category = "sfx"
	CategoryAmbient Category = "ambient"
)

// Handle is an opaque playback handle owned by the audio backend.
// The zero value never refers to a live playback.
type Handle uint64

// WordTiming is word-level timing metadata for a spoken line.
type WordTiming struct {
	Word     string        `yaml:"word" json:"word"`
	Start    time.Duration `yaml:"start" json:"start"`
	Duration time.Duration `yaml:"duration" json:"duration"`
}

// End returns the time at which the word stops.
func (w WordTiming) End() time.Duration {
	return w.Start + w.Duration
}

// DialogueItem is a single spoken line.
type DialogueItem struct {
	// ID is unique while the item is queued, active or paused
	ID string

	// SpeakerID identifies the character speaking the line
	SpeakerID string

	// Text is the line to speak
	Text string

	// Priority is the interrupt tier, clamped to [0,3]
	Priority Tier

	// AudioPayload is empty until synthesized
	AudioPayload []byte

	// Duration of the spoken audio, zero when unknown
	Duration time.Duration

	// WordTimings are ordered by start time
	WordTimings []WordTiming

	// PersonalityTraits are passed through to the synthesizer
	PersonalityTraits []string

	// Emotion is an optional delivery tag ("angry", "whisper", ...)
	Emotion string
}

// Normalize clamps the priority into range.
func (d *DialogueItem) Normalize() {
	d.Priority = ClampTier(int(d.Priority))
}

// HasAudio reports whether the item carries a synthesized payload.
func (d DialogueItem) HasAudio() bool {
	return len(d.AudioPayload) > 0
}

// PhonemeFrame is one entry on a lip-sync timeline.
type PhonemeFrame struct {
	Time     time.Duration `json:"time"`
	Phoneme  string        `json:"phoneme"`
	Viseme   string        `json:"viseme"`
	Duration time.Duration `json:"duration"`
}

// LipSyncData is the lip animation derived for one dialogue item.
type LipSyncData struct {
	SourceItemID      string             `json:"sourceItemId"`
	Frames            []PhonemeFrame     `json:"frames"`
	BlendshapeWeights map[string]float64 `json:"blendshapeWeights"`
}

// SubtitleRecord is what the presentation layer needs to display a line.
type SubtitleRecord struct {
	Text            string
	SpeakerName     string
	ItemID          string
	WordTimings     []WordTiming
	DisplayDuration time.Duration
	StartTime       time.Duration
	EndTime         time.Duration
}

// QueueStatus is a snapshot of the scheduler's queues and admission counters.
type QueueStatus struct {
	Queued       [NumTiers]int
	TotalActive  int
	ActiveByTier [NumTiers]int
	Paused       int
}

// TotalQueued returns the number of items waiting in all lanes.
func (s QueueStatus) TotalQueued() int {
	n := 0
	for _, q := range s.Queued {
		n += q
	}
	return n
}

// AudioBackend plays audio payloads. Implementations own the lifetime of
// everything behind a Handle; the scheduler never holds anything else.
type AudioBackend interface {
	// Play starts playback and returns a handle for later control.
	Play(id string, payload []byte, category Category, volume float64) (Handle, error)

	// Stop halts playback. Stopping does not fire the completion handler.
	Stop(h Handle) error

	// SetCompletionHandler registers the callback invoked with the dialogue id
	// when playback ends naturally. It may be called from any goroutine.
	SetCompletionHandler(fn func(id string))
}

// Fader is implemented by backends that can ramp volume over time.
type Fader interface {
	SetVolumeOverTime(h Handle, target float64, d time.Duration) error
}

// Pauser is implemented by backends that can pause and resume playback.
type Pauser interface {
	Pause(h Handle) error
	Resume(h Handle) error
}

// SynthesisRequest describes a line to synthesize.
type SynthesisRequest struct {
	Text              string
	SpeakerID         string
	PersonalityTraits []string
	Emotion           string
}

// SynthesisResult is the output of a synthesizer.
type SynthesisResult struct {
	Audio       []byte
	Duration    time.Duration
	WordTimings []WordTiming
}

// Synthesizer converts text to audio.
// Implementations must honour ctx cancellation.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (SynthesisResult, error)
}

// EngineInfo describes engine capabilities and configuration.
type EngineInfo struct {
	Name       string // Engine name (e.g., "piper", "mock")
	SampleRate int    // Audio sample rate in Hz
	Channels   int    // Number of audio channels (1=mono, 2=stereo)
	BitDepth   int    // Bits per sample (typically 16)
	IsOnline   bool   // Whether the engine requires network access
}

// CacheStats provides cache performance metrics.
type CacheStats struct {
	Hits      int64 // Number of cache hits
	Misses    int64 // Number of cache misses
	Evictions int64 // Number of evictions
	Size      int64 // Current cache size in bytes
}
