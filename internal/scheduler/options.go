package scheduler

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/events"
	"github.com/dgnsrekt/parley/internal/interrupt"
	"github.com/dgnsrekt/parley/internal/lipsync"
	"github.com/dgnsrekt/parley/internal/queue"
	"github.com/dgnsrekt/parley/internal/subtitle"
	"github.com/dgnsrekt/parley/internal/ttypes"
)

// Config holds scheduler tuning.
type Config struct {
	// Limits caps concurrently active items per tier
	Limits queue.Limits

	// CrossfadeWindow is how long a crossfade takes
	CrossfadeWindow time.Duration

	// SynthesisTimeout bounds a single synthesis request
	SynthesisTimeout time.Duration

	// DefaultPriority is used by PlayDialogue when no priority is given
	DefaultPriority ttypes.Tier

	// Volume is the playback volume for dialogue, 0 to 1
	Volume float64

	// LipSync enables lip-sync generation on start
	LipSync bool

	// HistorySize is how many finished or stopped items State remembers
	HistorySize int
}

// DefaultConfig returns the stock scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Limits:           queue.DefaultLimits(),
		CrossfadeWindow:  500 * time.Millisecond,
		SynthesisTimeout: 30 * time.Second,
		DefaultPriority:  ttypes.TierNormal,
		Volume:           1.0,
		LipSync:          true,
		HistorySize:      256,
	}
}

// Timer is a pending deferred callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithAudioBackend sets the playback backend. The scheduler registers
// itself as the backend's completion handler.
func WithAudioBackend(b ttypes.AudioBackend) Option {
	return func(s *Scheduler) { s.backend = b }
}

// WithSynthesizer sets the synthesizer used for items without audio.
func WithSynthesizer(synth ttypes.Synthesizer) Option {
	return func(s *Scheduler) { s.synth = synth }
}

// WithBus sets the event bus notifications are published on.
func WithBus(bus *events.Bus) Option {
	return func(s *Scheduler) { s.bus = bus }
}

// WithResolver replaces the default interrupt matrix.
func WithResolver(r *interrupt.Resolver) Option {
	return func(s *Scheduler) { s.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithAfterFunc replaces time.AfterFunc for deferred callbacks.
func WithAfterFunc(fn AfterFunc) Option {
	return func(s *Scheduler) { s.afterFunc = fn }
}

// WithLipSync sets the lip-sync generator.
func WithLipSync(g *lipsync.Generator) Option {
	return func(s *Scheduler) { s.lipsync = g }
}

// WithSubtitles sets the subtitle broadcaster.
func WithSubtitles(b *subtitle.Broadcaster) Option {
	return func(s *Scheduler) { s.subtitles = b }
}

// PlayOption configures a dialogue created by PlayDialogue.
type PlayOption func(*ttypes.DialogueItem)

// WithPriority sets the interrupt tier.
func WithPriority(p int) PlayOption {
	return func(d *ttypes.DialogueItem) { d.Priority = ttypes.ClampTier(p) }
}

// WithID sets an explicit id instead of a generated one.
func WithID(id string) PlayOption {
	return func(d *ttypes.DialogueItem) { d.ID = id }
}

// WithEmotion sets the delivery tag passed to the synthesizer.
func WithEmotion(emotion string) PlayOption {
	return func(d *ttypes.DialogueItem) { d.Emotion = emotion }
}

// WithTraits sets personality traits passed to the synthesizer.
func WithTraits(traits ...string) PlayOption {
	return func(d *ttypes.DialogueItem) { d.PersonalityTraits = traits }
}

// WithAudio supplies pre-synthesized audio.
func WithAudio(payload []byte, duration time.Duration, timings []ttypes.WordTiming) PlayOption {
	return func(d *ttypes.DialogueItem) {
		d.AudioPayload = payload
		d.Duration = duration
		d.WordTimings = timings
	}
}
