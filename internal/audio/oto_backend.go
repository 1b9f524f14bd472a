package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/ttypes"
	"github.com/ebitengine/oto/v3"
)

// rampStep is the interval between volume updates during a fade and
// between completion checks.
const rampStep = 20 * time.Millisecond

// PlayerConfig contains configuration for the oto backend.
type PlayerConfig struct {
	SampleRate int // 44100 or 48000 Hz only
	Channels   int // 1 = mono, 2 = stereo
	BitDepth   int // 16 bits per sample
	BufferSize int // Buffer size for streaming

	// CategoryGain scales the volume of each mixer category
	CategoryGain map[ttypes.Category]float64
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 44100, // CD quality
		Channels:   1,     // Mono for dialogue
		BitDepth:   16,    // Standard bit depth
		BufferSize: 4096,  // 4KB buffer
	}
}

// ValidatePlayerConfig checks a configuration before a backend is opened.
func ValidatePlayerConfig(config PlayerConfig) error {
	// OTO only supports specific sample rates reliably
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}

	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}

	if config.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", config.BitDepth)
	}

	if config.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}

	for cat, gain := range config.CategoryGain {
		if gain < 0 || gain > 1 {
			return fmt.Errorf("gain for %s must be between 0.0 and 1.0, got %f", cat, gain)
		}
	}

	return nil
}

// OtoBackend plays several dialogue voices at once through a single oto
// context. oto allows one context per process, so create one backend and
// share it.
type OtoBackend struct {
	context *oto.Context
	config  PlayerConfig

	mu         sync.Mutex
	voices     map[ttypes.Handle]*voice
	nextHandle ttypes.Handle
	onComplete func(id string)
	closed     bool

	done chan struct{}
	wg   sync.WaitGroup
}

// voice is one playing line.
type voice struct {
	id       string
	category ttypes.Category
	player   *oto.Player
	stream   *AudioStream
	state    PlayerState
	volume   float64
	ramp     chan struct{} // closed to cancel an in-flight fade
}

// AudioStream keeps PCM data alive while oto reads from it.
type AudioStream struct {
	data     []byte
	reader   io.Reader
	duration time.Duration
}

// NewOtoBackend opens the audio device.
func NewOtoBackend(config PlayerConfig) (*OtoBackend, error) {
	if err := ValidatePlayerConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE, // 16-bit little endian
		BufferSize:   time.Duration(config.BufferSize) * time.Second / time.Duration(config.SampleRate*config.Channels*2),
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	// Wait for context to be ready
	<-readyChan

	b := &OtoBackend{
		context: ctx,
		config:  config,
		voices:  make(map[ttypes.Handle]*voice),
		done:    make(chan struct{}),
	}

	b.wg.Add(1)
	go b.watch()

	return b, nil
}

// SetCompletionHandler registers the natural-end callback.
func (b *OtoBackend) SetCompletionHandler(fn func(id string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onComplete = fn
}

// Play starts a new voice. WAV payloads are decoded and converted to the
// device format; anything else is treated as raw device-format PCM.
func (b *OtoBackend) Play(id string, payload []byte, category ttypes.Category, volume float64) (ttypes.Handle, error) {
	if len(payload) == 0 {
		return 0, errors.New("audio data is empty")
	}
	if volume < 0 || volume > 1 {
		return 0, fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}

	stream, err := b.createAudioStream(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to create audio stream: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrBackendClosed
	}

	player := b.context.NewPlayer(stream.reader)
	if player == nil {
		return 0, errors.New("failed to create oto player")
	}

	v := &voice{
		id:       id,
		category: category,
		player:   player,
		stream:   stream,
		state:    StatePlaying,
		volume:   volume,
	}
	player.SetVolume(b.gain(v, volume))

	b.nextHandle++
	h := b.nextHandle
	b.voices[h] = v

	player.Play()

	log.Debug("Voice started", "id", id, "handle", h, "duration", stream.duration)
	return h, nil
}

// createAudioStream converts the payload to device-format PCM and keeps
// it alive for the lifetime of the voice.
func (b *OtoBackend) createAudioStream(payload []byte) (*AudioStream, error) {
	var data []byte
	if IsWAV(payload) {
		pcm, err := DecodeWAV(payload)
		if err != nil {
			return nil, err
		}
		data = ToPCM16(pcm, b.config.SampleRate, b.config.Channels)
	} else {
		// Make a copy to ensure we own the data
		data = make([]byte, len(payload))
		copy(data, payload)
	}
	if len(data) == 0 {
		return nil, errors.New("no samples to play")
	}

	bytesPerFrame := b.config.Channels * b.config.BitDepth / 8
	frames := len(data) / bytesPerFrame
	duration := time.Duration(frames) * time.Second / time.Duration(b.config.SampleRate)

	return &AudioStream{
		data:     data,
		reader:   bytes.NewReader(data),
		duration: duration,
	}, nil
}

// Stop halts a voice without firing the completion handler.
func (b *OtoBackend) Stop(h ttypes.Handle) error {
	b.mu.Lock()
	v, ok := b.voices[h]
	if ok {
		delete(b.voices, h)
	}
	b.mu.Unlock()

	if !ok {
		return ErrUnknownHandle
	}
	return b.closeVoice(v)
}

func (b *OtoBackend) closeVoice(v *voice) error {
	b.mu.Lock()
	if v.ramp != nil {
		close(v.ramp)
		v.ramp = nil
	}
	v.state = StateStopped
	b.mu.Unlock()

	v.player.Pause() // Pause first
	err := v.player.Close()
	v.stream = nil // allow GC of audio data
	return err
}

// Pause pauses a playing voice.
func (b *OtoBackend) Pause(h ttypes.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.voices[h]
	if !ok {
		return ErrUnknownHandle
	}
	if v.state != StatePlaying {
		return fmt.Errorf("cannot pause: voice is %s", v.state)
	}

	v.player.Pause()
	v.state = StatePaused
	return nil
}

// Resume resumes a paused voice.
func (b *OtoBackend) Resume(h ttypes.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.voices[h]
	if !ok {
		return ErrUnknownHandle
	}
	if v.state != StatePaused {
		return fmt.Errorf("cannot resume: voice is %s", v.state)
	}

	v.player.Play()
	v.state = StatePlaying
	return nil
}

// SetVolumeOverTime ramps a voice linearly to target over d. A new ramp
// replaces one already in progress.
func (b *OtoBackend) SetVolumeOverTime(h ttypes.Handle, target float64, d time.Duration) error {
	if target < 0 || target > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", target)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.voices[h]
	if !ok {
		return ErrUnknownHandle
	}
	if v.ramp != nil {
		close(v.ramp)
		v.ramp = nil
	}

	if d <= 0 {
		v.volume = target
		v.player.SetVolume(b.gain(v, target))
		return nil
	}

	cancel := make(chan struct{})
	v.ramp = cancel

	b.wg.Add(1)
	go b.rampVolume(v, v.volume, target, d, cancel)
	return nil
}

func (b *OtoBackend) rampVolume(v *voice, from, to float64, d time.Duration, cancel chan struct{}) {
	defer b.wg.Done()

	ticker := time.NewTicker(rampStep)
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-cancel:
			return
		case <-b.done:
			return
		case <-ticker.C:
			progress := float64(time.Since(start)) / float64(d)
			if progress > 1 {
				progress = 1
			}

			b.mu.Lock()
			if v.ramp != cancel {
				b.mu.Unlock()
				return
			}
			v.volume = from + (to-from)*progress
			v.player.SetVolume(b.gain(v, v.volume))
			if progress >= 1 {
				v.ramp = nil
			}
			b.mu.Unlock()

			if progress >= 1 {
				return
			}
		}
	}
}

// gain applies the category gain. Caller holds mu or owns v.
func (b *OtoBackend) gain(v *voice, volume float64) float64 {
	if g, ok := b.config.CategoryGain[v.category]; ok {
		return volume * g
	}
	return volume
}

// watch reports voices whose players have drained.
func (b *OtoBackend) watch() {
	defer b.wg.Done()

	ticker := time.NewTicker(rampStep)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			for _, v := range b.drained() {
				if err := b.closeVoice(v); err != nil {
					log.Debug("Error closing voice", "id", v.id, "error", err)
				}

				b.mu.Lock()
				fn := b.onComplete
				b.mu.Unlock()
				if fn != nil {
					fn(v.id)
				}
			}
		}
	}
}

func (b *OtoBackend) drained() []*voice {
	b.mu.Lock()
	defer b.mu.Unlock()

	var done []*voice
	for h, v := range b.voices {
		if v.state == StatePlaying && !v.player.IsPlaying() {
			delete(b.voices, h)
			done = append(done, v)
		}
	}
	return done
}

// Close stops every voice and releases the backend. The oto context
// itself cannot be closed in v3 and is left to the garbage collector.
func (b *OtoBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	voices := b.voices
	b.voices = make(map[ttypes.Handle]*voice)
	b.mu.Unlock()

	close(b.done)

	var errs []error
	for _, v := range voices {
		if err := b.closeVoice(v); err != nil {
			errs = append(errs, err)
		}
	}
	b.wg.Wait()

	b.mu.Lock()
	b.context = nil
	b.mu.Unlock()

	return errors.Join(errs...)
}

// ActiveCount returns the number of playing or paused voices.
func (b *OtoBackend) ActiveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.voices)
}

// Ensure OtoBackend implements the backend interfaces
var (
	_ ttypes.AudioBackend = (*OtoBackend)(nil)
	_ ttypes.Fader        = (*OtoBackend)(nil)
	_ ttypes.Pauser       = (*OtoBackend)(nil)
)
