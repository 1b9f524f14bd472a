package engines

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/parley/internal/audio"
	"github.com/dgnsrekt/parley/internal/tts"
	"github.com/dgnsrekt/parley/internal/ttypes"
)

// MockConfig holds configuration for the mock engine.
type MockConfig struct {
	// SampleRate of the generated WAV (defaults to 22050)
	SampleRate int

	// WordsPerMinute sets the speaking rate (defaults to 160)
	WordsPerMinute int

	// Delay simulates synthesis latency
	Delay time.Duration
}

// MockEngine voices each word as a short tone. Every speaker gets its own
// pitch so overlapping lines are easy to tell apart.
type MockEngine struct {
	config MockConfig

	// Control for testing
	mu           sync.Mutex
	failureError error

	callCount atomic.Int64
}

// NewMockEngine creates a mock engine.
func NewMockEngine(config MockConfig) *MockEngine {
	if config.SampleRate <= 0 {
		config.SampleRate = audio.DefaultSampleRate
	}
	if config.WordsPerMinute <= 0 {
		config.WordsPerMinute = tts.DefaultWordsPerMinute
	}
	return &MockEngine{config: config}
}

// Synthesize renders req as a WAV payload with estimated word timings.
func (e *MockEngine) Synthesize(ctx context.Context, req ttypes.SynthesisRequest) (ttypes.SynthesisResult, error) {
	e.callCount.Add(1)

	if err := tts.ValidateText(req.Text, 0); err != nil {
		return ttypes.SynthesisResult{}, err
	}

	if e.config.Delay > 0 {
		select {
		case <-time.After(e.config.Delay):
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return ttypes.SynthesisResult{}, tts.FromContext(err, "mock synthesis")
	}

	e.mu.Lock()
	failure := e.failureError
	e.mu.Unlock()
	if failure != nil {
		return ttypes.SynthesisResult{}, tts.NewTTSError(tts.ErrorCodeEngineFailure, "mock synthesis failed", failure)
	}

	speed := tts.SpeedFor(1.0, req.Emotion)
	duration := tts.EstimateDuration(req.Text, e.config.WordsPerMinute, speed)
	timings := tts.EstimateWordTimings(req.Text, duration)

	samples := e.render(duration, timings, pitchFor(req.SpeakerID))
	wav, err := audio.EncodeWAV(samples, e.config.SampleRate)
	if err != nil {
		return ttypes.SynthesisResult{}, tts.NewTTSError(tts.ErrorCodeAudioFormat, "failed to encode WAV", err)
	}

	return ttypes.SynthesisResult{
		Audio:       wav,
		Duration:    duration,
		WordTimings: timings,
	}, nil
}

// render produces a tone during each word and silence in the gaps.
func (e *MockEngine) render(duration time.Duration, timings []ttypes.WordTiming, freq float64) []float32 {
	rate := float64(e.config.SampleRate)
	samples := make([]float32, int(duration.Seconds()*rate))

	for _, w := range timings {
		start := int(w.Start.Seconds() * rate)
		end := int(w.End().Seconds() * rate)
		if end > len(samples) {
			end = len(samples)
		}
		n := end - start
		for i := start; i < end; i++ {
			// short linear ramps avoid clicks at word edges
			pos := i - start
			env := math.Min(1, math.Min(float64(pos), float64(n-pos))/64)
			samples[i] = float32(0.2 * env * math.Sin(2*math.Pi*freq*float64(i)/rate))
		}
	}
	return samples
}

// pitchFor maps a speaker onto 110-330 Hz.
func pitchFor(speakerID string) float64 {
	h := fnv.New32a()
	h.Write([]byte(speakerID))
	return 110 + float64(h.Sum32()%221)
}

// GetInfo returns engine capabilities.
func (e *MockEngine) GetInfo() ttypes.EngineInfo {
	return ttypes.EngineInfo{
		Name:       string(ttypes.EngineMock),
		SampleRate: e.config.SampleRate,
		Channels:   audio.DefaultChannels,
		BitDepth:   audio.DefaultBitDepth,
		IsOnline:   false,
	}
}

// Test control methods

// SetFailure makes every following call fail with err.
func (e *MockEngine) SetFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failureError = err
}

// ClearFailure resets the engine to normal operation.
func (e *MockEngine) ClearFailure() {
	e.SetFailure(nil)
}

// CallCount returns the number of Synthesize calls.
func (e *MockEngine) CallCount() int64 {
	return e.callCount.Load()
}

var _ ttypes.Synthesizer = (*MockEngine)(nil)
