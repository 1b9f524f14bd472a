package engines

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/audio"
	"github.com/dgnsrekt/parley/internal/tts"
	"github.com/dgnsrekt/parley/internal/ttypes"
)

const (
	defaultPiperTimeout = 10 * time.Second
	maxPiperOutput      = 10 * 1024 * 1024 // 10MB
)

// PiperConfig holds configuration for the Piper engine.
type PiperConfig struct {
	tts.PiperPaths

	// SampleRate of the model output (defaults to 22050)
	SampleRate int

	// Speed is the base speaking speed, 0.5 to 2.0
	Speed float64

	// Voices maps dialogue speakers to model speaker numbers for
	// multi-speaker models
	Voices map[string]int

	// Timeout bounds one piper run
	Timeout time.Duration
}

// PiperEngine synthesizes with a fresh piper process per line. Text is
// written to stdin before the process starts.
type PiperEngine struct {
	config PiperConfig
	logger *log.Logger

	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewPiperEngine creates a Piper engine. The model file must exist.
func NewPiperEngine(config PiperConfig, logger *log.Logger) (*PiperEngine, error) {
	if config.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}

	if config.Binary == "" {
		config.Binary = "piper"
	}
	config.ConfigPath = config.ResolvedConfigPath()
	if config.SampleRate <= 0 {
		config.SampleRate = audio.DefaultSampleRate
	}
	if tts.ValidateSpeed(config.Speed) != nil {
		config.Speed = 1.0
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultPiperTimeout
	}
	if logger == nil {
		logger = log.Default()
	}

	return &PiperEngine{
		config:  config,
		logger:  logger,
		command: exec.CommandContext,
	}, nil
}

// Synthesize runs piper for one line and wraps its raw PCM output as WAV.
func (e *PiperEngine) Synthesize(ctx context.Context, req ttypes.SynthesisRequest) (ttypes.SynthesisResult, error) {
	if err := tts.ValidateText(req.Text, tts.DefaultMaxTextSize); err != nil {
		return ttypes.SynthesisResult{}, err
	}

	args := e.args(req)

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	cmd := e.command(ctx, e.config.Binary, args...)
	cmd.Stdin = strings.NewReader(req.Text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	e.logger.Debug("Subprocess executed",
		"command", e.config.Binary,
		"speaker", req.SpeakerID,
		"duration", time.Since(start),
		"error", err)

	if ctx.Err() != nil {
		return ttypes.SynthesisResult{}, tts.FromContext(ctx.Err(), "piper synthesis")
	}
	if err != nil {
		return ttypes.SynthesisResult{}, tts.NewTTSError(tts.ErrorCodeEngineFailure, "piper failed", err).
			WithContext("stderr", strings.TrimSpace(stderr.String()))
	}

	raw := stdout.Bytes()
	switch {
	case len(raw) < 2:
		return ttypes.SynthesisResult{}, tts.NewTTSError(tts.ErrorCodeAudioFormat, "piper produced no audio output", nil).
			WithContext("stderr", strings.TrimSpace(stderr.String()))
	case len(raw) > maxPiperOutput:
		return ttypes.SynthesisResult{}, tts.NewTTSError(tts.ErrorCodeResourceExhausted,
			fmt.Sprintf("piper output too large: %d bytes (max %d)", len(raw), maxPiperOutput), nil)
	}

	samples := pcm16ToFloat(raw)
	wav, err := audio.EncodeWAV(samples, e.config.SampleRate)
	if err != nil {
		return ttypes.SynthesisResult{}, tts.NewTTSError(tts.ErrorCodeAudioFormat, "failed to encode WAV", err)
	}

	duration := time.Duration(len(samples)) * time.Second / time.Duration(e.config.SampleRate)
	return ttypes.SynthesisResult{
		Audio:       wav,
		Duration:    duration,
		WordTimings: tts.EstimateWordTimings(req.Text, duration),
	}, nil
}

func (e *PiperEngine) args(req ttypes.SynthesisRequest) []string {
	speed := tts.SpeedFor(e.config.Speed, req.Emotion)

	args := []string{
		"--model", e.config.ModelPath,
		"--config", e.config.ConfigPath,
		"--output-raw",
		"--length-scale", fmt.Sprintf("%.2f", tts.LengthScale(speed)),
	}
	if speaker, ok := e.config.Voices[req.SpeakerID]; ok {
		args = append(args, "--speaker", strconv.Itoa(speaker))
	}
	return args
}

// pcm16ToFloat converts little-endian signed 16-bit samples. A trailing
// odd byte is dropped.
func pcm16ToFloat(raw []byte) []float32 {
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		samples[i] = float32(s) / 32768
	}
	return samples
}

// GetInfo returns engine capabilities.
func (e *PiperEngine) GetInfo() ttypes.EngineInfo {
	return ttypes.EngineInfo{
		Name:       string(ttypes.EnginePiper),
		SampleRate: e.config.SampleRate,
		Channels:   1, // Piper outputs mono
		BitDepth:   16,
		IsOnline:   false,
	}
}

var _ ttypes.Synthesizer = (*PiperEngine)(nil)
