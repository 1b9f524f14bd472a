// Package config holds parley's configuration: the scheduler, subtitle,
// lip-sync, synthesis and audio sections, loaded from a viper instance
// and overridden from PARLEY_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dgnsrekt/parley/internal/audio"
	"github.com/dgnsrekt/parley/internal/cache"
	"github.com/dgnsrekt/parley/internal/interrupt"
	"github.com/dgnsrekt/parley/internal/logging"
	"github.com/dgnsrekt/parley/internal/queue"
	"github.com/dgnsrekt/parley/internal/scheduler"
	"github.com/dgnsrekt/parley/internal/subtitle"
	"github.com/dgnsrekt/parley/internal/tts"
	"github.com/dgnsrekt/parley/internal/tts/engines"
	"github.com/dgnsrekt/parley/internal/ttypes"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "PARLEY_"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config contains all parley configuration options.
type Config struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level" env:"LOG_LEVEL"`
	LogFile  string `yaml:"log_file" mapstructure:"log_file" env:"LOG_FILE"`

	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler" envPrefix:"SCHEDULER_"`
	Subtitle  SubtitleConfig  `yaml:"subtitle" mapstructure:"subtitle" envPrefix:"SUBTITLE_"`
	LipSync   LipSyncConfig   `yaml:"lipsync" mapstructure:"lipsync" envPrefix:"LIPSYNC_"`
	TTS       TTSConfig       `yaml:"tts" mapstructure:"tts" envPrefix:"TTS_"`
	Audio     AudioConfig     `yaml:"audio" mapstructure:"audio" envPrefix:"AUDIO_"`
}

// SchedulerConfig tunes the playback scheduler.
type SchedulerConfig struct {
	// TierLimits caps concurrently active lines per tier, critical first
	TierLimits       []int         `yaml:"tier_limits" mapstructure:"tier_limits" env:"TIER_LIMITS" envSeparator:","`
	CrossfadeWindow  time.Duration `yaml:"crossfade_window" mapstructure:"crossfade_window" env:"CROSSFADE_WINDOW"`
	SynthesisTimeout time.Duration `yaml:"synthesis_timeout" mapstructure:"synthesis_timeout" env:"SYNTHESIS_TIMEOUT"`
	DefaultPriority  int           `yaml:"default_priority" mapstructure:"default_priority" env:"DEFAULT_PRIORITY"`
	Volume           float64       `yaml:"volume" mapstructure:"volume" env:"VOLUME"`
	HistorySize      int           `yaml:"history_size" mapstructure:"history_size" env:"HISTORY_SIZE"`

	// InterruptOverrides replaces matrix entries, keyed "new:current"
	InterruptOverrides map[string]string `yaml:"interrupt_overrides" mapstructure:"interrupt_overrides"`
}

// SubtitleConfig contains subtitle timing.
type SubtitleConfig struct {
	MinDisplay time.Duration `yaml:"min_display" mapstructure:"min_display" env:"MIN_DISPLAY"`
	Buffer     time.Duration `yaml:"buffer" mapstructure:"buffer" env:"BUFFER"`
}

// LipSyncConfig toggles lip-sync generation.
type LipSyncConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled" env:"ENABLED"`
}

// TTSConfig selects and tunes the synthesizer.
type TTSConfig struct {
	Engine            string `yaml:"engine" mapstructure:"engine" env:"ENGINE"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
	Burst             int    `yaml:"burst" mapstructure:"burst" env:"BURST"`

	// CacheSize is the synthesis cache capacity in bytes, zero disables it
	CacheSize        int64 `yaml:"cache_size" mapstructure:"cache_size" env:"CACHE_SIZE"`
	CompressionLevel int   `yaml:"compression_level" mapstructure:"compression_level" env:"COMPRESSION_LEVEL"`

	Mock  MockConfig  `yaml:"mock" mapstructure:"mock" envPrefix:"MOCK_"`
	Piper PiperConfig `yaml:"piper" mapstructure:"piper" envPrefix:"PIPER_"`
}

// MockConfig contains mock engine settings.
type MockConfig struct {
	WordsPerMinute int           `yaml:"words_per_minute" mapstructure:"words_per_minute" env:"WORDS_PER_MINUTE"`
	Delay          time.Duration `yaml:"delay" mapstructure:"delay" env:"DELAY"`
}

// PiperConfig contains Piper engine settings.
type PiperConfig struct {
	Binary     string        `yaml:"binary" mapstructure:"binary" env:"BINARY"`
	ModelPath  string        `yaml:"model_path" mapstructure:"model_path" env:"MODEL_PATH"`
	ConfigPath string        `yaml:"config_path" mapstructure:"config_path" env:"CONFIG_PATH"`
	SampleRate int           `yaml:"sample_rate" mapstructure:"sample_rate" env:"SAMPLE_RATE"`
	Speed      float64       `yaml:"speed" mapstructure:"speed" env:"SPEED"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout" env:"TIMEOUT"`

	// Voices maps speaker ids to speaker numbers of a multi-speaker model.
	// Keys are lowercased by viper.
	Voices map[string]int `yaml:"voices" mapstructure:"voices"`
}

// AudioConfig selects the playback backend.
type AudioConfig struct {
	Backend    string `yaml:"backend" mapstructure:"backend" env:"BACKEND"`
	SampleRate int    `yaml:"sample_rate" mapstructure:"sample_rate" env:"SAMPLE_RATE"`
	Channels   int    `yaml:"channels" mapstructure:"channels" env:"CHANNELS"`
	BufferSize int    `yaml:"buffer_size" mapstructure:"buffer_size" env:"BUFFER_SIZE"`

	// CategoryGain scales each mixer bus, keyed voice, music, sfx or ambient
	CategoryGain map[string]float64 `yaml:"category_gain" mapstructure:"category_gain"`
}

// Audio backends.
const (
	BackendOto  = "oto"
	BackendMock = "mock"
)

// Default returns a Config with sensible defaults.
func Default() Config {
	sched := scheduler.DefaultConfig()
	sub := subtitle.DefaultConfig()
	player := audio.DefaultPlayerConfig()

	return Config{
		LogLevel: "info",
		Scheduler: SchedulerConfig{
			TierLimits:       sched.Limits[:],
			CrossfadeWindow:  sched.CrossfadeWindow,
			SynthesisTimeout: sched.SynthesisTimeout,
			DefaultPriority:  int(sched.DefaultPriority),
			Volume:           sched.Volume,
			HistorySize:      sched.HistorySize,
		},
		Subtitle: SubtitleConfig{
			MinDisplay: sub.MinDisplay,
			Buffer:     sub.Buffer,
		},
		LipSync: LipSyncConfig{Enabled: sched.LipSync},
		TTS: TTSConfig{
			Engine:            string(ttypes.EngineMock),
			RequestsPerMinute: 60,
			Burst:             5,
			CacheSize:         64 << 20,
			CompressionLevel:  cache.DefaultCompressionLevel,
			Mock: MockConfig{
				WordsPerMinute: tts.DefaultWordsPerMinute,
			},
			Piper: PiperConfig{
				Binary:     "piper",
				SampleRate: audio.DefaultSampleRate,
				Speed:      1.0,
				Timeout:    30 * time.Second,
			},
		},
		Audio: AudioConfig{
			Backend:    BackendOto,
			SampleRate: player.SampleRate,
			Channels:   player.Channels,
			BufferSize: player.BufferSize,
		},
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s := c.Scheduler
	if len(s.TierLimits) != ttypes.NumTiers {
		return fmt.Errorf("%w: scheduler.tier_limits needs %d entries, got %d",
			ErrInvalidConfig, ttypes.NumTiers, len(s.TierLimits))
	}
	for i, l := range s.TierLimits {
		if l < 1 {
			return fmt.Errorf("%w: scheduler.tier_limits[%d] must be at least 1", ErrInvalidConfig, i)
		}
	}
	if s.CrossfadeWindow < 0 {
		return fmt.Errorf("%w: scheduler.crossfade_window must not be negative", ErrInvalidConfig)
	}
	if s.SynthesisTimeout <= 0 {
		return fmt.Errorf("%w: scheduler.synthesis_timeout must be positive", ErrInvalidConfig)
	}
	if s.DefaultPriority < 0 || s.DefaultPriority >= ttypes.NumTiers {
		return fmt.Errorf("%w: scheduler.default_priority must be between 0 and %d",
			ErrInvalidConfig, ttypes.NumTiers-1)
	}
	if s.Volume < 0 || s.Volume > 1 {
		return fmt.Errorf("%w: scheduler.volume must be between 0 and 1", ErrInvalidConfig)
	}
	if _, err := interrupt.WithOverrides(interrupt.DefaultTable(), s.InterruptOverrides); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Subtitle.MinDisplay < 0 || c.Subtitle.Buffer < 0 {
		return fmt.Errorf("%w: subtitle timings must not be negative", ErrInvalidConfig)
	}

	t := c.TTS
	if _, err := tts.ValidateEngineSelection(t.Engine, ttypes.EngineNone); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if t.RequestsPerMinute < 0 || t.Burst < 0 {
		return fmt.Errorf("%w: tts rate limits must not be negative", ErrInvalidConfig)
	}
	if t.CacheSize < 0 {
		return fmt.Errorf("%w: tts.cache_size must not be negative", ErrInvalidConfig)
	}
	if t.CompressionLevel < 0 || t.CompressionLevel > 22 {
		return fmt.Errorf("%w: tts.compression_level must be between 0 and 22", ErrInvalidConfig)
	}
	if err := tts.ValidateSpeed(t.Piper.Speed); err != nil {
		return fmt.Errorf("%w: tts.piper.speed: %v", ErrInvalidConfig, err)
	}
	for speaker, n := range t.Piper.Voices {
		if n < 0 {
			return fmt.Errorf("%w: tts.piper.voices[%s] must not be negative", ErrInvalidConfig, speaker)
		}
	}

	switch c.Audio.Backend {
	case BackendOto:
		if _, err := c.ToPlayer(); err != nil {
			return err
		}
	case BackendMock:
	default:
		return fmt.Errorf("%w: audio.backend must be %q or %q, got %q",
			ErrInvalidConfig, BackendOto, BackendMock, c.Audio.Backend)
	}

	return nil
}

// ApplyEnv overrides fields from PARLEY_ environment variables. Unset
// variables leave the current values alone.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// ToScheduler converts the scheduler section, lip-sync toggle included.
func (c Config) ToScheduler() scheduler.Config {
	cfg := scheduler.Config{
		CrossfadeWindow:  c.Scheduler.CrossfadeWindow,
		SynthesisTimeout: c.Scheduler.SynthesisTimeout,
		DefaultPriority:  ttypes.ClampTier(c.Scheduler.DefaultPriority),
		Volume:           c.Scheduler.Volume,
		LipSync:          c.LipSync.Enabled,
		HistorySize:      c.Scheduler.HistorySize,
	}

	var limits queue.Limits
	copy(limits[:], c.Scheduler.TierLimits)
	cfg.Limits = limits
	return cfg
}

// Resolver builds the interrupt resolver with any overrides applied.
func (c Config) Resolver() (*interrupt.Resolver, error) {
	table, err := interrupt.WithOverrides(interrupt.DefaultTable(), c.Scheduler.InterruptOverrides)
	if err != nil {
		return nil, err
	}
	return interrupt.NewResolver(table), nil
}

// ToSubtitle converts the subtitle section.
func (c Config) ToSubtitle() subtitle.Config {
	return subtitle.Config{
		MinDisplay: c.Subtitle.MinDisplay,
		Buffer:     c.Subtitle.Buffer,
	}
}

// ToPlayer converts and validates the audio section for the oto backend.
func (c Config) ToPlayer() (audio.PlayerConfig, error) {
	pc := audio.PlayerConfig{
		SampleRate: c.Audio.SampleRate,
		Channels:   c.Audio.Channels,
		BitDepth:   audio.DefaultBitDepth,
		BufferSize: c.Audio.BufferSize,
	}
	if len(c.Audio.CategoryGain) > 0 {
		pc.CategoryGain = make(map[ttypes.Category]float64, len(c.Audio.CategoryGain))
		for name, gain := range c.Audio.CategoryGain {
			pc.CategoryGain[ttypes.Category(strings.ToLower(name))] = gain
		}
	}
	if err := audio.ValidatePlayerConfig(pc); err != nil {
		return pc, fmt.Errorf("%w: audio: %v", ErrInvalidConfig, err)
	}
	return pc, nil
}

// ToMock converts the mock engine section.
func (c Config) ToMock() engines.MockConfig {
	return engines.MockConfig{
		SampleRate:     audio.DefaultSampleRate,
		WordsPerMinute: c.TTS.Mock.WordsPerMinute,
		Delay:          c.TTS.Mock.Delay,
	}
}

// ToPiper converts the piper engine section.
func (c Config) ToPiper() engines.PiperConfig {
	p := c.TTS.Piper
	return engines.PiperConfig{
		PiperPaths: tts.PiperPaths{
			Binary:     p.Binary,
			ModelPath:  p.ModelPath,
			ConfigPath: p.ConfigPath,
		},
		SampleRate: p.SampleRate,
		Speed:      p.Speed,
		Voices:     p.Voices,
		Timeout:    p.Timeout,
	}
}
