package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// SetDefaults registers the default configuration with v so that
// `parley config` and flag bindings see every key.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)

	v.SetDefault("scheduler.tier_limits", d.Scheduler.TierLimits)
	v.SetDefault("scheduler.crossfade_window", d.Scheduler.CrossfadeWindow)
	v.SetDefault("scheduler.synthesis_timeout", d.Scheduler.SynthesisTimeout)
	v.SetDefault("scheduler.default_priority", d.Scheduler.DefaultPriority)
	v.SetDefault("scheduler.volume", d.Scheduler.Volume)
	v.SetDefault("scheduler.history_size", d.Scheduler.HistorySize)

	v.SetDefault("subtitle.min_display", d.Subtitle.MinDisplay)
	v.SetDefault("subtitle.buffer", d.Subtitle.Buffer)

	v.SetDefault("lipsync.enabled", d.LipSync.Enabled)

	v.SetDefault("tts.engine", d.TTS.Engine)
	v.SetDefault("tts.requests_per_minute", d.TTS.RequestsPerMinute)
	v.SetDefault("tts.burst", d.TTS.Burst)
	v.SetDefault("tts.cache_size", d.TTS.CacheSize)
	v.SetDefault("tts.compression_level", d.TTS.CompressionLevel)
	v.SetDefault("tts.mock.words_per_minute", d.TTS.Mock.WordsPerMinute)
	v.SetDefault("tts.mock.delay", d.TTS.Mock.Delay)
	v.SetDefault("tts.piper.binary", d.TTS.Piper.Binary)
	v.SetDefault("tts.piper.sample_rate", d.TTS.Piper.SampleRate)
	v.SetDefault("tts.piper.speed", d.TTS.Piper.Speed)
	v.SetDefault("tts.piper.timeout", d.TTS.Piper.Timeout)

	v.SetDefault("audio.backend", d.Audio.Backend)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.buffer_size", d.Audio.BufferSize)
}

// Load builds a Config from the defaults, whatever v holds (config file
// and bound flags), then PARLEY_ environment overrides, and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
