package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/audio"
	"github.com/dgnsrekt/parley/internal/cache"
	"github.com/dgnsrekt/parley/internal/config"
	"github.com/dgnsrekt/parley/internal/events"
	"github.com/dgnsrekt/parley/internal/logging"
	"github.com/dgnsrekt/parley/internal/scheduler"
	"github.com/dgnsrekt/parley/internal/subtitle"
	"github.com/dgnsrekt/parley/internal/tts"
	"github.com/dgnsrekt/parley/internal/tts/engines"
	"github.com/dgnsrekt/parley/internal/ttypes"
	"github.com/dustin/go-humanize"
)

// session wires the scheduler to its backend, synthesizer and bus.
type session struct {
	cfg       config.Config
	logger    *log.Logger
	bus       *events.Bus
	backend   ttypes.AudioBackend
	engine    ttypes.EngineType
	synth     ttypes.Synthesizer
	cache     *cache.MemoryCache
	metrics   *logging.Recorder
	scheduler *scheduler.Scheduler

	closers []io.Closer
}

// newSession builds everything play needs. engineArg and backendArg
// override the configured engine and backend when set.
func newSession(cfg config.Config, engineArg, backendArg string, logger *log.Logger) (*session, error) {
	s := &session{
		cfg:     cfg,
		logger:  logger,
		bus:     events.NewBus(),
		metrics: logging.NewRecorder(logger.WithPrefix("tts"), 0),
	}

	engineType, err := tts.ValidateEngineSelection(engineArg, ttypes.EngineType(cfg.TTS.Engine))
	if err != nil {
		return nil, err
	}
	s.engine = engineType

	if err := s.buildSynthesizer(); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.buildBackend(backendArg); err != nil {
		_ = s.Close()
		return nil, err
	}

	resolver, err := cfg.Resolver()
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	s.scheduler = scheduler.New(cfg.ToScheduler(),
		scheduler.WithAudioBackend(s.backend),
		scheduler.WithSynthesizer(s.synth),
		scheduler.WithBus(s.bus),
		scheduler.WithResolver(resolver),
		scheduler.WithSubtitles(subtitle.NewBroadcaster(s.bus, cfg.ToSubtitle())),
		scheduler.WithLogger(logger.WithPrefix("scheduler")),
	)
	return s, nil
}

// buildSynthesizer layers cache and rate limit over the engine:
// Cached -> RateLimited -> engine, so cache hits skip the limiter.
func (s *session) buildSynthesizer() error {
	var engine ttypes.Synthesizer
	switch s.engine {
	case ttypes.EngineMock:
		engine = engines.NewMockEngine(s.cfg.ToMock())

	case ttypes.EnginePiper:
		pc := s.cfg.ToPiper()
		if res := tts.ValidateEngine(ttypes.EnginePiper, pc.PiperPaths); !res.Available {
			if res.Guidance != "" {
				return fmt.Errorf("%w\n\n%s", res.Error, res.Guidance)
			}
			return res.Error
		}
		p, err := engines.NewPiperEngine(pc, s.logger.WithPrefix("piper"))
		if err != nil {
			return err
		}
		engine = p

	default:
		return fmt.Errorf("%w: %s", tts.ErrInvalidEngine, s.engine)
	}

	limited := tts.NewRateLimited(engine, s.cfg.TTS.RequestsPerMinute, s.cfg.TTS.Burst)

	if s.cfg.TTS.CacheSize > 0 {
		c, err := cache.NewMemoryCache(s.cfg.TTS.CacheSize, s.cfg.TTS.CompressionLevel)
		if err != nil {
			return err
		}
		s.cache = c
		s.closers = append(s.closers, c)
	}

	s.synth = tts.NewCached(limited, string(s.engine), s.cache, s.metrics, s.logger.WithPrefix("cache"))
	return nil
}

func (s *session) buildBackend(backendArg string) error {
	backend := strings.ToLower(strings.TrimSpace(backendArg))
	if backend == "" {
		backend = s.cfg.Audio.Backend
	}

	switch backend {
	case config.BackendMock:
		b := audio.DefaultMockBackend()
		b.SetAutoComplete(true, audio.WAVDuration)
		s.backend = b
		s.closers = append(s.closers, b)

	case config.BackendOto:
		pc, err := s.cfg.ToPlayer()
		if err != nil {
			return err
		}
		b, err := audio.NewOtoBackend(pc)
		if err != nil {
			return fmt.Errorf("unable to open audio device: %w", err)
		}
		s.backend = b
		s.closers = append(s.closers, b)

	default:
		return fmt.Errorf("%w: unknown audio backend %q", config.ErrInvalidConfig, backend)
	}
	return nil
}

// stats summarizes the cache and synthesis metrics for the status bar.
func (s *session) stats() string {
	var parts []string
	if s.cache != nil {
		cs := s.cache.Stats()
		parts = append(parts, fmt.Sprintf("cache %s/%s",
			humanize.Bytes(uint64(cs.Size)), humanize.Bytes(uint64(cs.Capacity)))) //nolint:gosec
	}
	if st := s.metrics.Stats(); st.Total > 0 {
		parts = append(parts, fmt.Sprintf("%s synthesized, %.0f%% cached",
			humanize.Comma(int64(st.Total)), st.CacheHitRate()))
	}
	return strings.Join(parts, " · ")
}

// idle reports whether nothing is playing, queued or paused.
func (s *session) idle() bool {
	qs := s.scheduler.GetQueueStatus()
	return qs.TotalActive == 0 && qs.TotalQueued() == 0 && qs.Paused == 0
}

// Close shuts down the scheduler, then the backend and cache.
func (s *session) Close() error {
	if s.scheduler != nil {
		s.scheduler.Close()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	if s.metrics != nil {
		s.logger.Debug("Synthesis summary", "stats", s.metrics.GetSynthesisStats())
	}
	return errors.Join(errs...)
}
