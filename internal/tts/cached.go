package tts

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/cache"
	"github.com/dgnsrekt/parley/internal/logging"
	"github.com/dgnsrekt/parley/internal/ttypes"
)

// Cached serves repeated lines from a MemoryCache and records every
// request.
type Cached struct {
	next    ttypes.Synthesizer
	engine  string
	cache   *cache.MemoryCache
	metrics *logging.Recorder
	logger  *log.Logger
}

// NewCached wraps next. A nil cache only records metrics; a nil recorder
// records nothing.
func NewCached(next ttypes.Synthesizer, engine string, c *cache.MemoryCache, metrics *logging.Recorder, logger *log.Logger) *Cached {
	if logger == nil {
		logger = log.Default()
	}
	return &Cached{
		next:    next,
		engine:  engine,
		cache:   c,
		metrics: metrics,
		logger:  logger,
	}
}

// Synthesize returns a cached result or calls the wrapped synthesizer
// and stores what it produced.
func (c *Cached) Synthesize(ctx context.Context, req ttypes.SynthesisRequest) (ttypes.SynthesisResult, error) {
	var m *logging.Metrics
	if c.metrics != nil {
		m = c.metrics.StartSynthesis(c.engine, req.SpeakerID, req.Text)
	}

	key := cache.Key(req.Text, req.SpeakerID, req.Emotion, req.PersonalityTraits)
	if c.cache != nil {
		if res, ok := c.cache.Get(key); ok {
			c.logger.Debug("Cache hit", "key", key, "speaker", req.SpeakerID)
			if m != nil {
				m.EndSynthesis(len(res.Audio), true, nil)
			}
			return res, nil
		}
		c.logger.Debug("Cache miss", "key", key)
	}

	res, err := c.next.Synthesize(ctx, req)
	if m != nil {
		m.EndSynthesis(len(res.Audio), false, err)
	}
	if err != nil {
		return res, err
	}

	if c.cache != nil && len(res.Audio) > 0 {
		// cache errors are non-fatal
		if err := c.cache.Put(key, res); err != nil {
			c.logger.Debug("Not caching synthesis result", "key", key, "error", err)
		}
	}
	return res, nil
}

var _ ttypes.Synthesizer = (*Cached)(nil)
