package logging

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Metrics describes one synthesis request.
type Metrics struct {
	Engine            string
	SpeakerID         string
	TextLength        int
	SynthesisStart    time.Time
	SynthesisEnd      time.Time
	SynthesisDuration time.Duration
	AudioBytes        int
	CacheHit          bool
	ErrorOccurred     bool
	ErrorMessage      string

	rec *Recorder
}

// Recorder collects synthesis metrics and logs each one at debug level.
type Recorder struct {
	mu      sync.Mutex
	logger  *log.Logger
	metrics []Metrics
	limit   int
}

// SynthesisStats summarizes recorded metrics.
type SynthesisStats struct {
	Total       int
	Errors      int
	CacheHits   int
	TotalBytes  int
	AvgDuration time.Duration
}

// CacheHitRate returns the percentage of requests served from cache.
func (s SynthesisStats) CacheHitRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.Total) * 100
}

// NewRecorder keeps up to limit metrics; older ones are dropped. A nil
// logger uses the default logger.
func NewRecorder(logger *log.Logger, limit int) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	if limit <= 0 {
		limit = 1024
	}
	return &Recorder{logger: logger, limit: limit}
}

// StartSynthesis starts tracking one request.
func (r *Recorder) StartSynthesis(engine, speakerID, text string) *Metrics {
	m := &Metrics{
		Engine:         engine,
		SpeakerID:      speakerID,
		TextLength:     len(text),
		SynthesisStart: time.Now(),
		rec:            r,
	}

	r.logger.Debug("Synthesis started",
		"engine", engine,
		"speaker", speakerID,
		"textLength", len(text))

	return m
}

// EndSynthesis completes tracking and stores the metrics.
func (m *Metrics) EndSynthesis(audioBytes int, cacheHit bool, err error) {
	m.SynthesisEnd = time.Now()
	m.SynthesisDuration = m.SynthesisEnd.Sub(m.SynthesisStart)
	m.AudioBytes = audioBytes
	m.CacheHit = cacheHit
	if err != nil {
		m.ErrorOccurred = true
		m.ErrorMessage = err.Error()
	}

	r := m.rec
	if r == nil {
		return
	}

	r.mu.Lock()
	r.metrics = append(r.metrics, *m)
	if len(r.metrics) > r.limit {
		r.metrics = r.metrics[len(r.metrics)-r.limit:]
	}
	r.mu.Unlock()

	if m.ErrorOccurred {
		r.logger.Error("Synthesis failed",
			"engine", m.Engine,
			"speaker", m.SpeakerID,
			"duration", m.SynthesisDuration,
			"error", m.ErrorMessage)
		return
	}
	r.logger.Debug("Synthesis completed",
		"engine", m.Engine,
		"speaker", m.SpeakerID,
		"audio", humanize.Bytes(uint64(m.AudioBytes)),
		"duration", m.SynthesisDuration,
		"cacheHit", m.CacheHit)
}

// Stats aggregates the recorded metrics.
func (r *Recorder) Stats() SynthesisStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		s     SynthesisStats
		total time.Duration
	)
	for _, m := range r.metrics {
		s.Total++
		total += m.SynthesisDuration
		s.TotalBytes += m.AudioBytes
		if m.CacheHit {
			s.CacheHits++
		}
		if m.ErrorOccurred {
			s.Errors++
		}
	}
	if s.Total > 0 {
		s.AvgDuration = total / time.Duration(s.Total)
	}
	return s
}

// GetSynthesisStats returns a human readable summary.
func (r *Recorder) GetSynthesisStats() string {
	s := r.Stats()
	if s.Total == 0 {
		return "No synthesis metrics available"
	}

	return fmt.Sprintf(
		"Synthesis Stats:\n"+
			"  Total: %d\n"+
			"  Avg Duration: %v\n"+
			"  Total Audio: %s\n"+
			"  Cache Hit Rate: %.1f%%\n"+
			"  Errors: %d",
		s.Total,
		s.AvgDuration,
		humanize.Bytes(uint64(s.TotalBytes)),
		s.CacheHitRate(),
		s.Errors,
	)
}
