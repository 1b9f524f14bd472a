package tts

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/cache"
	"github.com/dgnsrekt/parley/internal/logging"
	"github.com/dgnsrekt/parley/internal/ttypes"
	"golang.org/x/time/rate"
)

type countingSynth struct {
	calls atomic.Int64
	err   error
}

func (c *countingSynth) Synthesize(ctx context.Context, req ttypes.SynthesisRequest) (ttypes.SynthesisResult, error) {
	c.calls.Add(1)
	if c.err != nil {
		return ttypes.SynthesisResult{}, c.err
	}
	return ttypes.SynthesisResult{
		Audio:       []byte(req.SpeakerID + ":" + req.Text),
		Duration:    time.Second,
		WordTimings: EstimateWordTimings(req.Text, time.Second),
	}, nil
}

func TestRateLimited_Unlimited(t *testing.T) {
	next := &countingSynth{}
	r := NewRateLimited(next, 0, 1)

	if r.Limit() != rate.Inf {
		t.Errorf("Limit = %v, want Inf", r.Limit())
	}
	for i := 0; i < 10; i++ {
		if _, err := r.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "hi"}); err != nil {
			t.Fatal(err)
		}
	}
	if next.calls.Load() != 10 {
		t.Errorf("calls = %d", next.calls.Load())
	}
}

func TestRateLimited_DeadlineExceeded(t *testing.T) {
	next := &countingSynth{}
	r := NewRateLimited(next, 1, 1)

	// first request spends the burst
	if _, err := r.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "one"}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.Synthesize(ctx, ttypes.SynthesisRequest{Text: "two", SpeakerID: "npc"})
	var ttsErr *TTSError
	if !errors.As(err, &ttsErr) {
		t.Fatalf("error = %v, want *TTSError", err)
	}
	if ttsErr.Code != ErrorCodeRateLimited || !ttsErr.IsRetryable() {
		t.Errorf("code = %s", ttsErr.Code)
	}
	if next.calls.Load() != 1 {
		t.Errorf("wrapped synthesizer called %d times, want 1", next.calls.Load())
	}
}

func TestRateLimited_Canceled(t *testing.T) {
	r := NewRateLimited(&countingSynth{}, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Synthesize(ctx, ttypes.SynthesisRequest{Text: "hi"})
	if !errors.Is(err, ErrCanceled) {
		t.Errorf("error = %v, want ErrCanceled", err)
	}
}

func TestCached(t *testing.T) {
	mem, err := cache.NewMemoryCache(1<<20, cache.DefaultCompressionLevel)
	if err != nil {
		t.Fatal(err)
	}
	defer mem.Close()

	next := &countingSynth{}
	rec := logging.NewRecorder(log.New(io.Discard), 0)
	c := NewCached(next, "mock", mem, rec, log.New(io.Discard))

	req := ttypes.SynthesisRequest{Text: "Well met", SpeakerID: "npc1", Emotion: "calm"}

	first, err := c.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if next.calls.Load() != 1 {
		t.Errorf("wrapped synthesizer called %d times, want 1", next.calls.Load())
	}
	if string(first.Audio) != string(second.Audio) || len(second.WordTimings) != 2 {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}

	// a different emotion is a different line
	req.Emotion = "angry"
	c.Synthesize(context.Background(), req)
	if next.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", next.calls.Load())
	}

	s := rec.Stats()
	if s.Total != 3 || s.CacheHits != 1 {
		t.Errorf("metrics = %+v", s)
	}
}

func TestCached_ErrorsNotCached(t *testing.T) {
	next := &countingSynth{err: errors.New("boom")}
	c := NewCached(next, "mock", nil, nil, log.New(io.Discard))

	for i := 0; i < 2; i++ {
		if _, err := c.Synthesize(context.Background(), ttypes.SynthesisRequest{Text: "x"}); err == nil {
			t.Fatal("expected error")
		}
	}
	if next.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", next.calls.Load())
	}
}
