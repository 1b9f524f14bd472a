package tts

import (
	"context"
	"time"

	"github.com/dgnsrekt/parley/internal/ttypes"
	"golang.org/x/time/rate"
)

// RateLimited bounds how often the wrapped synthesizer is called.
type RateLimited struct {
	next    ttypes.Synthesizer
	limiter *rate.Limiter
}

// NewRateLimited allows requestsPerMinute calls with the given burst.
// A non-positive rate disables limiting.
func NewRateLimited(next ttypes.Synthesizer, requestsPerMinute, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}

	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}

	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Synthesize waits for a token, then calls the wrapped synthesizer.
func (r *RateLimited) Synthesize(ctx context.Context, req ttypes.SynthesisRequest) (ttypes.SynthesisResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ttypes.SynthesisResult{}, FromContext(ctx.Err(), "waiting for rate limiter")
		}
		// the wait would outlast the deadline
		return ttypes.SynthesisResult{}, NewTTSError(ErrorCodeRateLimited, "rate limit exceeded", err).
			WithContext("speaker", req.SpeakerID)
	}
	return r.next.Synthesize(ctx, req)
}

// Limit returns the configured rate in requests per second.
func (r *RateLimited) Limit() rate.Limit {
	return r.limiter.Limit()
}

var _ ttypes.Synthesizer = (*RateLimited)(nil)
