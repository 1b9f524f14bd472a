package tts

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgnsrekt/parley/internal/ttypes"
)

// DefaultWordsPerMinute is a conversational speaking rate.
const DefaultWordsPerMinute = 160

// EstimateDuration returns how long text takes to speak at wpm words per
// minute, scaled by speed.
func EstimateDuration(text string, wpm int, speed float64) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	if ValidateSpeed(speed) != nil {
		speed = 1.0
	}

	d := time.Duration(float64(words) * float64(time.Minute) / float64(wpm) / speed)
	return d.Round(time.Millisecond)
}

// EstimateWordTimings spreads total across the words of text in
// proportion to their length. Each word gets one extra unit for the gap
// that follows it.
func EstimateWordTimings(text string, total time.Duration) []ttypes.WordTiming {
	words := strings.Fields(text)
	if len(words) == 0 || total <= 0 {
		return nil
	}

	units := 0
	for _, w := range words {
		units += utf8.RuneCountInString(w) + 1
	}
	unit := float64(total) / float64(units)

	timings := make([]ttypes.WordTiming, len(words))
	elapsed := 0
	for i, w := range words {
		n := utf8.RuneCountInString(w)
		timings[i] = ttypes.WordTiming{
			Word:     w,
			Start:    time.Duration(float64(elapsed) * unit),
			Duration: time.Duration(float64(n) * unit),
		}
		elapsed += n + 1
	}
	return timings
}
