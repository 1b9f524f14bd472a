package tts

import (
	"math"
	"strings"
)

// Speed bounds shared by every engine.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// speedSteps are the speeds an engine is asked for.
var speedSteps = []float64{0.5, 0.75, 0.85, 1.0, 1.1, 1.25, 1.5, 1.75, 2.0}

// emotionSpeed scales the base speed for a delivery tag.
var emotionSpeed = map[string]float64{
	"angry":   1.1,
	"excited": 1.25,
	"urgent":  1.25,
	"happy":   1.1,
	"calm":    0.85,
	"sad":     0.85,
	"tired":   0.75,
	"whisper": 0.85,
}

// ValidateSpeed checks that speed is within [MinSpeed, MaxSpeed].
func ValidateSpeed(speed float64) error {
	if speed < MinSpeed || speed > MaxSpeed || math.IsNaN(speed) {
		return ErrInvalidSpeed
	}
	return nil
}

// SpeedFor returns the engine speed for an emotion, snapped to the
// nearest step. Unknown emotions keep the base speed.
func SpeedFor(base float64, emotion string) float64 {
	if ValidateSpeed(base) != nil {
		base = 1.0
	}
	if f, ok := emotionSpeed[strings.ToLower(strings.TrimSpace(emotion))]; ok {
		base *= f
	}
	return nearestStep(base)
}

// LengthScale converts a speed into Piper's length scale.
func LengthScale(speed float64) float64 {
	if ValidateSpeed(speed) != nil {
		return 1.0
	}
	return 1.0 / speed
}

func nearestStep(speed float64) float64 {
	best := speedSteps[0]
	for _, s := range speedSteps[1:] {
		if math.Abs(s-speed) < math.Abs(best-speed) {
			best = s
		}
	}
	return best
}
