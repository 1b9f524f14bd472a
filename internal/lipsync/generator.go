// Package lipsync derives phoneme and viseme timelines for lip animation
// from word-level timing metadata.
package lipsync

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/dgnsrekt/parley/internal/ttypes"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Generator builds LipSyncData for dialogue items. It holds no state and
// is safe for concurrent use.
type Generator struct{}

// NewGenerator creates a generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate produces one frame per timed word, or a single silence frame
// spanning the whole item when no timings are available. Blendshape
// weights are taken from the first frame.
func (g *Generator) Generate(item ttypes.DialogueItem) ttypes.LipSyncData {
	data := ttypes.LipSyncData{SourceItemID: item.ID}

	if len(item.WordTimings) == 0 {
		data.Frames = []ttypes.PhonemeFrame{{
			Time:     0,
			Phoneme:  PhonemeSilence,
			Viseme:   VisemeSil,
			Duration: item.Duration,
		}}
		data.BlendshapeWeights = WeightsFor(VisemeSil)
		return data
	}

	frames := make([]ttypes.PhonemeFrame, 0, len(item.WordTimings))
	for _, w := range item.WordTimings {
		phoneme := phonemeForWord(w.Word)
		frames = append(frames, ttypes.PhonemeFrame{
			Time:     w.Start,
			Phoneme:  phoneme,
			Viseme:   VisemeFor(phoneme),
			Duration: w.Duration,
		})
	}
	sort.SliceStable(frames, func(i, j int) bool {
		return frames[i].Time < frames[j].Time
	})

	data.Frames = frames
	data.BlendshapeWeights = WeightsFor(frames[0].Viseme)
	return data
}

// FrameAt returns the frame active at t: the last frame starting at or
// before t. It returns false before the first frame or for empty data.
func FrameAt(data ttypes.LipSyncData, t time.Duration) (ttypes.PhonemeFrame, bool) {
	i := sort.Search(len(data.Frames), func(i int) bool {
		return data.Frames[i].Time > t
	})
	if i == 0 {
		return ttypes.PhonemeFrame{}, false
	}
	return data.Frames[i-1], true
}

// phonemeForWord applies the first-letter heuristic.
func phonemeForWord(word string) string {
	r, ok := firstLetter(word)
	if !ok {
		return PhonemeSilence
	}
	if strings.ContainsRune("aeiou", unicode.ToLower(r)) {
		return PhonemeOpenVowel
	}
	return PhonemeClosed
}

// firstLetter returns the first letter of word with diacritics removed,
// so "Élan" starts with a vowel.
func firstLetter(word string) (rune, bool) {
	// chained transformers carry state, so build one per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, word)
	if err != nil {
		folded = word
	}
	for _, r := range folded {
		if unicode.IsLetter(r) {
			return r, true
		}
	}
	return 0, false
}
