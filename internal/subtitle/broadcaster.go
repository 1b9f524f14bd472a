// Package subtitle builds subtitle records for dialogue lines and
// publishes show, update and hide notifications.
package subtitle

import (
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/parley/internal/events"
	"github.com/dgnsrekt/parley/internal/ttypes"
)

const (
	// DefaultMinDisplay is the shortest time a subtitle stays up, and the
	// end time used when a line's duration is unknown.
	DefaultMinDisplay = 3 * time.Second

	// DefaultBuffer is added after the spoken duration.
	DefaultBuffer = time.Second
)

// Config holds subtitle timing.
type Config struct {
	MinDisplay time.Duration `yaml:"min_display" mapstructure:"min_display"`
	Buffer     time.Duration `yaml:"buffer" mapstructure:"buffer"`
}

// DefaultConfig returns the stock subtitle timing.
func DefaultConfig() Config {
	return Config{
		MinDisplay: DefaultMinDisplay,
		Buffer:     DefaultBuffer,
	}
}

// Broadcaster creates subtitle records and publishes them on a bus.
type Broadcaster struct {
	bus *events.Bus
	cfg Config

	mu    sync.RWMutex
	names map[string]string
}

// NewBroadcaster creates a broadcaster. A nil bus makes every publish a
// no-op, which is useful when only CreateRecord is needed.
func NewBroadcaster(bus *events.Bus, cfg Config) *Broadcaster {
	if cfg.MinDisplay <= 0 {
		cfg.MinDisplay = DefaultMinDisplay
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	return &Broadcaster{
		bus:   bus,
		cfg:   cfg,
		names: make(map[string]string),
	}
}

// SetSpeakerName sets the display name for a speaker id. Speakers without
// a name are shown by id.
func (b *Broadcaster) SetSpeakerName(speakerID, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.names[speakerID] = name
}

// SpeakerName returns the display name for a speaker id.
func (b *Broadcaster) SpeakerName(speakerID string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if name, ok := b.names[speakerID]; ok && name != "" {
		return name
	}
	return speakerID
}

// CreateRecord builds the subtitle record for an item. The record stays
// up for the spoken duration plus the buffer, and never less than the
// minimum display time: max(duration+buffer, min). The buffer is added
// before the floor rather than after it, so a 2s line shows for exactly
// the 3s minimum instead of 4s.
func (b *Broadcaster) CreateRecord(item ttypes.DialogueItem) ttypes.SubtitleRecord {
	display := item.Duration + b.cfg.Buffer
	if display < b.cfg.MinDisplay {
		display = b.cfg.MinDisplay
	}

	end := item.Duration
	if end <= 0 {
		end = b.cfg.MinDisplay
	}

	timings := make([]ttypes.WordTiming, len(item.WordTimings))
	copy(timings, item.WordTimings)

	return ttypes.SubtitleRecord{
		Text:            item.Text,
		SpeakerName:     b.SpeakerName(item.SpeakerID),
		ItemID:          item.ID,
		WordTimings:     timings,
		DisplayDuration: display,
		StartTime:       0,
		EndTime:         end,
	}
}

// Show publishes a subtitle.show event for the record.
func (b *Broadcaster) Show(record ttypes.SubtitleRecord) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(events.Event{
		Type:     events.EventSubtitleShow,
		ItemID:   record.ItemID,
		Subtitle: &record,
	})
}

// Hide publishes a subtitle.hide event.
func (b *Broadcaster) Hide(itemID string) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(events.Event{
		Type:   events.EventSubtitleHide,
		ItemID: itemID,
	})
}

// Update publishes the text spoken so far.
func (b *Broadcaster) Update(itemID, currentText string, elapsed time.Duration) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(events.Event{
		Type:    events.EventSubtitleUpdate,
		ItemID:  itemID,
		Text:    currentText,
		Elapsed: elapsed,
	})
}

// TextAt returns the words that have started by elapsed. Without word
// timings the full text is returned.
func TextAt(record ttypes.SubtitleRecord, elapsed time.Duration) string {
	if len(record.WordTimings) == 0 {
		return record.Text
	}

	var words []string
	for _, w := range record.WordTimings {
		if w.Start > elapsed {
			break
		}
		words = append(words, w.Word)
	}
	return strings.Join(words, " ")
}
