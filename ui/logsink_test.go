package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/events"
	"github.com/dgnsrekt/parley/internal/ttypes"
)

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel})
	sink := NewLogSink(logger)

	bus := events.NewBus()
	bus.SubscribeAll(sink.Handle)

	bus.Publish(events.Event{Type: events.EventSubtitleShow, ItemID: "a", Priority: ttypes.TierHigh,
		Subtitle: &ttypes.SubtitleRecord{Text: "Halt!", SpeakerName: "Guard"}})
	bus.Publish(events.Event{Type: events.EventDialogueQueued, ItemID: "b"})
	bus.Publish(events.Event{Type: events.EventDialogueFinished, ItemID: "a", SpeakerID: "guard",
		Reason: events.ReasonInterrupted})
	bus.Publish(events.Event{Type: events.EventWarning, Message: "speaker id is empty"})

	out := buf.String()
	for _, want := range []string{"Halt!", "speaker=Guard", "Cut off", "reason=interrupted", "speaker id is empty"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Queued") {
		t.Error("Queued events should only log at debug level")
	}
}
