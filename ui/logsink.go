package ui

import (
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/events"
)

// LogSink presents scheduler events as log lines. It is used when stdout
// is not a terminal.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Handle is an events.Handler.
func (s *LogSink) Handle(e events.Event) {
	switch e.Type {
	case events.EventSubtitleShow:
		if e.Subtitle != nil {
			s.logger.Info(e.Subtitle.Text, "speaker", e.Subtitle.SpeakerName, "priority", e.Priority)
		}
	case events.EventDialogueQueued:
		s.logger.Debug("Queued", "id", e.ItemID, "speaker", e.SpeakerID, "priority", e.Priority)
	case events.EventDialoguePaused:
		s.logger.Info("Paused", "speaker", e.SpeakerID, "id", e.ItemID)
	case events.EventDialogueResumed:
		s.logger.Info("Resumed", "speaker", e.SpeakerID, "id", e.ItemID)
	case events.EventDialogueFinished:
		if e.Reason == events.ReasonCompleted {
			s.logger.Debug("Finished", "id", e.ItemID, "speaker", e.SpeakerID)
		} else {
			s.logger.Info("Cut off", "id", e.ItemID, "speaker", e.SpeakerID, "reason", e.Reason)
		}
	case events.EventLipSyncReady:
		if e.LipSync != nil {
			s.logger.Debug("Lip-sync ready", "id", e.ItemID, "frames", len(e.LipSync.Frames))
		}
	case events.EventWarning:
		s.logger.Warn(e.Message, "id", e.ItemID)
	}
}
