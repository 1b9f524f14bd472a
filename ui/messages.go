package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/parley/internal/events"
)

type (
	// eventMsg carries a scheduler event into the update loop
	eventMsg events.Event

	// eventsClosedMsg is sent once the event channel is closed
	eventsClosedMsg struct{}

	tickMsg time.Time

	statusMessageTimeoutMsg struct{}
)

// waitForEvent blocks on the next event from the sink.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(e)
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}
