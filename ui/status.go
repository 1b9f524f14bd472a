package ui

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/parley/internal/ttypes"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

const helpHeight = 4

// queueSummary renders a queue snapshot such as "2 active · 3 queued".
func queueSummary(s ttypes.QueueStatus) string {
	parts := []string{fmt.Sprintf("%d active", s.TotalActive)}
	if q := s.TotalQueued(); q > 0 {
		parts = append(parts, fmt.Sprintf("%d queued", q))
	}
	if s.Paused > 0 {
		parts = append(parts, fmt.Sprintf("%d paused", s.Paused))
	}
	return strings.Join(parts, " · ")
}

func (m model) statusBarView(b *strings.Builder) {
	logo := logoView()

	var counts string
	if m.finished > 0 {
		counts = fmt.Sprintf(" %s done ", humanize.Comma(m.finished))
	}
	if m.warnings > 0 {
		counts += fmt.Sprintf("%s warnings ", humanize.Comma(m.warnings))
	}
	counts = statusBarCountStyle(counts)
	helpNote := statusBarHelpStyle(" ? Help ")

	var note string
	switch {
	case m.statusMessage != "":
		note = m.statusMessage
	default:
		var parts []string
		if m.cfg.Title != "" {
			parts = append(parts, m.cfg.Title)
		}
		if m.ctrl != nil {
			parts = append(parts, queueSummary(m.ctrl.GetQueueStatus()))
		}
		if m.cfg.Stats != nil {
			if s := m.cfg.Stats(); s != "" {
				parts = append(parts, s)
			}
		}
		if m.done {
			parts = append(parts, "finished")
		}
		note = strings.Join(parts, " | ")
	}

	avail := max(0, m.width-
		ansi.PrintableRuneWidth(logo)-
		ansi.PrintableRuneWidth(counts)-
		ansi.PrintableRuneWidth(helpNote))
	note = truncate.StringWithTail(" "+note+" ", uint(avail), ellipsis) //nolint:gosec

	style := statusBarNoteStyle
	switch {
	case m.statusMessage != "" && m.statusIsError:
		style = statusBarErrorStyle
	case m.statusMessage != "":
		style = statusBarMessageStyle
	}

	padding := max(0, avail-ansi.PrintableRuneWidth(note))
	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		style(note),
		style(strings.Repeat(" ", padding)),
		counts,
		helpNote,
	)
}

func (m model) helpView() string {
	rows := [][2]string{
		{"s", "skip newest line"},
		{"S", "silence newest speaker"},
		{"r", "reset scheduler"},
		{"c", "copy subtitle"},
		{"↑/↓", "scroll history"},
		{"q", "quit"},
	}

	var b strings.Builder
	for i := 0; i < len(rows); i += 2 {
		line := "  "
		for _, r := range rows[i:min(i+2, len(rows))] {
			line += fmt.Sprintf("%-4s %-26s", r[0], r[1])
		}
		b.WriteString(helpViewStyle(line))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}
