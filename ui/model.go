package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/events"
	"github.com/dgnsrekt/parley/internal/lipsync"
	"github.com/dgnsrekt/parley/internal/ttypes"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

const (
	statusBarHeight  = 1
	maxSpeakerWidth  = 14
	statusMessageTTL = 3 * time.Second
)

// Controller is the part of the scheduler the TUI drives.
type Controller interface {
	GetQueueStatus() ttypes.QueueStatus
	ReportProgress(id string, elapsed time.Duration)
	StopDialogue(id string) bool
	StopBySpeaker(speakerID string) int
	Reset()
}

// line is a dialogue item currently on screen.
type line struct {
	id      string
	speaker string
	name    string
	tier    ttypes.Tier
	text    string
	spoken  string
	lipSync *ttypes.LipSyncData

	started  time.Time
	pausedAt time.Time // zero while playing
	paused   time.Duration
}

func (l *line) elapsed(now time.Time) time.Duration {
	if l.started.IsZero() {
		return 0
	}
	end := now
	if !l.pausedAt.IsZero() {
		end = l.pausedAt
	}
	if d := end.Sub(l.started) - l.paused; d > 0 {
		return d
	}
	return 0
}

type model struct {
	cfg    Config
	ctrl   Controller
	events <-chan events.Event
	now    func() time.Time
	copy   func(string) error

	width  int
	height int

	lines    map[string]*line
	order    []string // on-screen order, oldest first
	history  []string
	finished int64
	warnings int64

	viewport viewport.Model
	showHelp bool

	statusMessage      string
	statusIsError      bool
	statusMessageTimer *time.Timer

	done bool
}

// NewProgram creates the TUI. Events are read from ch until it is closed;
// the program keeps running afterwards until the user quits.
func NewProgram(cfg Config, ctrl Controller, ch <-chan events.Event) *tea.Program {
	log.Debug("Starting TUI", "alt_screen", cfg.AltScreen, "visemes", cfg.ShowVisemes)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, ctrl, ch), opts...)
}

func newModel(cfg Config, ctrl Controller, ch <-chan events.Event) model {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	if cfg.HistoryLines <= 0 {
		cfg.HistoryLines = 200
	}

	return model{
		cfg:      cfg,
		ctrl:     ctrl,
		events:   ch,
		now:      time.Now,
		copy:     clipboard.WriteAll,
		lines:    make(map[string]*line),
		viewport: viewport.New(0, 0),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick(m.cfg.TickInterval))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit

		case "?":
			m.showHelp = !m.showHelp
			m.setSize(m.width, m.height)

		case "s":
			// skip the newest line on screen
			if len(m.order) > 0 && m.ctrl != nil {
				id := m.order[len(m.order)-1]
				if m.ctrl.StopDialogue(id) {
					cmds = append(cmds, m.showStatusMessage("Skipped "+m.lines[id].name, false))
				}
			}

		case "S":
			if len(m.order) > 0 && m.ctrl != nil {
				l := m.lines[m.order[len(m.order)-1]]
				n := m.ctrl.StopBySpeaker(l.speaker)
				cmds = append(cmds, m.showStatusMessage(fmt.Sprintf("Silenced %s (%d lines)", l.name, n), false))
			}

		case "r":
			if m.ctrl != nil {
				m.ctrl.Reset()
				cmds = append(cmds, m.showStatusMessage("Scheduler reset", false))
			}

		case "c":
			if len(m.order) > 0 {
				l := m.lines[m.order[len(m.order)-1]]
				if err := m.copy(l.text); err != nil {
					cmds = append(cmds, m.showStatusMessage("Copy failed: "+err.Error(), true))
				} else {
					cmds = append(cmds, m.showStatusMessage("Copied subtitle", false))
				}
			}

		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)

	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)

	case eventMsg:
		if cmd := m.handleEvent(events.Event(msg)); cmd != nil {
			cmds = append(cmds, cmd)
		}
		cmds = append(cmds, waitForEvent(m.events))

	case eventsClosedMsg:
		m.done = true
		cmds = append(cmds, m.showStatusMessage("Script finished, press q to quit", false))

	case tickMsg:
		m.reportProgress()
		cmds = append(cmds, tick(m.cfg.TickInterval))

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		m.statusIsError = false
	}

	return m, tea.Batch(cmds...)
}

func (m *model) handleEvent(e events.Event) tea.Cmd {
	switch e.Type {
	case events.EventDialogueStarted:
		l := m.ensureLine(e)
		l.started = m.now()

	case events.EventSubtitleShow:
		if e.Subtitle == nil {
			return nil
		}
		l := m.ensureLine(e)
		l.text = e.Subtitle.Text
		if e.Subtitle.SpeakerName != "" {
			l.name = e.Subtitle.SpeakerName
		}

	case events.EventSubtitleUpdate:
		if l, ok := m.lines[e.ItemID]; ok {
			l.spoken = e.Text
		}

	case events.EventLipSyncReady:
		if l, ok := m.lines[e.ItemID]; ok {
			l.lipSync = e.LipSync
		}

	case events.EventDialoguePaused:
		if l, ok := m.lines[e.ItemID]; ok && l.pausedAt.IsZero() {
			l.pausedAt = m.now()
		}

	case events.EventDialogueResumed:
		if l, ok := m.lines[e.ItemID]; ok && !l.pausedAt.IsZero() {
			l.paused += m.now().Sub(l.pausedAt)
			l.pausedAt = time.Time{}
		}

	case events.EventSubtitleHide:
		m.removeLine(e.ItemID)

	case events.EventDialogueFinished:
		m.finished++
		name := e.SpeakerID
		text := ""
		if l, ok := m.lines[e.ItemID]; ok {
			name, text = l.name, l.text
		}
		m.removeLine(e.ItemID)
		if e.Reason != events.ReasonCompleted || text != "" {
			m.appendHistory(fmt.Sprintf("%s %s: %s (%s)", e.Time.Format("15:04:05"), name, text, e.Reason))
		}

	case events.EventWarning:
		m.warnings++
		return m.showStatusMessage(e.Message, true)
	}
	return nil
}

func (m *model) ensureLine(e events.Event) *line {
	if l, ok := m.lines[e.ItemID]; ok {
		return l
	}
	l := &line{
		id:      e.ItemID,
		speaker: e.SpeakerID,
		name:    e.SpeakerID,
		tier:    e.Priority,
	}
	m.lines[e.ItemID] = l
	m.order = append(m.order, e.ItemID)
	return l
}

func (m *model) removeLine(id string) {
	if _, ok := m.lines[id]; !ok {
		return
	}
	delete(m.lines, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *model) appendHistory(s string) {
	m.history = append(m.history, s)
	if over := len(m.history) - m.cfg.HistoryLines; over > 0 {
		m.history = m.history[over:]
	}
	m.viewport.SetContent(historyStyle(strings.Join(m.history, "\n")))
	m.viewport.GotoBottom()
}

// reportProgress feeds elapsed playback time back to the scheduler so
// subtitle updates follow the spoken words.
func (m *model) reportProgress() {
	if m.ctrl == nil {
		return
	}
	now := m.now()
	for _, id := range m.order {
		l := m.lines[id]
		if l.started.IsZero() || !l.pausedAt.IsZero() {
			continue
		}
		m.ctrl.ReportProgress(id, l.elapsed(now))
	}
}

func (m *model) showStatusMessage(msg string, isError bool) tea.Cmd {
	m.statusMessage = msg
	m.statusIsError = isError
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTTL)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m *model) setSize(w, h int) {
	m.width, m.height = w, h
	m.viewport.Width = w
	vh := h/3 - statusBarHeight
	if m.showHelp {
		vh -= helpHeight
	}
	m.viewport.Height = max(0, vh)
}

func (m model) View() string {
	var b strings.Builder

	m.subtitlesView(&b)
	if m.viewport.Height > 0 {
		fmt.Fprintln(&b, m.viewport.View())
	}
	m.statusBarView(&b)
	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.helpView())
	}
	return b.String()
}

func (m model) subtitlesView(b *strings.Builder) {
	labelWidth := 0
	for _, id := range m.order {
		labelWidth = max(labelWidth, runewidth.StringWidth(m.lines[id].name))
	}
	labelWidth = min(labelWidth, maxSpeakerWidth)

	textWidth := m.width
	if m.cfg.MaxWidth > 0 && (textWidth <= 0 || uint(textWidth) > m.cfg.MaxWidth) { //nolint:gosec
		textWidth = int(m.cfg.MaxWidth) //nolint:gosec
	}
	// label, tier, viseme and separators
	prefix := labelWidth + 4
	if m.cfg.ShowVisemes {
		prefix += 6
	}
	textWidth = max(10, textWidth-prefix)

	now := m.now()
	for _, id := range m.order {
		l := m.lines[id]

		label := runewidth.FillRight(runewidth.Truncate(l.name, labelWidth, ellipsis), labelWidth)
		head := speakerStyle(l.tier).Render(label) + " " + tierLabel(l.tier)
		if m.cfg.ShowVisemes {
			head += " " + visemeStyle(fmt.Sprintf("[%-3s]", m.viseme(l, now)))
		}

		body := wordwrap.String(m.highlight(l), textWidth)
		if !l.pausedAt.IsZero() {
			body = pausedStyle("(paused) ") + body
		}
		body = indent.String(body, uint(prefix)) //nolint:gosec
		fmt.Fprintln(b, head+" "+strings.TrimLeft(body, " "))
	}
	if len(m.order) == 0 {
		fmt.Fprintln(b, unspokenStyle("  …"))
	}
}

// highlight renders the spoken prefix bold and the rest dim.
func (m model) highlight(l *line) string {
	if l.spoken == "" || !strings.HasPrefix(l.text, l.spoken) {
		return unspokenStyle(l.text)
	}
	return spokenStyle(l.spoken) + unspokenStyle(l.text[len(l.spoken):])
}

func (m model) viseme(l *line, now time.Time) string {
	if l.lipSync == nil {
		return "sil"
	}
	frame, ok := lipsync.FrameAt(*l.lipSync, l.elapsed(now))
	if !ok {
		return "sil"
	}
	return frame.Viseme
}
