package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/parley/internal/ttypes"
)

const ellipsis = "…"

var (
	fuchsia = lipgloss.Color("#EE6FF8")
	green   = lipgloss.Color("#04B575")
	red     = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}

	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(fuchsia).
			Bold(true)

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarCountStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(red).
				Render

	spokenStyle   = lipgloss.NewStyle().Bold(true).Render
	unspokenStyle = lipgloss.NewStyle().Foreground(statusBarNoteFg).Render
	pausedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")).Render
	visemeStyle   = lipgloss.NewStyle().Foreground(green).Render
	historyStyle  = lipgloss.NewStyle().Foreground(statusBarNoteFg).Render

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"}).
			Render
)

// tierColors match the interrupt tiers, critical first.
var tierColors = [ttypes.NumTiers]lipgloss.TerminalColor{
	red,
	lipgloss.Color("#FF8800"),
	lipgloss.Color("#00AAFF"),
	lipgloss.Color("#888888"),
}

func speakerStyle(tier ttypes.Tier) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(tierColors[ttypes.ClampTier(int(tier))]).
		Bold(true)
}

func logoView() string {
	return logoStyle.Render(" parley ")
}

func tierLabel(tier ttypes.Tier) string {
	return fmt.Sprintf("P%d", ttypes.ClampTier(int(tier)))
}
