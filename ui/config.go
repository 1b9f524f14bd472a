package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	// MaxWidth caps the subtitle column; zero follows the terminal
	MaxWidth     uint          `env:"PARLEY_UI_MAX_WIDTH" envDefault:"100"`
	HistoryLines int           `env:"PARLEY_UI_HISTORY" envDefault:"200"`
	TickInterval time.Duration `env:"PARLEY_UI_TICK" envDefault:"100ms"`
	ShowVisemes  bool          `env:"PARLEY_UI_VISEMES" envDefault:"true"`
	AltScreen    bool          `env:"PARLEY_UI_ALT_SCREEN" envDefault:"true"`
	EnableMouse  bool

	// Title is shown in the status bar, usually the script name
	Title string

	// Stats returns extra status bar text such as cache usage. May be nil.
	Stats func() string
}
