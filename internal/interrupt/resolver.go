// Package interrupt decides what happens when a new dialogue line arrives
// for a speaker that is already talking.
package interrupt

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/parley/internal/ttypes"
)

// Action is the outcome of an interrupt decision.
type Action int

const (
	// None leaves the current line playing; the new one waits.
	None Action = iota

	// Immediate stops the current line and starts the new one.
	Immediate

	// Crossfade fades the current line out while the new one fades in.
	Crossfade

	// PauseAndResume pauses the current line and resumes it once
	// the new one is done.
	PauseAndResume
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case None:
		return "none"
	case Immediate:
		return "immediate"
	case Crossfade:
		return "crossfade"
	case PauseAndResume:
		return "pause_and_resume"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseAction converts a configuration string into an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return None, nil
	case "immediate":
		return Immediate, nil
	case "crossfade":
		return Crossfade, nil
	case "pause_and_resume", "pause-and-resume", "pause":
		return PauseAndResume, nil
	default:
		return None, fmt.Errorf("unknown interrupt action %q", s)
	}
}

// Table is an interrupt matrix indexed by [new tier][current tier].
type Table [ttypes.NumTiers][ttypes.NumTiers]Action

// DefaultTable returns the stock interrupt matrix.
//
//	new\current   0          1          2          3
//	0             Immediate  Immediate  Immediate  Immediate
//	1             None       Immediate  Crossfade  Crossfade
//	2             None       None       Crossfade  Crossfade
//	3             None       None       None       None
func DefaultTable() Table {
	return Table{
		{Immediate, Immediate, Immediate, Immediate},
		{None, Immediate, Crossfade, Crossfade},
		{None, None, Crossfade, Crossfade},
		{None, None, None, None},
	}
}

// Resolve looks up the default matrix. Out of range tiers are clamped.
func Resolve(newTier, currentTier int) Action {
	return defaultResolver.Resolve(newTier, currentTier)
}

var defaultResolver = NewResolver(DefaultTable())

// Resolver resolves interrupts against a fixed table. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	table Table
}

// NewResolver creates a resolver backed by the given table.
func NewResolver(t Table) *Resolver {
	return &Resolver{table: t}
}

// Resolve returns the action for a new line of newTier arriving while a
// line of currentTier is playing for the same speaker.
func (r *Resolver) Resolve(newTier, currentTier int) Action {
	n := ttypes.ClampTier(newTier)
	c := ttypes.ClampTier(currentTier)
	return r.table[n][c]
}

// Table returns a copy of the resolver's matrix.
func (r *Resolver) Table() Table {
	return r.table
}

// WithOverrides returns a copy of t with entries replaced. Keys have the
// form "new:current", for example "1:2".
func WithOverrides(t Table, overrides map[string]string) (Table, error) {
	for key, value := range overrides {
		var n, c int
		if _, err := fmt.Sscanf(key, "%d:%d", &n, &c); err != nil {
			return t, fmt.Errorf("invalid interrupt override key %q: %w", key, err)
		}
		if n < 0 || n >= ttypes.NumTiers || c < 0 || c >= ttypes.NumTiers {
			return t, fmt.Errorf("interrupt override %q out of range", key)
		}

		action, err := ParseAction(value)
		if err != nil {
			return t, fmt.Errorf("interrupt override %q: %w", key, err)
		}
		t[n][c] = action
	}
	return t, nil
}
