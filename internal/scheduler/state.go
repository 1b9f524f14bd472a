package scheduler

// ItemState is the lifecycle state of a dialogue item.
type ItemState int

const (
	// ItemQueued indicates the item is waiting in a priority lane.
	ItemQueued ItemState = iota
	// ItemActive indicates the item holds an admission slot and is
	// synthesizing or playing.
	ItemActive
	// ItemPaused indicates the item was displaced and waits to resume.
	ItemPaused
	// ItemFading indicates the item is fading out under a crossfade.
	ItemFading
	// ItemFinished indicates playback completed normally.
	ItemFinished
	// ItemStopped indicates the item was cancelled, interrupted or aborted.
	ItemStopped
)

// String returns the string representation of the state.
func (s ItemState) String() string {
	switch s {
	case ItemQueued:
		return "queued"
	case ItemActive:
		return "active"
	case ItemPaused:
		return "paused"
	case ItemFading:
		return "fading"
	case ItemFinished:
		return "finished"
	case ItemStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s ItemState) Terminal() bool {
	return s == ItemFinished || s == ItemStopped
}

// lifecycle validates item state transitions and runs enter hooks.
type lifecycle struct {
	transitions map[ItemState][]ItemState
	onEnter     map[ItemState]func(id string)
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		transitions: map[ItemState][]ItemState{
			ItemQueued: {ItemActive, ItemStopped},
			ItemActive: {ItemPaused, ItemFading, ItemFinished, ItemStopped},
			ItemPaused: {ItemActive, ItemFinished, ItemStopped},
			ItemFading: {ItemFinished, ItemStopped},
		},
		onEnter: make(map[ItemState]func(id string)),
	}
}

// valid reports whether from -> to is allowed.
func (l *lifecycle) valid(from, to ItemState) bool {
	for _, state := range l.transitions[from] {
		if state == to {
			return true
		}
	}
	return false
}

// OnEnter registers a callback for entering a state.
func (l *lifecycle) OnEnter(state ItemState, fn func(id string)) {
	l.onEnter[state] = fn
}

func (l *lifecycle) entered(state ItemState, id string) {
	if fn, ok := l.onEnter[state]; ok && fn != nil {
		fn(id)
	}
}
