package scheduler

import "errors"

var (
	// ErrEmptySpeaker is returned when a dialogue has no speaker id.
	ErrEmptySpeaker = errors.New("dialogue speaker id is empty")

	// ErrEmptyText is returned when a dialogue has no text.
	ErrEmptyText = errors.New("dialogue text is empty")

	// ErrEmptyID is returned when a dialogue item has no id.
	ErrEmptyID = errors.New("dialogue id is empty")

	// ErrDuplicateID is returned when an id is already queued, active or paused.
	ErrDuplicateID = errors.New("dialogue id already in use")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("scheduler closed")
)
