// Package button turns raw input-line transitions into semantic gestures.
package button

import "time"

// EventKind enumerates the semantic button gestures.
type EventKind int

const (
	Down EventKind = iota
	Up
	DoubleTap
)

func (k EventKind) String() string {
	switch k {
	case Down:
		return "down"
	case Up:
		return "up"
	case DoubleTap:
		return "double_tap"
	default:
		return "unknown"
	}
}

// Event is a decoded gesture. Immutable once emitted.
type Event struct {
	Kind EventKind
	At   time.Time
}

// Edge is a raw transition on the input line with its observation time.
type Edge struct {
	Pressed bool
	At      time.Time
}
