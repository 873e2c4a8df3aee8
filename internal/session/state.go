// Package session is the central state machine. It consumes button events
// and worker completions on a single goroutine and drives the capture,
// upload, playback, light and tone subsystems.
package session

// State is the session lifecycle phase. Exactly one orchestrator owns it;
// everything else only observes transitions.
type State int32

const (
	StateBooting State = iota
	StateConnecting
	StateReady
	StateRecording
	StateUploading
	StateAwaitingPlayback
	StatePlaying
	StateRecoveringError
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateBooting:
		return "booting"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateRecording:
		return "recording"
	case StateUploading:
		return "uploading"
	case StateAwaitingPlayback:
		return "awaiting_playback"
	case StatePlaying:
		return "playing"
	case StateRecoveringError:
		return "recovering_error"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// recordMode distinguishes hold-to-talk from the hands-free toggle started
// by a double tap. A toggle recording ends on the next double tap; plain
// Up events are suppressed while it runs.
type recordMode int

const (
	modeHold recordMode = iota
	modeToggle
)
