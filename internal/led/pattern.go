// Package led renders session state as animations on a two-pixel strip.
package led

import "strings"

// Pattern enumerates the named LED patterns.
type Pattern int

const (
	PatternConnecting Pattern = iota
	PatternReady
	PatternRecording
	PatternPlayback
	PatternError
	PatternUnknown
)

func (p Pattern) String() string {
	switch p {
	case PatternConnecting:
		return "connecting"
	case PatternReady:
		return "ready"
	case PatternRecording:
		return "recording"
	case PatternPlayback:
		return "playback"
	case PatternError:
		return "error"
	default:
		return "unknown"
	}
}

// ParsePattern maps a server-provided pattern name to one of the named
// patterns. The accepted spellings cover the legacy vocabulary the endpoint
// has been sending; anything unrecognized degrades to PatternUnknown.
func ParsePattern(s string) Pattern {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "connecting", "pulse", "breathe", "orange", "wait", "waiting":
		return PatternConnecting
	case "ready", "green", "ok":
		return PatternReady
	case "recording", "rainbow", "record_rainbow":
		return PatternRecording
	case "playback", "talking", "white", "neutral":
		return PatternPlayback
	case "error", "red", "warn":
		return PatternError
	default:
		return PatternUnknown
	}
}
