// Package tone synthesizes the short stereo cues the device plays around
// state changes, plus server-supplied note sequences.
package tone

import (
	"encoding/json"
	"time"
)

// Note is one stereo tone: independent left/right frequencies, a duration
// and a linear volume in [0,1].
type Note struct {
	Left     int
	Right    int
	Duration time.Duration
	Volume   float64
}

// Built-in cues. Frequencies and timings are part of the device's sound
// identity; treat them as constants.
var (
	// CueStartup is a rising four-note triad sweep played once the daemon
	// is ready.
	CueStartup = []Note{
		{740, 550, 120 * time.Millisecond, 0.35},
		{880, 660, 140 * time.Millisecond, 0.38},
		{988, 740, 180 * time.Millisecond, 0.40},
		{1175, 880, 220 * time.Millisecond, 0.42},
	}

	// CueOutro mirrors the startup sweep downward on shutdown.
	CueOutro = []Note{
		{988, 740, 140 * time.Millisecond, 0.35},
		{880, 660, 120 * time.Millisecond, 0.33},
		{740, 550, 100 * time.Millisecond, 0.30},
	}

	// CueActivate is the two-tone chirp confirming recording started.
	CueActivate = []Note{
		{1400, 1600, 90 * time.Millisecond, 0.38},
		{1900, 2100, 80 * time.Millisecond, 0.40},
	}

	// CueRelease confirms recording stopped.
	CueRelease = []Note{
		{1100, 900, 70 * time.Millisecond, 0.33},
		{800, 700, 60 * time.Millisecond, 0.30},
	}

	// CueResponse announces a server response with no playable audio.
	CueResponse = []Note{
		{1600, 1700, 60 * time.Millisecond, 0.35},
		{2000, 1500, 80 * time.Millisecond, 0.35},
		{1700, 1700, 50 * time.Millisecond, 0.30},
	}
)

// ParsePayload decodes a server-supplied note sequence:
//
//	[{"fL":1000,"fR":1200,"d":0.08,"v":0.35}, ...]
//
// Mono shorthand "f" and the longer "dur"/"vol" spellings are accepted.
// Missing fields take defaults; out-of-range values are clamped. A payload
// that is not an array yields nil.
func ParsePayload(payload json.RawMessage) []Note {
	var raw []struct {
		FL  *float64 `json:"fL"`
		F   *float64 `json:"f"`
		FR  *float64 `json:"fR"`
		D   *float64 `json:"d"`
		Dur *float64 `json:"dur"`
		V   *float64 `json:"v"`
		Vol *float64 `json:"vol"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil
	}

	notes := make([]Note, 0, len(raw))
	for _, x := range raw {
		fL := pick(x.FL, pick(x.F, 1000))
		fR := pick(x.FR, fL)
		d := pick(x.D, pick(x.Dur, 0.08))
		v := pick(x.V, pick(x.Vol, 0.35))

		notes = append(notes, Note{
			Left:     int(fL),
			Right:    int(fR),
			Duration: clampDur(time.Duration(d * float64(time.Second))),
			Volume:   clamp01(v),
		})
	}
	return notes
}

func pick(p *float64, fallback float64) float64 {
	if p != nil {
		return *p
	}
	return fallback
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampDur keeps a single note within sane bounds so a hostile payload
// cannot tie up the speaker.
func clampDur(d time.Duration) time.Duration {
	const maxNote = 2 * time.Second
	if d <= 0 {
		return 10 * time.Millisecond
	}
	if d > maxNote {
		return maxNote
	}
	return d
}
