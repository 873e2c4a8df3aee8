package button

import "time"

type phase int

const (
	idle              phase = iota
	pressPending            // press edge seen, waiting for debounce stability
	held                    // stable press, Down emitted
	releasePending          // release edge seen while held, waiting for stability
	tapPending              // stable second press inside the double-tap window, Down withheld
	tapReleasePending       // release edge seen while tapPending
)

// Decoder converts timestamped edges into gestures. It is pure and
// deterministic: the same edge/tick sequence always yields the same events.
// Feed the raw transitions via Feed and advance time via Tick; both return
// the events that became decidable.
//
// A press that starts within the double-tap window after a completed
// press-release pair has its Down withheld: a quick release turns the pair
// into a single DoubleTap, a long hold degrades it back into an ordinary
// (late) Down.
type Decoder struct {
	debounce  time.Duration
	doubleTap time.Duration

	phase    phase
	level    bool
	edgeAt   time.Time // time of the transition being debounced
	downAt   time.Time // when the current press stabilized
	lastUpAt time.Time // end of the last completed pair, zero once consumed
}

// NewDecoder creates a Decoder with the given debounce and double-tap windows.
func NewDecoder(debounce, doubleTap time.Duration) *Decoder {
	return &Decoder{debounce: debounce, doubleTap: doubleTap}
}

// Feed consumes one raw edge. Repeated edges at the same level are ignored.
func (d *Decoder) Feed(e Edge) []Event {
	out := d.Tick(e.At)
	if e.Pressed == d.level {
		return out
	}
	d.level = e.Pressed

	if e.Pressed {
		switch d.phase {
		case idle:
			d.phase = pressPending
			d.edgeAt = e.At
		case releasePending:
			// Bounce back down before the release stabilized.
			d.phase = held
		case tapReleasePending:
			d.phase = tapPending
		}
		return out
	}

	switch d.phase {
	case pressPending:
		// Press never stabilized: spurious blip.
		d.phase = idle
	case held:
		d.phase = releasePending
		d.edgeAt = e.At
	case tapPending:
		d.phase = tapReleasePending
		d.edgeAt = e.At
	}
	return out
}

// Tick advances the decoder's notion of time, resolving any pending
// debounce or double-tap decisions up to now.
func (d *Decoder) Tick(now time.Time) []Event {
	var out []Event
	for {
		switch {
		case d.phase == pressPending && now.Sub(d.edgeAt) >= d.debounce:
			d.downAt = d.edgeAt
			if !d.lastUpAt.IsZero() && d.edgeAt.Sub(d.lastUpAt) <= d.doubleTap {
				d.phase = tapPending
			} else {
				d.phase = held
				d.lastUpAt = time.Time{}
				out = append(out, Event{Kind: Down, At: d.downAt})
			}
		case d.phase == releasePending && now.Sub(d.edgeAt) >= d.debounce:
			d.phase = idle
			d.lastUpAt = d.edgeAt
			out = append(out, Event{Kind: Up, At: d.edgeAt})
		case d.phase == tapReleasePending && now.Sub(d.edgeAt) >= d.debounce:
			d.phase = idle
			d.lastUpAt = time.Time{}
			out = append(out, Event{Kind: DoubleTap, At: d.edgeAt})
		case d.phase == tapPending && now.Sub(d.downAt) > d.doubleTap:
			// Held too long for a tap: degrade to an ordinary hold.
			d.phase = held
			d.lastUpAt = time.Time{}
			out = append(out, Event{Kind: Down, At: d.downAt})
		default:
			return out
		}
	}
}
