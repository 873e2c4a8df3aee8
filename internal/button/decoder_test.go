package button

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	debounce  = 25 * time.Millisecond
	doubleTap = 400 * time.Millisecond
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

// run feeds edges given as (ms, pressed) pairs and ticks well past the last
// deadline, returning every emitted event.
func run(dec *Decoder, edges ...Edge) []Event {
	var out []Event
	for _, e := range edges {
		out = append(out, dec.Feed(e)...)
	}
	last := edges[len(edges)-1].At
	out = append(out, dec.Tick(last.Add(time.Second))...)
	return out
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestSinglePressRelease(t *testing.T) {
	dec := NewDecoder(debounce, doubleTap)
	events := run(dec,
		Edge{Pressed: true, At: at(0)},
		Edge{Pressed: false, At: at(500)},
	)
	assert.Equal(t, []EventKind{Down, Up}, kinds(events))
	assert.Equal(t, at(0), events[0].At)
	assert.Equal(t, at(500), events[1].At)
}

func TestBounceIsFiltered(t *testing.T) {
	dec := NewDecoder(debounce, doubleTap)
	events := run(dec,
		Edge{Pressed: true, At: at(0)},
		Edge{Pressed: false, At: at(5)}, // bounce, never stable
		Edge{Pressed: true, At: at(8)},
		Edge{Pressed: false, At: at(12)},
		Edge{Pressed: true, At: at(15)},
		Edge{Pressed: false, At: at(600)},
	)
	assert.Equal(t, []EventKind{Down, Up}, kinds(events), "chatter must collapse to one press-release")
}

func TestDoubleTapReplacesSecondPair(t *testing.T) {
	dec := NewDecoder(debounce, doubleTap)
	events := run(dec,
		Edge{Pressed: true, At: at(0)},
		Edge{Pressed: false, At: at(100)},
		Edge{Pressed: true, At: at(250)}, // 150ms after first Up: inside window
		Edge{Pressed: false, At: at(330)},
	)
	require.Equal(t, []EventKind{Down, Up, DoubleTap}, kinds(events))
}

func TestSlowSecondTapIsIndependentPair(t *testing.T) {
	dec := NewDecoder(debounce, doubleTap)
	events := run(dec,
		Edge{Pressed: true, At: at(0)},
		Edge{Pressed: false, At: at(100)},
		Edge{Pressed: true, At: at(600)}, // 500ms gap: outside window
		Edge{Pressed: false, At: at(700)},
	)
	assert.Equal(t, []EventKind{Down, Up, Down, Up}, kinds(events))
}

func TestSecondPressHeldDegradesToHold(t *testing.T) {
	dec := NewDecoder(debounce, doubleTap)
	var events []Event
	events = append(events, dec.Feed(Edge{Pressed: true, At: at(0)})...)
	events = append(events, dec.Feed(Edge{Pressed: false, At: at(100)})...)
	events = append(events, dec.Feed(Edge{Pressed: true, At: at(250)})...)
	// Held well past the double-tap window: the withheld Down must surface.
	events = append(events, dec.Tick(at(800))...)
	assert.Equal(t, []EventKind{Down, Up, Down}, kinds(events))
	assert.Equal(t, at(250), events[2].At, "late Down carries the real press time")

	events = dec.Feed(Edge{Pressed: false, At: at(1200)})
	events = append(events, dec.Tick(at(1300))...)
	assert.Equal(t, []EventKind{Up}, kinds(events))
}

func TestThirdTapStartsFreshGesture(t *testing.T) {
	dec := NewDecoder(debounce, doubleTap)
	events := run(dec,
		Edge{Pressed: true, At: at(0)},
		Edge{Pressed: false, At: at(100)},
		Edge{Pressed: true, At: at(250)},
		Edge{Pressed: false, At: at(330)},
		// Third tap shortly after the DoubleTap: the pair state was consumed,
		// so this is an ordinary press-release.
		Edge{Pressed: true, At: at(500)},
		Edge{Pressed: false, At: at(580)},
	)
	assert.Equal(t, []EventKind{Down, Up, DoubleTap, Down, Up}, kinds(events))
}

func TestDeterministicReplay(t *testing.T) {
	edges := []Edge{
		{Pressed: true, At: at(0)},
		{Pressed: false, At: at(90)},
		{Pressed: true, At: at(200)},
		{Pressed: false, At: at(260)},
		{Pressed: true, At: at(900)},
		{Pressed: false, At: at(1400)},
	}
	a := run(NewDecoder(debounce, doubleTap), edges...)
	b := run(NewDecoder(debounce, doubleTap), edges...)
	assert.Equal(t, a, b)
}
