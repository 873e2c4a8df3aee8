package button

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/codemusic/safetyscribe/internal/log"
	"github.com/codemusic/safetyscribe/internal/metrics"
)

// EdgeSource yields timestamped input-line transitions. Implementations wrap
// real GPIO lines; tests inject synthetic sequences.
type EdgeSource interface {
	Edges(ctx context.Context) <-chan Edge
}

// LevelFunc reports the current logical level of the input line
// (true = pressed; active-low inversion belongs to the GPIO adapter).
type LevelFunc func() bool

// PollingSource samples a level function at a fixed interval and emits an
// edge whenever the level changes.
type PollingSource struct {
	Read     LevelFunc
	Interval time.Duration
}

func (s *PollingSource) Edges(ctx context.Context) <-chan Edge {
	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	out := make(chan Edge, 16)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		last := s.Read()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				level := s.Read()
				if level == last {
					continue
				}
				last = level
				select {
				case out <- Edge{Pressed: level, At: now}:
				default:
					// Consumer stalled; dropping a bounce edge beats blocking.
				}
			}
		}
	}()
	return out
}

// Watcher runs the gesture decoder against an edge source and publishes
// decoded events.
type Watcher struct {
	src    EdgeSource
	dec    *Decoder
	out    chan Event
	logger zerolog.Logger
}

// NewWatcher wires an edge source to a fresh decoder.
func NewWatcher(src EdgeSource, debounce, doubleTap time.Duration) *Watcher {
	return &Watcher{
		src:    src,
		dec:    NewDecoder(debounce, doubleTap),
		out:    make(chan Event, 16),
		logger: log.WithComponent("button"),
	}
}

// Events returns the decoded gesture stream.
func (w *Watcher) Events() <-chan Event {
	return w.out
}

// Run consumes edges until ctx is cancelled. A periodic tick resolves
// debounce and double-tap deadlines even when the line is quiet.
func (w *Watcher) Run(ctx context.Context) error {
	edges := w.src.Edges(ctx)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-edges:
			if !ok {
				return nil
			}
			w.publish(w.dec.Feed(e))
		case now := <-ticker.C:
			w.publish(w.dec.Tick(now))
		}
	}
}

func (w *Watcher) publish(events []Event) {
	for _, ev := range events {
		metrics.ButtonEvents.WithLabelValues(ev.Kind.String()).Inc()
		select {
		case w.out <- ev:
		default:
			// The session is live, not a command queue: a full consumer
			// means the event is stale by definition.
			w.logger.Debug().Str("kind", ev.Kind.String()).Msg("dropping button event, consumer busy")
		}
	}
}
