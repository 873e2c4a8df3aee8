package led

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/codemusic/safetyscribe/internal/log"
	"github.com/codemusic/safetyscribe/internal/metrics"
)

// flashDuration is how long an unknown-instruction blip is shown before the
// previous pattern resumes.
const flashDuration = 400 * time.Millisecond

// Command is the value published into the animator's single-slot cell.
type Command struct {
	Pattern Pattern
	At      time.Time
}

// Animator runs an independent render loop that reads only the most recently
// published command. The cell is overwrite-on-publish: the orchestrator never
// queues frames or animation internals, only the current pattern.
type Animator struct {
	bus        Bus
	interval   time.Duration
	cell       atomic.Pointer[Command]
	brightness atomic.Uint64 // float64 bits
	logger     zerolog.Logger
}

// New creates an animator rendering to bus at a 40ms frame interval.
func New(bus Bus, brightness float64) *Animator {
	a := &Animator{
		bus:      bus,
		interval: 40 * time.Millisecond,
		logger:   log.WithComponent("led"),
	}
	a.SetBrightness(brightness)
	cmd := Command{Pattern: PatternConnecting, At: time.Now()}
	a.cell.Store(&cmd)
	return a
}

// Publish replaces the current command. Never blocks; last write wins.
func (a *Animator) Publish(p Pattern) {
	cmd := Command{Pattern: p, At: time.Now()}
	a.cell.Store(&cmd)
	a.logger.Debug().Str("pattern", p.String()).Msg("led command published")
}

// Current returns the most recently published command.
func (a *Animator) Current() Command {
	return *a.cell.Load()
}

// SetBrightness adjusts global brightness at runtime (config hot reload).
func (a *Animator) SetBrightness(f float64) {
	if f <= 0 || f > 1 {
		return
	}
	a.brightness.Store(math.Float64bits(f))
}

// Run renders frames until ctx is cancelled, then blanks the strip. A bus
// write failure is logged and the frame skipped; the loop never stops for it.
func (a *Animator) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	start := time.Now()
	var (
		active   = a.Current().Pattern // pattern being rendered
		lastSeen = active
		flashEnd time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if err := a.bus.WriteFrame(Frame{}); err != nil {
				a.logger.Debug().Err(err).Msg("led blank write failed")
			}
			return ctx.Err()
		case now := <-ticker.C:
			cmd := a.Current()
			if cmd.Pattern != lastSeen {
				lastSeen = cmd.Pattern
				if cmd.Pattern == PatternUnknown {
					// Brief flash, then hold the previous pattern.
					flashEnd = now.Add(flashDuration)
				} else {
					active = cmd.Pattern
					flashEnd = time.Time{}
				}
			}

			pattern := active
			if now.Before(flashEnd) {
				pattern = PatternUnknown
			}

			t := now.Sub(start).Seconds()
			frame := a.applyBrightness(frameFor(pattern, t))
			if err := a.bus.WriteFrame(frame); err != nil {
				metrics.LEDWriteErrors.Inc()
				a.logger.Debug().Err(err).Str("pattern", pattern.String()).Msg("led write failed, frame skipped")
			}
		}
	}
}

func (a *Animator) applyBrightness(f Frame) Frame {
	b := math.Float64frombits(a.brightness.Load())
	return Frame{scale(f[0], b), scale(f[1], b)}
}
