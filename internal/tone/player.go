package tone

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/codemusic/safetyscribe/internal/log"
	"github.com/codemusic/safetyscribe/internal/proc"
)

// Options configure the cue player.
type Options struct {
	Binary     string // defaults to aplay
	Device     string
	SampleRate int
	TempDir    string
	Enabled    bool
	StopGrace  time.Duration
}

type job struct {
	notes []Note
	done  chan struct{} // set on flush barriers instead of notes
}

// Player renders and plays cues one at a time in submission order. Cues are
// best-effort UX: when the queue is full new cues are dropped, and synth or
// playback failures are logged and swallowed.
type Player struct {
	opts   Options
	runner proc.Runner
	jobs   chan job
	logger zerolog.Logger
}

func NewPlayer(runner proc.Runner, opts Options) *Player {
	if opts.Binary == "" {
		opts.Binary = "aplay"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 48000
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = time.Second
	}
	return &Player{
		opts:   opts,
		runner: runner,
		jobs:   make(chan job, 8),
		logger: log.WithComponent("tone"),
	}
}

// Play enqueues a cue. It never blocks the caller.
func (p *Player) Play(notes []Note) {
	if !p.opts.Enabled || len(notes) == 0 {
		return
	}
	select {
	case p.jobs <- job{notes: notes}:
	default:
		p.logger.Debug().Msg("cue queue full, dropping cue")
	}
}

// Flush blocks until every cue enqueued before the call has finished
// playing, so voice playback never overlaps a tone.
func (p *Player) Flush(ctx context.Context) error {
	if !p.opts.Enabled {
		return nil
	}
	barrier := job{done: make(chan struct{})}
	select {
	case p.jobs <- barrier:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-barrier.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is cancelled.
func (p *Player) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-p.jobs:
			if j.done != nil {
				close(j.done)
				continue
			}
			p.playOne(ctx, j.notes)
		}
	}
}

func (p *Player) playOne(ctx context.Context, notes []Note) {
	path, err := Render(notes, p.opts.SampleRate, p.opts.TempDir)
	if err != nil {
		p.logger.Debug().Err(err).Msg("cue synth failed")
		return
	}
	defer func() { _ = os.Remove(path) }()

	pr, err := p.runner.Start(ctx, p.opts.Binary, "-D", p.opts.Device, path)
	if err != nil {
		p.logger.Debug().Err(err).Msg("cue playback failed to start")
		return
	}
	select {
	case <-pr.Exited():
	case <-ctx.Done():
		_ = proc.Terminate(pr, p.opts.StopGrace)
	}
}
