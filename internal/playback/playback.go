// Package playback owns the player subprocess lifecycle.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codemusic/safetyscribe/internal/log"
	"github.com/codemusic/safetyscribe/internal/metrics"
	"github.com/codemusic/safetyscribe/internal/proc"
)

var (
	// ErrDeviceUnavailable means the player could not be spawned.
	ErrDeviceUnavailable = errors.New("playback device unavailable")
	// ErrPlaybackFailed maps a nonzero player exit.
	ErrPlaybackFailed = errors.New("playback failed")
	// ErrPlaybackActive guards the one-live-handle invariant. The state
	// machine makes this unreachable; the guard stays anyway.
	ErrPlaybackActive = errors.New("a playback is already active")
)

// Options bind the player to the configured audio device.
type Options struct {
	Binary    string // defaults to "aplay"
	Device    string
	StopGrace time.Duration
}

// Handle identifies one live playback.
type Handle struct {
	Path      string
	StartedAt time.Time

	proc     proc.Process
	stopOnce sync.Once
}

// Controller spawns the player and awaits its exit. At most one live handle.
type Controller struct {
	mu     sync.Mutex
	runner proc.Runner
	opts   Options
	live   *Handle
	logger zerolog.Logger
}

func New(runner proc.Runner, opts Options) *Controller {
	if opts.Binary == "" {
		opts.Binary = "aplay"
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = 3 * time.Second
	}
	return &Controller{
		runner: runner,
		opts:   opts,
		logger: log.WithComponent("playback"),
	}
}

// Play spawns the player for the given file.
func (c *Controller) Play(ctx context.Context, path string) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live != nil {
		return nil, ErrPlaybackActive
	}

	p, err := c.runner.Start(ctx, c.opts.Binary, "-D", c.opts.Device, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	h := &Handle{Path: path, StartedAt: time.Now(), proc: p}
	c.live = h
	c.logger.Debug().Str(log.FieldPath, path).Msg("player started")
	return h, nil
}

// Await blocks until the player exits. It must run on a worker goroutine,
// never on the orchestrator's.
func (c *Controller) Await(h *Handle) error {
	<-h.proc.Exited()
	err := h.proc.ExitErr()
	c.release(h)
	if err != nil {
		metrics.Playbacks.WithLabelValues("failed").Inc()
		c.logger.Warn().
			Str(log.FieldEvent, log.EventPlaybackError).
			Str(log.FieldPath, h.Path).
			Err(err).
			Msg("player exited with failure")
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}
	metrics.Playbacks.WithLabelValues("ok").Inc()
	return nil
}

// Stop terminates an in-flight playback (shutdown path). Idempotent.
func (c *Controller) Stop(h *Handle) {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() {
		_ = proc.Terminate(h.proc, c.opts.StopGrace)
		c.release(h)
	})
}

func (c *Controller) release(h *Handle) {
	c.mu.Lock()
	if c.live == h {
		c.live = nil
	}
	c.mu.Unlock()
}

// Active reports whether a live handle exists.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live != nil
}
