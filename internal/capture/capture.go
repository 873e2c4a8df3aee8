// Package capture owns the recorder subprocess lifecycle.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codemusic/safetyscribe/internal/log"
	"github.com/codemusic/safetyscribe/internal/metrics"
	"github.com/codemusic/safetyscribe/internal/proc"
)

var (
	// ErrDeviceUnavailable means the recorder could not be spawned against
	// the configured device. Fatal to the attempt, not to the process.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrCaptureActive guards the one-live-handle invariant.
	ErrCaptureActive = errors.New("a capture is already active")
)

// Options bind the recorder to the configured audio path.
type Options struct {
	Binary       string // defaults to "arecord"
	Device       string
	SampleRate   int
	Channels     int
	SampleFormat string
	StopGrace    time.Duration
}

// Handle identifies one live capture attempt.
type Handle struct {
	Path      string
	StartedAt time.Time

	proc     proc.Process
	stopOnce sync.Once
	size     int64
	stopErr  error
}

// Controller spawns and stops the recorder. Never more than one live handle.
type Controller struct {
	mu     sync.Mutex
	runner proc.Runner
	opts   Options
	live   *Handle
	logger zerolog.Logger
}

func New(runner proc.Runner, opts Options) *Controller {
	if opts.Binary == "" {
		opts.Binary = "arecord"
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = 3 * time.Second
	}
	return &Controller{
		runner: runner,
		opts:   opts,
		logger: log.WithComponent("capture"),
	}
}

// Start spawns the recorder writing to path.
func (c *Controller) Start(ctx context.Context, path string) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live != nil {
		return nil, ErrCaptureActive
	}

	p, err := c.runner.Start(ctx, c.opts.Binary,
		"-D", c.opts.Device,
		"-f", c.opts.SampleFormat,
		"-c", strconv.Itoa(c.opts.Channels),
		"-r", strconv.Itoa(c.opts.SampleRate),
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	h := &Handle{Path: path, StartedAt: time.Now(), proc: p}
	c.live = h
	metrics.RecordingsStarted.Inc()
	c.logger.Info().
		Str(log.FieldEvent, log.EventRecordingStart).
		Str(log.FieldPath, path).
		Str(log.FieldDevice, c.opts.Device).
		Int(log.FieldSampleRate, c.opts.SampleRate).
		Int(log.FieldChannels, c.opts.Channels).
		Msg("recorder started")
	return h, nil
}

// Stop terminates the recorder gracefully and returns the finalized file
// size. Idempotent and safe on an already-exited handle.
func (c *Controller) Stop(h *Handle) (int64, error) {
	if h == nil {
		return 0, nil
	}
	h.stopOnce.Do(func() {
		exitErr := proc.Terminate(h.proc, c.opts.StopGrace)

		if fi, err := os.Stat(h.Path); err == nil {
			h.size = fi.Size()
		}
		if h.size == 0 {
			// Nothing was written: the device was never really opened.
			h.stopErr = ErrDeviceUnavailable
			if exitErr != nil {
				h.stopErr = fmt.Errorf("%w: %v", ErrDeviceUnavailable, exitErr)
			}
		}

		c.mu.Lock()
		if c.live == h {
			c.live = nil
		}
		c.mu.Unlock()

		if h.stopErr == nil {
			metrics.RecordingBytes.Observe(float64(h.size))
		}
		c.logger.Info().
			Str(log.FieldEvent, log.EventRecordingStop).
			Str(log.FieldPath, h.Path).
			Int64(log.FieldBytes, h.size).
			Err(h.stopErr).
			Msg("recorder stopped")
	})
	return h.size, h.stopErr
}

// Active reports whether a live handle exists.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live != nil
}
