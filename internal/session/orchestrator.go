package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codemusic/safetyscribe/internal/button"
	"github.com/codemusic/safetyscribe/internal/capture"
	"github.com/codemusic/safetyscribe/internal/journal"
	"github.com/codemusic/safetyscribe/internal/led"
	"github.com/codemusic/safetyscribe/internal/log"
	"github.com/codemusic/safetyscribe/internal/metrics"
	"github.com/codemusic/safetyscribe/internal/playback"
	"github.com/codemusic/safetyscribe/internal/tone"
	"github.com/codemusic/safetyscribe/internal/uplink"
)

// Lights receives the current pattern command. Publishing must never block.
type Lights interface {
	Publish(p led.Pattern)
}

// Cues plays short tone sequences. Play never blocks; Flush waits until the
// queue has drained so cues never overlap voice playback.
type Cues interface {
	Play(notes []tone.Note)
	Flush(ctx context.Context) error
}

// Journal records finished capture attempts. Optional.
type Journal interface {
	Append(ctx context.Context, e journal.Entry) error
}

// Options tune the orchestrator.
type Options struct {
	RecsDir       string
	ErrorLinger   time.Duration // error pattern hold before returning to ready
	PatternLinger time.Duration // instructed pattern hold
	ShutdownGrace time.Duration
}

// Deps are the subsystems the orchestrator drives.
type Deps struct {
	Buttons  <-chan button.Event
	Capture  *capture.Controller
	Playback *playback.Controller
	Client   *uplink.Client
	Lights   Lights
	Cues     Cues
	Journal  Journal
}

// InstructionSummary is the last server instruction, kept for the status
// endpoint.
type InstructionSummary struct {
	LEDPattern string    `json:"led_pattern,omitempty"`
	HasAudio   bool      `json:"has_audio"`
	ReceivedAt time.Time `json:"received_at"`
}

// Orchestrator owns the session state. All transitions happen on the Run
// goroutine; blocking work runs on transient workers that post completions
// back onto the events channel.
type Orchestrator struct {
	opts Options
	deps Deps

	state    atomic.Int32
	lastInst atomic.Pointer[InstructionSummary]
	events   chan event
	logger   zerolog.Logger

	// Loop-owned. Never touched off the Run goroutine.
	rec         *recording
	mode        recordMode
	play        *playback.Handle
	pendingLED  string
	lingerToken uint64
}

func New(deps Deps, opts Options) *Orchestrator {
	if opts.ErrorLinger <= 0 {
		opts.ErrorLinger = 800 * time.Millisecond
	}
	if opts.PatternLinger <= 0 {
		opts.PatternLinger = 1200 * time.Millisecond
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 3 * time.Second
	}
	o := &Orchestrator{
		opts:   opts,
		deps:   deps,
		events: make(chan event, 16),
		logger: log.WithComponent("session"),
	}
	o.state.Store(int32(StateBooting))
	return o
}

// State returns the current state. Safe from any goroutine.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// LastInstruction returns the most recent server instruction, or nil before
// the first successful upload. Safe from any goroutine.
func (o *Orchestrator) LastInstruction() *InstructionSummary {
	return o.lastInst.Load()
}

// Run drives the machine until ctx is cancelled, then performs the
// shutdown sequence and returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info().Str(log.FieldEvent, log.EventStartup).Msg("session starting")
	o.deps.Cues.Play(tone.CueStartup)
	o.setState(StateConnecting)
	o.deps.Lights.Publish(led.PatternConnecting)

	go func() {
		if err := o.deps.Client.WaitReachable(ctx); err == nil {
			o.post(ctx, evConnected{})
		}
	}()

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return nil
		case e := <-o.deps.Buttons:
			o.onButton(ctx, e)
		case e := <-o.events:
			o.onEvent(ctx, e)
		}
	}
}

// post delivers a worker completion, giving up when the loop is gone.
func (o *Orchestrator) post(ctx context.Context, e event) {
	select {
	case o.events <- e:
	case <-ctx.Done():
	}
}

// postAsync is for timers: best effort, never blocks.
func (o *Orchestrator) postAsync(e event) {
	select {
	case o.events <- e:
	default:
	}
}

func (o *Orchestrator) setState(next State) {
	prev := State(o.state.Swap(int32(next)))
	if prev == next {
		return
	}
	metrics.StateTransitions.WithLabelValues(prev.String(), next.String()).Inc()
	o.logger.Info().
		Str(log.FieldOldState, prev.String()).
		Str(log.FieldNewState, next.String()).
		Msg("state transition")
}

func (o *Orchestrator) onButton(ctx context.Context, e button.Event) {
	switch o.State() {
	case StateReady:
		switch e.Kind {
		case button.Down:
			o.startRecording(ctx, modeHold)
			return
		case button.DoubleTap:
			o.startRecording(ctx, modeToggle)
			return
		}
	case StateRecording:
		switch {
		case o.mode == modeHold && e.Kind == button.Up:
			o.stopAndUpload(ctx)
			return
		case o.mode == modeToggle && e.Kind == button.DoubleTap:
			o.stopAndUpload(ctx)
			return
		}
	}

	o.discard(e)
}

// discard drops a button event that has no transition in the current state.
// The session is live, not a command queue.
func (o *Orchestrator) discard(e button.Event) {
	st := o.State()
	metrics.DiscardedEvents.WithLabelValues(st.String()).Inc()
	o.logger.Debug().
		Str("button", e.Kind.String()).
		Str(log.FieldNewState, st.String()).
		Msg("button event discarded")
}

func (o *Orchestrator) onEvent(ctx context.Context, e event) {
	switch ev := e.(type) {
	case evConnected:
		if o.State() != StateConnecting {
			return
		}
		o.toReady("")

	case evUploadDone:
		o.onUploadDone(ctx, ev)

	case evFetchDone:
		o.onFetchDone(ctx, ev)

	case evPlaybackDone:
		if o.State() != StatePlaying {
			return
		}
		o.play = nil
		if ev.err != nil {
			o.recover("playback", ev.err)
			return
		}
		o.toReady(o.pendingLED)
		o.pendingLED = ""

	case evLinger:
		if ev.token == o.lingerToken && o.State() == StateReady {
			o.deps.Lights.Publish(led.PatternReady)
		}
	}
}

func (o *Orchestrator) startRecording(ctx context.Context, mode recordMode) {
	if o.rec != nil {
		// Structurally unreachable: Ready implies no live session. The
		// guard stays per the one-session invariant.
		o.logger.Warn().Str(log.FieldPath, o.rec.handle.Path).Msg("already recording, event ignored")
		return
	}

	name := "rec_" + time.Now().UTC().Format("20060102T150405Z") + ".wav"
	path := filepath.Join(o.opts.RecsDir, name)

	h, err := o.deps.Capture.Start(ctx, path)
	if err != nil {
		o.recover("device_unavailable", err)
		return
	}

	o.rec = &recording{id: uuid.NewString(), handle: h, startedAt: h.StartedAt}
	o.mode = mode
	o.setState(StateRecording)
	o.deps.Lights.Publish(led.PatternRecording)
	o.deps.Cues.Play(tone.CueActivate)
}

func (o *Orchestrator) stopAndUpload(ctx context.Context) {
	rec := o.rec
	o.rec = nil

	size, err := o.deps.Capture.Stop(rec.handle)
	o.deps.Cues.Play(tone.CueRelease)
	if err != nil {
		o.record(rec, size, journal.OutcomeDiscarded)
		o.recover("capture", err)
		return
	}

	o.setState(StateUploading)
	o.deps.Lights.Publish(led.PatternConnecting)
	go func() {
		in, uerr := o.deps.Client.Upload(ctx, rec.handle.Path)
		o.post(ctx, evUploadDone{rec: rec, bytes: size, in: in, err: uerr})
	}()
}

func (o *Orchestrator) onUploadDone(ctx context.Context, ev evUploadDone) {
	if o.State() != StateUploading {
		return
	}

	if ev.err != nil {
		outcome := journal.OutcomeUploadFailed
		if errors.Is(ev.err, uplink.ErrBadResponse) {
			outcome = journal.OutcomeBadResponse
		}
		o.record(ev.rec, ev.bytes, outcome)
		o.logger.Warn().
			Str(log.FieldEvent, log.EventUploadFail).
			Int64(log.FieldBytes, ev.bytes).
			Err(ev.err).
			Msg("upload failed")
		o.recover("upload", ev.err)
		return
	}

	o.record(ev.rec, ev.bytes, journal.OutcomeUploaded)
	in := ev.in
	o.lastInst.Store(&InstructionSummary{
		LEDPattern: in.LEDPattern,
		HasAudio:   in.HasAudio(),
		ReceivedAt: time.Now(),
	})
	o.logger.Info().
		Str(log.FieldEvent, log.EventServerResponse).
		Bool("have_audio", in.HasAudio()).
		Bool("have_sound", len(in.Sound) > 0).
		Str("pattern", in.LEDPattern).
		Msg("server response")
	if len(in.Sound) > 0 {
		// Reserved field: server-side cue sequences are not played yet.
		o.logger.Debug().Msg("sound payload present, ignored")
	}

	if !in.HasAudio() {
		o.toReady(in.LEDPattern)
		return
	}

	o.pendingLED = in.LEDPattern
	o.setState(StateAwaitingPlayback)
	o.deps.Lights.Publish(led.PatternPlayback)
	o.deps.Cues.Play(tone.CueResponse)
	go func() {
		var path string
		var err error
		if in.AudioURL != "" {
			path, err = o.deps.Client.Fetch(ctx, in.AudioURL)
		} else {
			path, err = o.deps.Client.Materialize(in.AudioInline)
		}
		if err == nil {
			// Voice audio never overlaps a cue.
			err = o.deps.Cues.Flush(ctx)
		}
		o.post(ctx, evFetchDone{path: path, err: err})
	}()
}

func (o *Orchestrator) onFetchDone(ctx context.Context, ev evFetchDone) {
	if o.State() != StateAwaitingPlayback {
		if ev.path != "" {
			_ = os.Remove(ev.path)
		}
		return
	}
	if ev.err != nil {
		o.pendingLED = ""
		o.recover("fetch", ev.err)
		return
	}

	h, err := o.deps.Playback.Play(ctx, ev.path)
	if err != nil {
		_ = os.Remove(ev.path)
		o.pendingLED = ""
		o.recover("playback", err)
		return
	}
	o.play = h
	o.setState(StatePlaying)
	go func() {
		err := o.deps.Playback.Await(h)
		_ = os.Remove(ev.path)
		o.post(ctx, evPlaybackDone{err: err})
	}()
}

// toReady lands in Ready. A non-empty instructed pattern is shown
// transiently before the steady ready fill takes over.
func (o *Orchestrator) toReady(instructed string) {
	o.setState(StateReady)
	if instructed == "" {
		o.deps.Lights.Publish(led.PatternReady)
	} else {
		o.deps.Lights.Publish(led.ParsePattern(instructed))
		o.lingerThenReady(o.opts.PatternLinger)
	}
	o.logger.Info().Str(log.FieldEvent, log.EventReady).Msg("ready")
}

// recover signals an error and lands back in Ready. Transient: enter,
// signal, leave.
func (o *Orchestrator) recover(class string, err error) {
	o.cleanupRecording()
	o.setState(StateRecoveringError)
	metrics.ErrorsRecovered.WithLabelValues(class).Inc()
	o.logger.Warn().Str("class", class).Err(err).Msg("recovering from error")

	o.deps.Lights.Publish(led.PatternError)
	o.setState(StateReady)
	o.lingerThenReady(o.opts.ErrorLinger)
}

func (o *Orchestrator) lingerThenReady(d time.Duration) {
	o.lingerToken++
	token := o.lingerToken
	time.AfterFunc(d, func() { o.postAsync(evLinger{token: token}) })
}

// cleanupRecording enforces the one-session invariant on every error path.
func (o *Orchestrator) cleanupRecording() {
	if o.rec == nil {
		return
	}
	rec := o.rec
	o.rec = nil
	size, _ := o.deps.Capture.Stop(rec.handle)
	o.record(rec, size, journal.OutcomeDiscarded)
}

func (o *Orchestrator) record(rec *recording, bytes int64, outcome string) {
	if o.deps.Journal == nil || rec == nil {
		return
	}
	e := journal.Entry{
		ID:         rec.id,
		Path:       rec.handle.Path,
		Bytes:      bytes,
		Outcome:    outcome,
		StartedAt:  rec.startedAt,
		FinishedAt: time.Now(),
	}
	if err := o.deps.Journal.Append(context.Background(), e); err != nil {
		o.logger.Warn().Err(err).Str(log.FieldSessionID, rec.id).Msg("journal append failed")
	}
}

// shutdown stops whatever is live, plays the outro and drains cues. The
// animator blanks the strip when its own context is cancelled by the caller.
func (o *Orchestrator) shutdown() {
	o.setState(StateShuttingDown)
	o.cleanupRecording()
	if o.play != nil {
		o.deps.Playback.Stop(o.play)
		o.play = nil
	}

	o.deps.Cues.Play(tone.CueOutro)
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.ShutdownGrace)
	defer cancel()
	_ = o.deps.Cues.Flush(ctx)

	o.logger.Info().Str(log.FieldEvent, log.EventShutdown).Msg("session stopped")
}
