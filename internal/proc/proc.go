// Package proc owns the lifecycle of external audio subprocesses.
package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/codemusic/safetyscribe/internal/metrics"
)

var ErrStartFailed = errors.New("process start failed")

// Process is a started external process. Exited is closed exactly once when
// the process leaves the process table; ExitErr is valid from then on.
// Multiple goroutines may wait on the same process.
type Process interface {
	Exited() <-chan struct{}
	ExitErr() error
	Signal(sig syscall.Signal) error
	Pid() int
}

// Runner starts external commands. Tests substitute a fake that completes
// or fails on command.
type Runner interface {
	Start(ctx context.Context, name string, args ...string) (Process, error)
}

// ExecRunner runs real commands via os/exec, discarding their output the way
// the audio tools expect (arecord/aplay chatter is not ours to parse).
type ExecRunner struct{}

type execProcess struct {
	cmd     *exec.Cmd
	exited  chan struct{}
	exitErr error
}

func (p *execProcess) Exited() <-chan struct{} { return p.exited }

func (p *execProcess) ExitErr() error { return p.exitErr }

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

func (p *execProcess) Signal(sig syscall.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (ExecRunner) Start(ctx context.Context, name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStartFailed, name, err)
	}
	p := &execProcess{cmd: cmd, exited: make(chan struct{})}
	go func() {
		p.exitErr = cmd.Wait()
		close(p.exited)
	}()
	// Nudge the process if the context dies before anyone calls Terminate.
	go func() {
		select {
		case <-ctx.Done():
			_ = cmd.Process.Signal(syscall.SIGTERM)
		case <-p.exited:
		}
	}()
	return p, nil
}

// Terminate stops a process gracefully: SIGTERM, wait up to grace, then
// SIGKILL and drain. It returns the process exit error and is safe to call
// on an already-exited process.
func Terminate(p Process, grace time.Duration) error {
	if p == nil {
		return nil
	}
	signal(p, syscall.SIGTERM, "SIGTERM")

	select {
	case <-p.Exited():
		return p.ExitErr()
	case <-time.After(grace):
	}

	signal(p, syscall.SIGKILL, "SIGKILL")
	// SIGKILL frees a blocked process, so the drain is bounded in practice.
	<-p.Exited()
	return p.ExitErr()
}

func signal(p Process, sig syscall.Signal, name string) {
	if err := p.Signal(sig); err == nil {
		metrics.IncProcTerminate(name, "sent")
	} else if errors.Is(err, syscall.ESRCH) || isFinished(err) {
		metrics.IncProcTerminate(name, "esrch")
	} else {
		metrics.IncProcTerminate(name, "error")
	}
}

func isFinished(err error) bool {
	return err != nil && err.Error() == "os: process already finished"
}
