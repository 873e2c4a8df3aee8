package proc

import (
	"context"
	"sync"
	"syscall"
)

// FakeProcess is a scripted process for tests: it exits when told to.
type FakeProcess struct {
	mu      sync.Mutex
	exited  chan struct{}
	exitErr error
	signals []syscall.Signal
	// KillExits makes any signal terminate the process, mimicking a
	// well-behaved recorder.
	KillExits bool
}

func NewFakeProcess() *FakeProcess {
	return &FakeProcess{exited: make(chan struct{}), KillExits: true}
}

func (p *FakeProcess) Exited() <-chan struct{} { return p.exited }

func (p *FakeProcess) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

func (p *FakeProcess) Pid() int { return 4242 }

func (p *FakeProcess) Signal(sig syscall.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	kill := p.KillExits
	p.mu.Unlock()
	if kill {
		p.Exit(nil)
	}
	return nil
}

// Exit completes the process with the given error. Idempotent.
func (p *FakeProcess) Exit(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.exited:
	default:
		p.exitErr = err
		close(p.exited)
	}
}

// Signals returns the signals received so far.
func (p *FakeProcess) Signals() []syscall.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]syscall.Signal(nil), p.signals...)
}

// FakeRunner hands out scripted processes and records the commands it was
// asked to run.
type FakeRunner struct {
	mu       sync.Mutex
	StartErr error
	procs    []*FakeProcess
	cmds     [][]string
}

func (r *FakeRunner) Start(_ context.Context, name string, args ...string) (Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.StartErr != nil {
		return nil, r.StartErr
	}
	p := NewFakeProcess()
	r.procs = append(r.procs, p)
	r.cmds = append(r.cmds, append([]string{name}, args...))
	return p, nil
}

// Last returns the most recently started fake process.
func (r *FakeRunner) Last() *FakeProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.procs) == 0 {
		return nil
	}
	return r.procs[len(r.procs)-1]
}

// Commands returns every argv started so far.
func (r *FakeRunner) Commands() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]string, len(r.cmds))
	copy(out, r.cmds)
	return out
}
