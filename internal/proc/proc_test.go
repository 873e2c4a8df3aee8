package proc

import (
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminateGracefulExit(t *testing.T) {
	p := NewFakeProcess()
	err := Terminate(p, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []syscall.Signal{syscall.SIGTERM}, p.Signals())
}

func TestTerminateEscalatesToKill(t *testing.T) {
	p := NewFakeProcess()
	p.KillExits = false // ignores SIGTERM

	go func() {
		// Dies only once SIGKILL lands.
		for {
			for _, s := range p.Signals() {
				if s == syscall.SIGKILL {
					p.Exit(errors.New("killed"))
					return
				}
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	err := Terminate(p, 50*time.Millisecond)
	assert.Error(t, err)
	sigs := p.Signals()
	require.Len(t, sigs, 2)
	assert.Equal(t, syscall.SIGTERM, sigs[0])
	assert.Equal(t, syscall.SIGKILL, sigs[1])
}

func TestTerminateIdempotentOnDeadProcess(t *testing.T) {
	p := NewFakeProcess()
	p.Exit(nil)
	require.NoError(t, Terminate(p, time.Second))
	require.NoError(t, Terminate(p, time.Second))
}

func TestTerminateNil(t *testing.T) {
	require.NoError(t, Terminate(nil, time.Second))
}
