package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemusic/safetyscribe/internal/proc"
)

func newController() (*Controller, *proc.FakeRunner) {
	runner := &proc.FakeRunner{}
	return New(runner, Options{Device: "plughw:0,0", StopGrace: 100 * time.Millisecond}), runner
}

func TestPlayBuildsPlayerCommand(t *testing.T) {
	c, runner := newController()
	h, err := c.Play(context.Background(), "/tmp/resp.wav")
	require.NoError(t, err)
	require.NotNil(t, h)

	cmds := runner.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, []string{"aplay", "-D", "plughw:0,0", "/tmp/resp.wav"}, cmds[0])
}

func TestAwaitSuccess(t *testing.T) {
	c, runner := newController()
	h, err := c.Play(context.Background(), "/tmp/resp.wav")
	require.NoError(t, err)

	runner.Last().Exit(nil)
	require.NoError(t, c.Await(h))
	assert.False(t, c.Active())
}

func TestAwaitTranslatesNonzeroExit(t *testing.T) {
	c, runner := newController()
	h, err := c.Play(context.Background(), "/tmp/resp.wav")
	require.NoError(t, err)

	runner.Last().Exit(errors.New("exit status 1"))
	err = c.Await(h)
	assert.ErrorIs(t, err, ErrPlaybackFailed)
	assert.False(t, c.Active(), "failed playback must release the slot")
}

func TestSecondPlayRejectedWhileActive(t *testing.T) {
	c, _ := newController()
	_, err := c.Play(context.Background(), "/tmp/a.wav")
	require.NoError(t, err)

	_, err = c.Play(context.Background(), "/tmp/b.wav")
	assert.ErrorIs(t, err, ErrPlaybackActive)
}

func TestStopIsIdempotent(t *testing.T) {
	c, runner := newController()
	h, err := c.Play(context.Background(), "/tmp/a.wav")
	require.NoError(t, err)

	c.Stop(h)
	c.Stop(h)
	assert.Len(t, runner.Last().Signals(), 1)
	assert.False(t, c.Active())

	_, err = c.Play(context.Background(), "/tmp/b.wav")
	assert.NoError(t, err)
}

func TestPlayStartFailure(t *testing.T) {
	runner := &proc.FakeRunner{StartErr: errors.New("spawn failed")}
	c := New(runner, Options{Device: "plughw:0,0"})
	_, err := c.Play(context.Background(), "/tmp/a.wav")
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.False(t, c.Active())
}
