package tone

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/codemusic/safetyscribe/internal/proc"
)

func TestParsePayloadSpellings(t *testing.T) {
	notes := ParsePayload(json.RawMessage(`[
		{"fL":1000,"fR":1200,"d":0.08,"v":0.4},
		{"f":800,"dur":0.05,"vol":0.2},
		{}
	]`))
	require.Len(t, notes, 3)

	assert.Equal(t, Note{1000, 1200, 80 * time.Millisecond, 0.4}, notes[0])
	assert.Equal(t, Note{800, 800, 50 * time.Millisecond, 0.2}, notes[1])
	assert.Equal(t, Note{1000, 1000, 80 * time.Millisecond, 0.35}, notes[2])
}

func TestParsePayloadClampsHostileValues(t *testing.T) {
	notes := ParsePayload(json.RawMessage(`[{"f":1000,"d":3600,"v":9}]`))
	require.Len(t, notes, 1)
	assert.Equal(t, 2*time.Second, notes[0].Duration)
	assert.Equal(t, 1.0, notes[0].Volume)
}

func TestParsePayloadRejectsNonArray(t *testing.T) {
	assert.Nil(t, ParsePayload(json.RawMessage(`{"f":1000}`)))
	assert.Nil(t, ParsePayload(json.RawMessage(`"chirp"`)))
}

func TestRenderWritesWav(t *testing.T) {
	path, err := Render(CueActivate, 48000, t.TempDir())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 44, "wav must have a header and samples")
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
}

func TestRenderAllShippedCues(t *testing.T) {
	cues := map[string][]Note{
		"startup":  CueStartup,
		"outro":    CueOutro,
		"activate": CueActivate,
		"release":  CueRelease,
		"response": CueResponse,
	}
	dir := t.TempDir()
	for name, cue := range cues {
		path, err := Render(cue, 48000, dir)
		require.NoError(t, err, name)
		fi, err := os.Stat(path)
		require.NoError(t, err, name)
		assert.Greater(t, fi.Size(), int64(44), name)
	}
}

func TestRenderSkipsUnplayableNotes(t *testing.T) {
	_, err := Render([]Note{{Left: -5, Right: -5, Duration: 50 * time.Millisecond, Volume: 0.3}}, 48000, t.TempDir())
	assert.Error(t, err)
}

func TestPlayerPlaysCuesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := &proc.FakeRunner{}
	p := NewPlayer(runner, Options{Device: "plughw:0,0", TempDir: t.TempDir(), Enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()

	p.Play(CueActivate)
	require.Eventually(t, func() bool { return len(runner.Commands()) == 1 }, time.Second, 5*time.Millisecond)
	cmd := runner.Commands()[0]
	assert.Equal(t, "aplay", cmd[0])
	assert.Equal(t, []string{"-D", "plughw:0,0"}, cmd[1:3])

	p.Play(CueRelease)
	runner.Last().Exit(nil)
	require.Eventually(t, func() bool { return len(runner.Commands()) == 2 }, time.Second, 5*time.Millisecond)
	runner.Last().Exit(nil)

	require.NoError(t, p.Flush(ctx))

	cancel()
	<-done
}

func TestFlushWaitsForQueuedCues(t *testing.T) {
	runner := &proc.FakeRunner{}
	p := NewPlayer(runner, Options{Device: "plughw:0,0", TempDir: t.TempDir(), Enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	p.Play(CueResponse)
	require.Eventually(t, func() bool { return runner.Last() != nil }, time.Second, 5*time.Millisecond)

	flushed := make(chan error, 1)
	go func() { flushed <- p.Flush(ctx) }()

	select {
	case <-flushed:
		t.Fatal("flush returned while a cue was still playing")
	case <-time.After(50 * time.Millisecond):
	}

	runner.Last().Exit(nil)
	require.NoError(t, <-flushed)
}

func TestDisabledPlayerIsInert(t *testing.T) {
	runner := &proc.FakeRunner{}
	p := NewPlayer(runner, Options{Device: "plughw:0,0", Enabled: false})

	p.Play(CueStartup)
	require.NoError(t, p.Flush(context.Background()))
	assert.Empty(t, runner.Commands())
}
