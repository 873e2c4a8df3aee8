package tone

import (
	"fmt"
	"os"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/wav"
)

// rampTime is the attack/release applied to every note so hard tone edges
// do not click on the small speaker.
const rampTime = 8 * time.Millisecond

// noteGap separates consecutive notes.
const noteGap = 10 * time.Millisecond

// Render synthesizes a note sequence into a 16-bit stereo wav under dir and
// returns its path. Notes whose frequencies the generator rejects are
// skipped. The caller owns the file.
func Render(notes []Note, sampleRate int, dir string) (string, error) {
	sr := beep.SampleRate(sampleRate)

	parts := make([]beep.Streamer, 0, 2*len(notes))
	for _, n := range notes {
		s, err := noteStreamer(sr, n)
		if err != nil {
			continue
		}
		parts = append(parts, s, beep.Silence(sr.N(noteGap)))
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("render: no playable notes")
	}

	out, err := os.CreateTemp(dir, "sfx_*.wav")
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	format := beep.Format{SampleRate: sr, NumChannels: 2, Precision: 2}
	if err := wav.Encode(out, beep.Seq(parts...), format); err != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("render: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("render: %w", err)
	}
	return out.Name(), nil
}

func noteStreamer(sr beep.SampleRate, n Note) (beep.Streamer, error) {
	if n.Left <= 0 || n.Right <= 0 {
		return nil, fmt.Errorf("frequency out of range")
	}
	left, err := generators.SineTone(sr, float64(n.Left))
	if err != nil {
		return nil, err
	}
	right, err := generators.SineTone(sr, float64(n.Right))
	if err != nil {
		return nil, err
	}

	total := sr.N(n.Duration)
	env := &envelope{
		s:     &stereoPair{left: left, right: right},
		total: total,
		ramp:  sr.N(rampTime),
	}
	return beep.Take(total, &effects.Gain{Streamer: env, Gain: n.Volume - 1}), nil
}

// stereoPair drives one generator per channel so a note can carry different
// left/right frequencies.
type stereoPair struct {
	left, right beep.Streamer
	lbuf, rbuf  [512][2]float64
}

func (p *stereoPair) Stream(samples [][2]float64) (int, bool) {
	total := 0
	for total < len(samples) {
		chunk := len(samples) - total
		if chunk > len(p.lbuf) {
			chunk = len(p.lbuf)
		}
		ln, lok := p.left.Stream(p.lbuf[:chunk])
		rn, rok := p.right.Stream(p.rbuf[:chunk])
		n := ln
		if rn < n {
			n = rn
		}
		for i := 0; i < n; i++ {
			samples[total+i][0] = p.lbuf[i][0]
			samples[total+i][1] = p.rbuf[i][1]
		}
		total += n
		if !lok || !rok || n < chunk {
			return total, total > 0
		}
	}
	return total, true
}

func (p *stereoPair) Err() error {
	if err := p.left.Err(); err != nil {
		return err
	}
	return p.right.Err()
}

// envelope applies a linear attack over the first ramp samples and a
// matching release over the last ones.
type envelope struct {
	s           beep.Streamer
	total, ramp int
	pos         int
}

func (e *envelope) Stream(samples [][2]float64) (int, bool) {
	n, ok := e.s.Stream(samples)
	for i := 0; i < n; i++ {
		g := e.gainAt(e.pos + i)
		samples[i][0] *= g
		samples[i][1] *= g
	}
	e.pos += n
	return n, ok
}

func (e *envelope) gainAt(pos int) float64 {
	if e.ramp <= 0 || e.total <= 2*e.ramp {
		return 1
	}
	if pos < e.ramp {
		return float64(pos) / float64(e.ramp)
	}
	if rem := e.total - 1 - pos; rem < e.ramp {
		if rem < 0 {
			return 0
		}
		return float64(rem) / float64(e.ramp)
	}
	return 1
}

func (e *envelope) Err() error { return e.s.Err() }
