package led

import "math"

// RGB is one pixel's color before brightness scaling.
type RGB struct {
	R, G, B uint8
}

// Frame holds the colors for both pixels.
type Frame [2]RGB

// Bus writes frames to the physical strip. The real implementation drives
// the serial bus; tests substitute a recorder.
type Bus interface {
	WriteFrame(Frame) error
}

// frameFor computes the frame for a pattern at animation phase t (seconds
// since the loop started). Pure so the animations are testable headlessly.
func frameFor(p Pattern, t float64) Frame {
	switch p {
	case PatternConnecting:
		// Breathing amber ramp.
		b := 0.5 + 0.5*math.Sin(t*3.6)
		c := scale(RGB{255, 165, 0}, 0.45+0.55*b)
		return Frame{c, c}
	case PatternReady:
		return solid(RGB{0, 255, 0})
	case PatternRecording:
		// Rotating hue sweep, ~0.85s per revolution.
		c := hsv(math.Mod(t*70, 360), 1, 1)
		return Frame{c, c}
	case PatternPlayback:
		// Out-of-phase twin meters, cool cyan/blue swings.
		a := 0.5 + 0.5*math.Sin(t*9.1)
		b := 0.5 + 0.5*math.Sin(t*9.1+math.Pi)
		return Frame{
			{uint8(40 + 215*a), uint8(40 + 215*b), 255},
			{uint8(40 + 215*b), uint8(40 + 215*a), 255},
		}
	case PatternError:
		// Red strobe, 160ms period.
		if math.Mod(t, 0.16) < 0.08 {
			return solid(RGB{255, 0, 30})
		}
		return Frame{}
	default:
		// Unknown instruction: cyan blip.
		return solid(RGB{0, 180, 255})
	}
}

func solid(c RGB) Frame {
	return Frame{c, c}
}

func scale(c RGB, f float64) RGB {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return RGB{uint8(float64(c.R) * f), uint8(float64(c.G) * f), uint8(float64(c.B) * f)}
}

// hsv converts hue (degrees), saturation and value to RGB.
func hsv(h, s, v float64) RGB {
	h = math.Mod(h, 360) / 60
	i := math.Floor(h)
	f := h - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	u := v * (1 - s*(1-f))

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, u, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, u
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = u, p, v
	default:
		r, g, b = v, p, q
	}
	return RGB{uint8(r * 255), uint8(g * 255), uint8(b * 255)}
}
