// Package hw adapts the device peripherals (button line, LED strip) to the
// interfaces the runtime consumes. Everything here is a thin file-backed
// shim; the interesting logic lives behind the interfaces.
package hw

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/codemusic/safetyscribe/internal/led"
)

// SysfsLine reads a GPIO level through the sysfs value file. The button is
// wired active-low with a pull-up, so a low level means pressed.
type SysfsLine struct {
	Path      string
	ActiveLow bool
}

// Level reports the logical (pressed) level. Read failures report released,
// which is the safe idle value.
func (l *SysfsLine) Level() bool {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return false
	}
	high := len(bytes.TrimSpace(data)) > 0 && bytes.TrimSpace(data)[0] == '1'
	if l.ActiveLow {
		return !high
	}
	return high
}

// DevBus writes raw GRB frames to a character device driving the two-pixel
// strip. The wire encoding beyond byte order belongs to the kernel driver.
type DevBus struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func OpenDevBus(path string) (*DevBus, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open led device: %w", err)
	}
	return &DevBus{path: path, f: f}, nil
}

func (b *DevBus) WriteFrame(frame led.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf := make([]byte, 0, 6)
	for _, px := range frame {
		buf = append(buf, px.G, px.R, px.B)
	}
	if _, err := b.f.Write(buf); err != nil {
		return fmt.Errorf("write led frame: %w", err)
	}
	return nil
}

func (b *DevBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.f.Close()
}

// NullBus discards frames. Used when no LED device is configured, so the
// rest of the runtime behaves identically on a dev machine.
type NullBus struct{}

func (NullBus) WriteFrame(led.Frame) error { return nil }
