// Package config loads the daemon configuration with precedence
// ENV > file > defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

var (
	ErrNoEndpoint    = errors.New("endpoint URL is required")
	ErrBadEndpoint   = errors.New("endpoint URL is invalid")
	ErrBadSampleRate = errors.New("sample rate must be positive")
	ErrBadChannels   = errors.New("channel count must be 1 or 2")
	ErrBadBrightness = errors.New("LED brightness must be in (0,1]")
)

// Config holds the full runtime configuration of the daemon.
type Config struct {
	// Audio capture/playback
	AudioDevice  string `yaml:"audio_device"`
	SampleRate   int    `yaml:"sample_rate"`
	Channels     int    `yaml:"channels"`
	SampleFormat string `yaml:"sample_format"`
	RecsDir      string `yaml:"recs_dir"`

	// Remote endpoint
	Endpoint      string        `yaml:"endpoint"`
	NetHost       string        `yaml:"net_host"`
	NetPort       int           `yaml:"net_port"`
	UploadTimeout time.Duration `yaml:"upload_timeout"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`

	// Input gestures
	ButtonPath      string        `yaml:"button_path"`
	DebounceWindow  time.Duration `yaml:"debounce_window"`
	DoubleTapWindow time.Duration `yaml:"double_tap_window"`

	// Subprocess lifecycle
	StopGrace time.Duration `yaml:"stop_grace"`

	// Presentation
	LEDDevice     string  `yaml:"led_device"`
	LEDBrightness float64 `yaml:"led_brightness"`
	SFXEnabled    bool    `yaml:"sfx_enabled"`

	// Observability
	Listen   string `yaml:"listen"`
	LogPath  string `yaml:"log_path"`
	LogLevel string `yaml:"log_level"`
	Debug    bool   `yaml:"debug"`

	// Journal
	JournalDir string `yaml:"journal_dir"`
}

// Defaults returns the built-in configuration, matching the device's shipped
// behaviour (WM8960 codec likes 48k stereo).
func Defaults() Config {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "/tmp"
	}
	return Config{
		AudioDevice:     "plughw:0,0",
		SampleRate:      48000,
		Channels:        2,
		SampleFormat:    "S16_LE",
		RecsDir:         filepath.Join(home, "recs"),
		Endpoint:        "https://n8n.codemusic.ca/webhook/safetyscribe",
		NetPort:         443,
		UploadTimeout:   90 * time.Second,
		FetchTimeout:    60 * time.Second,
		ButtonPath:      "/sys/class/gpio/gpio17/value",
		DebounceWindow:  25 * time.Millisecond,
		DoubleTapWindow: 400 * time.Millisecond,
		StopGrace:       3 * time.Second,
		LEDBrightness:   0.25,
		SFXEnabled:      true,
		Listen:          "127.0.0.1:8090",
		LogPath:         filepath.Join(home, "safetyscribe", "safetyscribe.log"),
		LogLevel:        "info",
		JournalDir:      filepath.Join(home, "safetyscribe", "journal"),
	}
}

// Load builds the configuration: defaults, then the optional YAML file at
// path, then environment overrides, then validation.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	mergeEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeEnv applies SS_* environment overrides on top of cfg.
func mergeEnv(cfg *Config) {
	cfg.AudioDevice = ParseString("SS_AUDIO_DEV", cfg.AudioDevice)
	cfg.SampleRate = ParseInt("SS_RATE", cfg.SampleRate)
	cfg.Channels = ParseInt("SS_CH", cfg.Channels)
	cfg.RecsDir = ParseString("SS_RECS_DIR", cfg.RecsDir)
	cfg.Endpoint = ParseString("SS_ENDPOINT", cfg.Endpoint)
	cfg.NetHost = ParseString("SS_NET_HOST", cfg.NetHost)
	cfg.NetPort = ParseInt("SS_NET_PORT", cfg.NetPort)
	cfg.UploadTimeout = ParseDuration("SS_UPLOAD_TIMEOUT", cfg.UploadTimeout)
	cfg.FetchTimeout = ParseDuration("SS_FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.ButtonPath = ParseString("SS_BUTTON_PATH", cfg.ButtonPath)
	cfg.DebounceWindow = ParseDuration("SS_DEBOUNCE", cfg.DebounceWindow)
	cfg.DoubleTapWindow = ParseDuration("SS_DOUBLE_TAP", cfg.DoubleTapWindow)
	cfg.StopGrace = ParseDuration("SS_STOP_GRACE", cfg.StopGrace)
	cfg.LEDDevice = ParseString("SS_LED_DEV", cfg.LEDDevice)
	cfg.LEDBrightness = ParseFloat("SS_LED_BRIGHTNESS", cfg.LEDBrightness)
	cfg.SFXEnabled = ParseBool("SS_SFX", cfg.SFXEnabled)
	cfg.Listen = ParseString("SS_LISTEN", cfg.Listen)
	cfg.LogPath = ParseString("SS_LOG_PATH", cfg.LogPath)
	cfg.LogLevel = ParseString("SS_LOG_LEVEL", cfg.LogLevel)
	cfg.Debug = ParseBool("DEBUG", cfg.Debug)
	cfg.JournalDir = ParseString("SS_JOURNAL_DIR", cfg.JournalDir)
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
}

// Validate checks invariants and fills derived values (NetHost from the
// endpoint URL when not set explicitly).
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return ErrNoEndpoint
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrBadEndpoint, c.Endpoint)
	}
	if c.NetHost == "" {
		c.NetHost = u.Hostname()
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrBadSampleRate, c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("%w: %d", ErrBadChannels, c.Channels)
	}
	if c.LEDBrightness <= 0 || c.LEDBrightness > 1 {
		return fmt.Errorf("%w: %v", ErrBadBrightness, c.LEDBrightness)
	}
	if c.SampleFormat == "" {
		c.SampleFormat = "S16_LE"
	}
	return nil
}
