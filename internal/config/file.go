package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with pointer fields so absent keys leave the
// current value untouched.
type fileConfig struct {
	AudioDevice     *string        `yaml:"audio_device"`
	SampleRate      *int           `yaml:"sample_rate"`
	Channels        *int           `yaml:"channels"`
	SampleFormat    *string        `yaml:"sample_format"`
	RecsDir         *string        `yaml:"recs_dir"`
	Endpoint        *string        `yaml:"endpoint"`
	NetHost         *string        `yaml:"net_host"`
	NetPort         *int           `yaml:"net_port"`
	UploadTimeout   *time.Duration `yaml:"upload_timeout"`
	FetchTimeout    *time.Duration `yaml:"fetch_timeout"`
	ButtonPath      *string        `yaml:"button_path"`
	DebounceWindow  *time.Duration `yaml:"debounce_window"`
	DoubleTapWindow *time.Duration `yaml:"double_tap_window"`
	StopGrace       *time.Duration `yaml:"stop_grace"`
	LEDDevice       *string        `yaml:"led_device"`
	LEDBrightness   *float64       `yaml:"led_brightness"`
	SFXEnabled      *bool          `yaml:"sfx_enabled"`
	Listen          *string        `yaml:"listen"`
	LogPath         *string        `yaml:"log_path"`
	LogLevel        *string        `yaml:"log_level"`
	Debug           *bool          `yaml:"debug"`
	JournalDir      *string        `yaml:"journal_dir"`
}

// mergeFile overlays the YAML file at path onto cfg.
func mergeFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.AudioDevice, fc.AudioDevice)
	setInt(&cfg.SampleRate, fc.SampleRate)
	setInt(&cfg.Channels, fc.Channels)
	setString(&cfg.SampleFormat, fc.SampleFormat)
	setString(&cfg.RecsDir, fc.RecsDir)
	setString(&cfg.Endpoint, fc.Endpoint)
	setString(&cfg.NetHost, fc.NetHost)
	setInt(&cfg.NetPort, fc.NetPort)
	setDuration(&cfg.UploadTimeout, fc.UploadTimeout)
	setDuration(&cfg.FetchTimeout, fc.FetchTimeout)
	setString(&cfg.ButtonPath, fc.ButtonPath)
	setDuration(&cfg.DebounceWindow, fc.DebounceWindow)
	setDuration(&cfg.DoubleTapWindow, fc.DoubleTapWindow)
	setDuration(&cfg.StopGrace, fc.StopGrace)
	setString(&cfg.LEDDevice, fc.LEDDevice)
	setFloat(&cfg.LEDBrightness, fc.LEDBrightness)
	setBool(&cfg.SFXEnabled, fc.SFXEnabled)
	setString(&cfg.Listen, fc.Listen)
	setString(&cfg.LogPath, fc.LogPath)
	setString(&cfg.LogLevel, fc.LogLevel)
	setBool(&cfg.Debug, fc.Debug)
	setString(&cfg.JournalDir, fc.JournalDir)
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *time.Duration) {
	if src != nil {
		*dst = *src
	}
}
