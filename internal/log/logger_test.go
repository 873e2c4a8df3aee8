package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigureEmitsJSONLines(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "safetyscribe-test"})

	lg := WithComponent("logtest")
	lg.Info().
		Str(FieldEvent, EventStartup).
		Str(FieldDevice, "plughw:0,0").
		Msg("hello")

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line")
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if rec["event"] != EventStartup {
		t.Errorf("expected event %q, got %v", EventStartup, rec["event"])
	}
	if rec["component"] != "logtest" {
		t.Errorf("expected component logtest, got %v", rec["component"])
	}
	if _, ok := rec["time"]; !ok {
		t.Error("expected a timestamp field")
	}
}

func TestReconfigureAddsFileTee(t *testing.T) {
	// The daemon configures once with defaults, then again after loading the
	// config. The file tee from the second call must take effect.
	var early bytes.Buffer
	Configure(Config{Level: "info", Output: &early})

	path := filepath.Join(t.TempDir(), "safetyscribe.log")
	var late bytes.Buffer
	Configure(Config{Level: "info", Output: &late, File: path})

	lg := WithComponent("reconfig")
	lg.Info().Msg("after reload")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file missing after reconfigure: %v", err)
	}
	if !strings.Contains(string(data), "after reload") {
		t.Errorf("log file does not carry the entry: %q", data)
	}
	if !strings.Contains(late.String(), "after reload") {
		t.Errorf("second writer does not carry the entry: %q", late.String())
	}
	if strings.Contains(early.String(), "after reload") {
		t.Error("first writer still receives entries after reconfigure")
	}
}

func TestSetLevelIgnoresGarbage(t *testing.T) {
	SetLevel("not-a-level") // must not panic or change anything fatally
	SetLevel("debug")
}
