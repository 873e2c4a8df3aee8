package uplink

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var dataURLRe = regexp.MustCompile(`^data:audio/[^;]+;base64,(.+)$`)

// Instruction is the normalized server response. The endpoint has grown
// several spellings for the same logical fields; parsing tries each accepted
// key in order and degrades instead of erroring.
type Instruction struct {
	// AudioURL points at a playable resource to fetch, when present.
	AudioURL string
	// AudioInline holds decoded audio bytes when the response embedded the
	// payload directly (raw base64 or a data: URL).
	AudioInline []byte
	// LEDPattern is the raw pattern name, empty when absent.
	LEDPattern string
	// Sound is a reserved structured tone-cue payload. Carried verbatim and
	// ignored today; its presence must never be an error.
	Sound json.RawMessage
}

// HasAudio reports whether the instruction names playable audio.
func (in *Instruction) HasAudio() bool {
	return in.AudioURL != "" || len(in.AudioInline) > 0
}

// ParseInstruction normalizes a response body. Only malformed JSON is an
// error; unknown values inside a well-formed object degrade field by field.
func ParseInstruction(body []byte) (*Instruction, error) {
	var raw struct {
		AudioURL     string          `json:"audio_url"`
		Audio        json.RawMessage `json:"audio"`
		LED          string          `json:"led"`
		LEDPattern   string          `json:"led_pattern"`
		Pattern      string          `json:"pattern"`
		Sound        json.RawMessage `json:"sound"`
		SoundPattern json.RawMessage `json:"sound_pattern"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	in := &Instruction{}

	in.AudioURL = raw.AudioURL
	if in.AudioURL == "" && len(raw.Audio) > 0 {
		var s string
		if err := json.Unmarshal(raw.Audio, &s); err == nil && s != "" {
			if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
				in.AudioURL = s
			} else {
				in.AudioInline = decodeInlineAudio(s)
			}
		}
		// Non-string audio values are ignored.
	}

	for _, v := range []string{raw.LED, raw.LEDPattern, raw.Pattern} {
		if v != "" {
			in.LEDPattern = v
			break
		}
	}

	if len(raw.Sound) > 0 {
		in.Sound = raw.Sound
	} else if len(raw.SoundPattern) > 0 {
		in.Sound = raw.SoundPattern
	}

	return in, nil
}

// decodeInlineAudio accepts raw base64 or a data:audio/...;base64 URL.
// Undecodable input yields nil: degraded, not fatal.
func decodeInlineAudio(s string) []byte {
	if m := dataURLRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	out, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return out
}
