package tts

import (
	"context"
	"encoding/base64"
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	if opts.Speed != 1.0 {
		t.Errorf("Expected speed 1.0, got %v", opts.Speed)
	}
	if opts.Language != "en-US" {
		t.Errorf("Expected en-US, got %q", opts.Language)
	}

	custom := Options{Speed: 1.5, Language: "en-GB"}.withDefaults()
	if custom.Speed != 1.5 || custom.Language != "en-GB" {
		t.Errorf("Set fields must survive: %+v", custom)
	}
}

func TestEstimateDuration(t *testing.T) {
	short := EstimateDuration("Hi.", 1.0)
	long := EstimateDuration("This is a much longer sentence to speak aloud.", 1.0)
	if long <= short {
		t.Error("Longer text should estimate longer playback")
	}

	fast := EstimateDuration("Same text here.", 2.0)
	slow := EstimateDuration("Same text here.", 1.0)
	if fast >= slow {
		t.Error("Higher speed should estimate shorter playback")
	}

	if EstimateDuration("", 1.0) < 500*time.Millisecond {
		t.Error("Even empty text carries the fixed overhead")
	}
}

func TestMockSynthesize(t *testing.T) {
	m := NewMock()

	res, err := m.Synthesize(context.Background(), "Hello there.", Options{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(res.Audio)
	if err != nil {
		t.Fatalf("Audio should be valid base64: %v", err)
	}
	if string(decoded) != "Hello there." {
		t.Errorf("Unexpected audio payload: %q", decoded)
	}
	if res.Format != "mp3" || res.Duration <= 0 {
		t.Errorf("Unexpected result: %+v", res)
	}

	if got := m.Synthesized(); len(got) != 1 || got[0] != "Hello there." {
		t.Errorf("Unexpected call record: %+v", got)
	}
}
