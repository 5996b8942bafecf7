// Package tts synthesizes speech for the assistant's voice replies.
package tts

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotConfigured is returned when no synthesis backend is available.
var ErrNotConfigured = errors.New("tts: no provider configured")

// Provider converts text into audio.
type Provider interface {
	// Synthesize renders text as audio using the given options.
	Synthesize(ctx context.Context, text string, opts Options) (*Result, error)

	// Voices lists the voices the backend offers.
	Voices(ctx context.Context) ([]Voice, error)

	// Close releases resources.
	Close() error
}

// Options control voice rendering. Zero values select the defaults.
type Options struct {
	// Voice is the backend voice name. Empty picks the default voice.
	Voice string

	// Speed is the speaking rate multiplier. Zero means 1.0.
	Speed float64

	// Pitch shifts the voice in semitones.
	Pitch float64

	// Language is a BCP-47 code. Empty means "en-US".
	Language string
}

// withDefaults fills unset option fields.
func (o Options) withDefaults() Options {
	if o.Speed == 0 {
		o.Speed = 1.0
	}
	if o.Language == "" {
		o.Language = "en-US"
	}
	return o
}

// Result is one synthesized utterance.
type Result struct {
	// Audio is the base64-encoded audio payload.
	Audio string `json:"audio"`

	// Format is the audio container, e.g. "mp3".
	Format string `json:"format"`

	// Duration is the estimated playback length in seconds.
	Duration float64 `json:"duration"`

	// Timestamp is when synthesis completed.
	Timestamp string `json:"timestamp"`
}

// Voice describes one available backend voice.
type Voice struct {
	Name          string   `json:"name"`
	LanguageCodes []string `json:"languageCodes"`
	Gender        string   `json:"ssmlGender"`
	SampleRate    int64    `json:"naturalSampleRateHertz,omitempty"`
}

// SynthesisError wraps a backend failure.
type SynthesisError struct {
	Provider string
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("tts %s: synthesis failed: %v", e.Provider, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// EstimateDuration approximates playback length. Used where actual audio
// timing is unavailable, e.g. browser-side synthesis.
func EstimateDuration(text string, speed float64) time.Duration {
	if speed <= 0 {
		speed = 1.0
	}
	perChar := time.Duration(float64(50*time.Millisecond) / speed)
	return time.Duration(len(text))*perChar + 500*time.Millisecond
}
