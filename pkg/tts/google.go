package tts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

// Google synthesizes speech via the Google Cloud Text-to-Speech API.
type Google struct {
	svc    *texttospeech.Service
	logger *slog.Logger
}

// NewGoogle creates a Google TTS provider authenticated with an API key.
func NewGoogle(ctx context.Context, apiKey string, logger *slog.Logger) (*Google, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	svc, err := texttospeech.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create tts service: %w", err)
	}
	return &Google{
		svc:    svc,
		logger: logger.With("component", "tts.google"),
	}, nil
}

// Synthesize renders text as MP3 audio.
func (g *Google) Synthesize(ctx context.Context, text string, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	voice := &texttospeech.VoiceSelectionParams{
		LanguageCode: opts.Language,
		SsmlGender:   "NEUTRAL",
	}
	if opts.Voice != "" && opts.Voice != "default" {
		voice.Name = opts.Voice
	}

	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: voice,
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: "MP3",
			SpeakingRate:  opts.Speed,
			Pitch:         opts.Pitch,
		},
	}

	resp, err := g.svc.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		g.logger.Error("synthesis failed", "error", err)
		return nil, &SynthesisError{Provider: "google", Err: err}
	}

	return &Result{
		Audio:     resp.AudioContent,
		Format:    "mp3",
		Duration:  EstimateDuration(text, opts.Speed).Seconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Voices lists the voices the API offers.
func (g *Google) Voices(ctx context.Context) ([]Voice, error) {
	resp, err := g.svc.Voices.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}

	voices := make([]Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voices = append(voices, Voice{
			Name:          v.Name,
			LanguageCodes: v.LanguageCodes,
			Gender:        v.SsmlGender,
			SampleRate:    v.NaturalSampleRateHertz,
		})
	}
	return voices, nil
}

// Close releases resources. The underlying HTTP client needs no
// explicit shutdown.
func (g *Google) Close() error {
	return nil
}

var _ Provider = (*Google)(nil)
