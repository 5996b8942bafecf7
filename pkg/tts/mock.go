package tts

import (
	"context"
	"encoding/base64"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	// SynthesizeFunc is called when Synthesize is invoked.
	SynthesizeFunc func(ctx context.Context, text string, opts Options) (*Result, error)

	// VoicesFunc is called when Voices is invoked.
	VoicesFunc func(ctx context.Context) ([]Voice, error)

	mu         sync.Mutex
	synthCalls []string
}

// NewMock creates a mock that echoes the text back as fake audio.
func NewMock() *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text string, opts Options) (*Result, error) {
			opts = opts.withDefaults()
			return &Result{
				Audio:     base64.StdEncoding.EncodeToString([]byte(text)),
				Format:    "mp3",
				Duration:  EstimateDuration(text, opts.Speed).Seconds(),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}, nil
		},
	}
}

// Synthesize calls SynthesizeFunc and records the text.
func (m *Mock) Synthesize(ctx context.Context, text string, opts Options) (*Result, error) {
	m.mu.Lock()
	m.synthCalls = append(m.synthCalls, text)
	m.mu.Unlock()
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, opts)
	}
	return nil, ErrNotConfigured
}

// Voices calls VoicesFunc.
func (m *Mock) Voices(ctx context.Context) ([]Voice, error) {
	if m.VoicesFunc != nil {
		return m.VoicesFunc(ctx)
	}
	return []Voice{{Name: "default", LanguageCodes: []string{"en-US"}, Gender: "NEUTRAL"}}, nil
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// Synthesized returns the texts passed to Synthesize, in order.
func (m *Mock) Synthesized() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.synthCalls))
	copy(out, m.synthCalls)
	return out
}

var _ Provider = (*Mock)(nil)
