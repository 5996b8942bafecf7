package inference

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Slot identifies one of the two configured providers.
// Provider selection is a closed choice, not a string-keyed registry:
// an unsupported provider is a compile-time concern.
type Slot int

const (
	// SlotPrimary is the preferred provider (cloud, when configured).
	SlotPrimary Slot = iota

	// SlotSecondary is the fallback provider (local).
	SlotSecondary
)

// String returns a human-readable slot name.
func (s Slot) String() string {
	switch s {
	case SlotPrimary:
		return "primary"
	case SlotSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// Choice records which provider served a request.
type Choice struct {
	// Slot is the provider slot that produced the result.
	Slot Slot

	// Label is the provider's display name (e.g. "gemini", "ollama").
	Label string

	// Fallback is true when the secondary served after a primary failure.
	Fallback bool
}

// hintTTL bounds how long a cached health result is trusted.
// The hint only avoids a redundant probe; it never gates correctness,
// since a request-time failure still triggers the fallback hop.
const hintTTL = 30 * time.Second

type healthHint struct {
	healthy bool
	at      time.Time
}

// Selector chooses between a primary and a secondary provider.
//
// Policy: prefer the primary; if it is missing or its health probe fails,
// use the secondary. On a request-time failure from the chosen provider,
// retry the same request exactly once against the other before surfacing
// a combined failure. There is no retry loop beyond that single hop.
type Selector struct {
	primary        Provider
	secondary      Provider
	primaryLabel   string
	secondaryLabel string
	logger         *slog.Logger

	mu    sync.Mutex
	hints map[Slot]healthHint
}

// NewSelector creates a selector over the two provider slots.
// Either slot may be nil (e.g. no cloud API key configured), but not both.
func NewSelector(primary, secondary Provider) (*Selector, error) {
	if primary == nil && secondary == nil {
		return nil, ErrProviderUnavailable
	}
	return &Selector{
		primary:        primary,
		secondary:      secondary,
		primaryLabel:   "primary",
		secondaryLabel: "secondary",
		logger:         slog.Default().With("component", "inference.selector"),
		hints:          make(map[Slot]healthHint),
	}, nil
}

// NewSelectorWithLogger creates a selector with a custom logger.
func NewSelectorWithLogger(logger *slog.Logger, primary, secondary Provider) (*Selector, error) {
	s, err := NewSelector(primary, secondary)
	if err != nil {
		return nil, err
	}
	s.logger = logger.With("component", "inference.selector")
	return s, nil
}

// SetLabels sets the display names reported in Choice.
func (s *Selector) SetLabels(primary, secondary string) {
	if primary != "" {
		s.primaryLabel = primary
	}
	if secondary != "" {
		s.secondaryLabel = secondary
	}
}

// Chat generates a completion from the selected provider, with one
// fallback hop on failure.
func (s *Selector) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, Choice, error) {
	active, choice := s.pick(ctx)

	resp, err := active.Chat(ctx, req)
	if err == nil {
		return resp, choice, nil
	}
	if ctx.Err() != nil {
		return nil, choice, ctx.Err()
	}

	other, otherChoice, ok := s.other(choice.Slot)
	if !ok {
		return nil, choice, err
	}

	s.logger.Warn("provider failed, falling back",
		"provider", choice.Label,
		"fallback", otherChoice.Label,
		"error", err,
	)
	s.noteFailure(choice.Slot)

	resp, err2 := other.Chat(ctx, req)
	if err2 == nil {
		otherChoice.Fallback = true
		return resp, otherChoice, nil
	}

	return nil, choice, &ChainError{Errors: []error{err, err2}}
}

// Stream opens a provider stream, with one fallback hop if the stream
// cannot be opened. Once a stream handle is returned, failures mid-stream
// belong to the caller: partial output has already been delivered, and a
// silent restart would duplicate or contradict it.
func (s *Selector) Stream(ctx context.Context, req *ChatRequest) (Stream, Choice, error) {
	active, choice := s.pick(ctx)

	stream, err := active.Stream(ctx, req)
	if err == nil {
		return stream, choice, nil
	}
	if ctx.Err() != nil {
		return nil, choice, ctx.Err()
	}

	other, otherChoice, ok := s.other(choice.Slot)
	if !ok {
		return nil, choice, err
	}

	s.logger.Warn("provider stream failed, falling back",
		"provider", choice.Label,
		"fallback", otherChoice.Label,
		"error", err,
	)
	s.noteFailure(choice.Slot)

	stream, err2 := other.Stream(ctx, req)
	if err2 == nil {
		otherChoice.Fallback = true
		return stream, otherChoice, nil
	}

	return nil, choice, &ChainError{Errors: []error{err, err2}}
}

// ParseIntent classifies a message using the selected provider.
// Never fails: adapters recover malformed output internally, and a dead
// provider degrades to the deterministic keyword classifier.
func (s *Selector) ParseIntent(ctx context.Context, message string) (*Intent, Choice) {
	active, choice := s.pick(ctx)

	intent, err := active.ParseIntent(ctx, message)
	if err != nil || intent == nil {
		return FallbackIntent(message), choice
	}
	return intent, choice
}

// ProviderStatus describes one slot's health for diagnostics.
type ProviderStatus struct {
	Label   string `json:"label"`
	Present bool   `json:"present"`
	Healthy bool   `json:"healthy"`
}

// Status probes both slots and reports which provider is active.
// Used by the health endpoint; bypasses the hint cache.
func (s *Selector) Status(ctx context.Context) (primary, secondary ProviderStatus, active string) {
	primary = ProviderStatus{Label: s.primaryLabel, Present: s.primary != nil}
	secondary = ProviderStatus{Label: s.secondaryLabel, Present: s.secondary != nil}

	if s.primary != nil {
		primary.Healthy = s.probe(ctx, SlotPrimary, s.primary)
	}
	if s.secondary != nil {
		secondary.Healthy = s.probe(ctx, SlotSecondary, s.secondary)
	}

	switch {
	case primary.Healthy:
		active = s.primaryLabel
	case secondary.Healthy:
		active = s.secondaryLabel
	default:
		active = "none"
	}
	return primary, secondary, active
}

// Close closes both providers.
func (s *Selector) Close() error {
	var lastErr error
	if s.primary != nil {
		if err := s.primary.Close(); err != nil {
			lastErr = err
		}
	}
	if s.secondary != nil {
		if err := s.secondary.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// pick selects the provider for this request.
// The primary wins if present and its (possibly cached) health probe
// passes; otherwise the secondary. With one slot configured there is
// no choice to make.
func (s *Selector) pick(ctx context.Context) (Provider, Choice) {
	if s.primary == nil {
		return s.secondary, Choice{Slot: SlotSecondary, Label: s.secondaryLabel}
	}
	if s.secondary == nil {
		return s.primary, Choice{Slot: SlotPrimary, Label: s.primaryLabel}
	}

	if s.healthy(ctx, SlotPrimary, s.primary) {
		return s.primary, Choice{Slot: SlotPrimary, Label: s.primaryLabel}
	}

	s.logger.Info("primary unhealthy, selecting secondary")
	return s.secondary, Choice{Slot: SlotSecondary, Label: s.secondaryLabel}
}

// other returns the provider in the slot not chosen, if configured.
func (s *Selector) other(chosen Slot) (Provider, Choice, bool) {
	if chosen == SlotPrimary && s.secondary != nil {
		return s.secondary, Choice{Slot: SlotSecondary, Label: s.secondaryLabel}, true
	}
	if chosen == SlotSecondary && s.primary != nil {
		return s.primary, Choice{Slot: SlotPrimary, Label: s.primaryLabel}, true
	}
	return nil, Choice{}, false
}

// healthy returns the slot's health, consulting the hint cache first.
func (s *Selector) healthy(ctx context.Context, slot Slot, p Provider) bool {
	s.mu.Lock()
	hint, ok := s.hints[slot]
	s.mu.Unlock()

	if ok && time.Since(hint.at) < hintTTL {
		return hint.healthy
	}
	return s.probe(ctx, slot, p)
}

// probe runs a health check and refreshes the hint cache.
func (s *Selector) probe(ctx context.Context, slot Slot, p Provider) bool {
	healthy := p.Health(ctx) == nil

	s.mu.Lock()
	s.hints[slot] = healthHint{healthy: healthy, at: time.Now()}
	s.mu.Unlock()

	return healthy
}

// noteFailure records a request-time failure in the hint cache so the
// next selection skips the straight-to-failure path.
func (s *Selector) noteFailure(slot Slot) {
	s.mu.Lock()
	s.hints[slot] = healthHint{healthy: false, at: time.Now()}
	s.mu.Unlock()
}
