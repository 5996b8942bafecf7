// Package chat implements the assistant's conversation service: request
// normalization, prompt assembly, provider selection, and the streaming
// pipeline that turns model deltas into sentence-sized events.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SaiPranay04/Vezora-AI/pkg/chunker"
	"github.com/SaiPranay04/Vezora-AI/pkg/inference"
	"github.com/SaiPranay04/Vezora-AI/pkg/journal"
	"github.com/SaiPranay04/Vezora-AI/pkg/memory"
	"github.com/SaiPranay04/Vezora-AI/pkg/settings"
)

// ErrBadRequest marks client mistakes so handlers can answer 400
// instead of 500.
var ErrBadRequest = errors.New("chat: bad request")

// Request is a chat turn from the client. Exactly one of Message or
// Messages must be set: Message for a single turn, Messages for a
// conversation history.
type Request struct {
	Message       string              `json:"message,omitempty"`
	Messages      []inference.Message `json:"messages,omitempty"`
	IncludeMemory bool                `json:"includeMemory,omitempty"`
	UserID        string              `json:"userId,omitempty"`
}

// Response is the non-streaming answer shape.
type Response struct {
	ID           string            `json:"id"`
	Role         string            `json:"role"`
	Content      string            `json:"content"`
	Timestamp    string            `json:"timestamp"`
	Model        string            `json:"model"`
	Provider     string            `json:"provider"`
	Intent       *inference.Intent `json:"intent,omitempty"`
	ResponseTime int64             `json:"responseTime"`
	TokenUsage   *inference.Usage  `json:"tokenUsage,omitempty"`
}

// Event is one streaming message on the wire.
type Event struct {
	// Type is "chunk", "done", or "error".
	Type string `json:"type"`

	// Content carries one sentence fragment for chunk events.
	Content string `json:"content,omitempty"`

	// FullResponse carries the assembled reply on the done event.
	FullResponse string `json:"fullResponse,omitempty"`

	// Message carries the failure description on error events.
	Message string `json:"message,omitempty"`
}

// EmitFunc delivers one event to the client. A non-nil error aborts the
// stream (the client went away).
type EmitFunc func(Event) error

// HealthReport describes provider availability for the health endpoint.
type HealthReport struct {
	Providers       map[string]inference.ProviderStatus `json:"providers"`
	ActiveProvider  string                              `json:"activeProvider"`
	FallbackEnabled bool                                `json:"fallbackEnabled"`
}

// Service wires the selector, stores, and journal into the two chat
// entry points.
type Service struct {
	selector *inference.Selector
	settings *settings.Store
	memory   *memory.Store
	journal  *journal.Journal
	logger   *slog.Logger
}

// NewService creates a chat service. The journal may be nil; recording
// is then skipped.
func NewService(sel *inference.Selector, st *settings.Store, mem *memory.Store, jrn *journal.Journal, logger *slog.Logger) *Service {
	return &Service{
		selector: sel,
		settings: st,
		memory:   mem,
		journal:  jrn,
		logger:   logger.With("component", "chat"),
	}
}

// Respond generates a complete answer for the request.
func (s *Service) Respond(ctx context.Context, req *Request) (*Response, error) {
	messages, err := s.assemble(req)
	if err != nil {
		return nil, err
	}
	prefs := s.settings.Get(s.userID(req))

	start := time.Now()
	resp, choice, err := s.selector.Chat(ctx, &inference.ChatRequest{
		Messages:    messages,
		Temperature: prefs.Temperature,
		MaxTokens:   prefs.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate response: %w", err)
	}
	elapsed := time.Since(start).Milliseconds()

	intent, _ := s.selector.ParseIntent(ctx, lastUserMessage(messages))

	provider := choice.Label
	if choice.Fallback {
		provider += " (fallback)"
	}

	s.record(journal.Entry{
		Type:         "chat",
		UserID:       s.userID(req),
		Message:      lastUserMessage(messages),
		Response:     resp.Message.Content,
		Intent:       string(intent.Action),
		Provider:     provider,
		ResponseTime: elapsed,
	})

	usage := resp.Usage
	return &Response{
		ID:           uuid.NewString(),
		Role:         string(inference.RoleAssistant),
		Content:      resp.Message.Content,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Model:        resp.Model,
		Provider:     provider,
		Intent:       intent,
		ResponseTime: elapsed,
		TokenUsage:   &usage,
	}, nil
}

// Stream generates an answer as sentence events. Provider selection and
// fallback happen before the first byte; once deltas are flowing, a
// provider failure becomes an error event and ends the stream. Partial
// sentences have already been spoken, so a silent provider switch would
// contradict them.
func (s *Service) Stream(ctx context.Context, req *Request, emit EmitFunc) error {
	messages, err := s.assemble(req)
	if err != nil {
		return err
	}
	prefs := s.settings.Get(s.userID(req))

	start := time.Now()
	stream, choice, err := s.selector.Stream(ctx, &inference.ChatRequest{
		Messages:    messages,
		Temperature: prefs.Temperature,
		MaxTokens:   prefs.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	s.logger.Info("streaming response", "provider", choice.Label, "fallback", choice.Fallback)

	ch := chunker.New()
	var full strings.Builder

	for {
		chunk, err := stream.Recv()
		if err != nil {
			s.logger.Error("stream failed mid-response", "provider", choice.Label, "error", err)
			return emit(Event{Type: "error", Message: err.Error()})
		}

		full.WriteString(chunk.Delta)
		for _, frag := range ch.Write(chunk.Delta) {
			if err := emit(Event{Type: "chunk", Content: frag.Text}); err != nil {
				return err
			}
		}

		if chunk.Done {
			break
		}
	}

	if frag, ok := ch.Flush(); ok {
		if err := emit(Event{Type: "chunk", Content: frag.Text}); err != nil {
			return err
		}
	}

	response := strings.TrimSpace(full.String())
	s.record(journal.Entry{
		Type:         "chat",
		UserID:       s.userID(req),
		Message:      lastUserMessage(messages),
		Response:     response,
		Provider:     choice.Label,
		ResponseTime: time.Since(start).Milliseconds(),
	})

	return emit(Event{Type: "done", FullResponse: response})
}

// Intent classifies a message without generating a reply.
func (s *Service) Intent(ctx context.Context, message string) (*inference.Intent, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrBadRequest)
	}
	intent, _ := s.selector.ParseIntent(ctx, message)
	return intent, nil
}

// Health reports provider availability.
func (s *Service) Health(ctx context.Context) HealthReport {
	primary, secondary, active := s.selector.Status(ctx)
	return HealthReport{
		Providers: map[string]inference.ProviderStatus{
			primary.Label:   primary,
			secondary.Label: secondary,
		},
		ActiveProvider:  active,
		FallbackEnabled: true,
	}
}

// ValidateRequest checks the message/messages shape without touching a
// provider. Handlers call it before committing response headers so a
// malformed body still gets a plain client error.
func ValidateRequest(req *Request) error {
	switch {
	case len(req.Messages) > 0 && req.Message != "":
		return fmt.Errorf("%w: provide message or messages, not both", ErrBadRequest)
	case len(req.Messages) > 0, strings.TrimSpace(req.Message) != "":
		return nil
	default:
		return fmt.Errorf("%w: message or messages array is required", ErrBadRequest)
	}
}

// assemble validates the request and builds the full message list:
// assistant system prompt first, then optional memory context, then the
// conversation turns.
func (s *Service) assemble(req *Request) ([]inference.Message, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	turns := req.Messages
	if len(turns) == 0 {
		turns = []inference.Message{inference.NewUserMessage(req.Message)}
	}

	prefs := s.settings.Get(s.userID(req))
	messages := []inference.Message{inference.NewSystemMessage(systemPrompt(prefs.VoiceTone))}

	if req.IncludeMemory {
		if facts := s.memory.Top(s.userID(req), 3); len(facts) > 0 {
			context := "Context: " + strings.Join(facts, "\n")
			messages = append(messages, inference.NewSystemMessage(context))
		}
	}

	return append(messages, turns...), nil
}

func (s *Service) userID(req *Request) string {
	if req.UserID == "" {
		return "default"
	}
	return req.UserID
}

func (s *Service) record(e journal.Entry) {
	if s.journal == nil {
		return
	}
	if !s.journal.Record(e) {
		s.logger.Warn("journal buffer full, entry dropped")
	}
}

// lastUserMessage finds the most recent user turn for intent parsing
// and journaling.
func lastUserMessage(messages []inference.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == inference.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
