package inference

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SaiPranay04/Vezora-AI/internal/httpc"
)

const providerOllama = "ollama"

// Ollama implements the Provider interface for a local Ollama server.
// Used as the offline fallback when no cloud provider is configured or
// the cloud provider fails.
type Ollama struct {
	baseURL string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewOllama creates an Ollama provider.
// No API key is required; the server is assumed local.
func NewOllama(opts ...Option) (*Ollama, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://localhost:11434"
	cfg.Model = "mistral:latest"
	// Tighter limits than the cloud provider: local models are slower and
	// the loop needs short, speakable replies.
	cfg.MaxTokens = 100
	cfg.Temperature = 0.6
	cfg.Apply(opts...)

	return &Ollama{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:  cfg,
		http:    httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "inference.ollama"),
	}, nil
}

// Chat generates a completion via Ollama's generate endpoint.
func (o *Ollama) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = o.config.Model
	}

	body, err := json.Marshal(o.buildPayload(req, model, false))
	if err != nil {
		return nil, WrapError(providerOllama, err)
	}

	resp, err := o.post(ctx, o.http, body)
	if err != nil {
		return nil, WrapError(providerOllama, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, o.parseError(resp)
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerOllama, fmt.Errorf("decode response: %w", err))
	}

	if result.Response == "" {
		return nil, WrapError(providerOllama, ErrNoContent)
	}

	return &ChatResponse{
		Message: Message{
			Role:    RoleAssistant,
			Content: strings.TrimSpace(result.Response),
		},
		FinishReason: "stop",
		Usage: Usage{
			PromptTokens:     result.PromptEvalCount,
			CompletionTokens: result.EvalCount,
			TotalTokens:      result.PromptEvalCount + result.EvalCount,
		},
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Stream generates a streaming completion. Ollama streams newline-delimited
// JSON objects, one token fragment per line.
func (o *Ollama) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	model := req.Model
	if model == "" {
		model = o.config.Model
	}

	body, err := json.Marshal(o.buildPayload(req, model, true))
	if err != nil {
		return nil, WrapError(providerOllama, err)
	}

	client := httpc.NewClient(o.config.StreamTimeout)
	resp, err := o.post(ctx, client, body)
	if err != nil {
		return nil, WrapError(providerOllama, fmt.Errorf("stream request: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, o.parseError(resp)
	}

	return &ollamaStream{
		reader: bufio.NewReader(resp.Body),
		body:   resp.Body,
	}, nil
}

// ParseIntent classifies the message, falling back to the keyword classifier
// when the model output is not usable JSON.
func (o *Ollama) ParseIntent(ctx context.Context, message string) (*Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.IntentTimeout)
	defer cancel()

	resp, err := o.Chat(ctx, &ChatRequest{
		Messages:    []Message{NewUserMessage(fmt.Sprintf(intentPrompt, message))},
		Temperature: 0.1,
		MaxTokens:   150,
	})
	if err != nil {
		o.logger.Warn("intent classification failed, using keyword fallback", "error", err)
		return FallbackIntent(message), nil
	}

	if intent, ok := decodeIntent(resp.Message.Content); ok {
		return intent, nil
	}

	o.logger.Debug("malformed intent JSON, using keyword fallback")
	return FallbackIntent(message), nil
}

// Health checks that the Ollama server is reachable.
func (o *Ollama) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.config.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/api/tags", nil)
	if err != nil {
		return WrapError(providerOllama, err)
	}

	resp, err := o.http.Do(req)
	if err != nil {
		return WrapError(providerOllama, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return o.parseError(resp)
	}
	return nil
}

// Close releases resources.
func (o *Ollama) Close() error {
	o.http.CloseIdleConnections()
	return nil
}

// buildPayload converts a ChatRequest to Ollama's generate format.
// Conversation history is flattened into a single prompt.
func (o *Ollama) buildPayload(req *ChatRequest, model string, stream bool) map[string]any {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.config.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = o.config.Temperature
	}

	options := map[string]any{
		"temperature": temp,
		"top_p":       0.9,
		"num_predict": maxTokens,
		"stop":        []string{"User:", "Human:", "\n\nUser:", "\n\nHuman:"},
	}
	if req.TopP > 0 {
		options["top_p"] = req.TopP
	}
	if len(req.Stop) > 0 {
		options["stop"] = req.Stop
	}

	return map[string]any{
		"model":   model,
		"prompt":  flattenPrompt(req.Messages),
		"stream":  stream,
		"options": options,
	}
}

// flattenPrompt renders a message history as a single completion prompt.
// Only the last eight turns are kept; local models slow down on long context.
func flattenPrompt(messages []Message) string {
	var b strings.Builder

	recent := messages
	if len(recent) > 8 {
		// System context always survives the window
		for _, msg := range recent[:len(recent)-8] {
			if msg.Role == RoleSystem {
				b.WriteString("\n" + msg.Content + "\n")
			}
		}
		recent = recent[len(recent)-8:]
	}

	for _, msg := range recent {
		switch msg.Role {
		case RoleSystem:
			b.WriteString("\n" + msg.Content + "\n")
		case RoleUser:
			b.WriteString("\nUser: " + msg.Content + "\n")
		case RoleAssistant:
			b.WriteString("\nVezora: " + msg.Content + "\n")
		}
	}

	b.WriteString("\nVezora:")
	return b.String()
}

// post sends a JSON POST to the generate endpoint.
func (o *Ollama) post(ctx context.Context, client *http.Client, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return client.Do(req)
}

// parseError reads and parses an error response.
func (o *Ollama) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error string `json:"error"`
	}

	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		message = errResp.Error
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerOllama,
	}
}

// ollamaStream implements Stream for Ollama's NDJSON responses.
type ollamaStream struct {
	reader *bufio.Reader
	body   io.ReadCloser
}

// Recv returns the next stream chunk.
func (s *ollamaStream) Recv() (*StreamChunk, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err == io.EOF {
			return &StreamChunk{Done: true}, nil
		}
		if err != nil {
			return nil, WrapError(providerOllama, fmt.Errorf("read stream: %w", err))
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var event ollamaResponse
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			// Skip malformed lines
			continue
		}

		if event.Done {
			return &StreamChunk{
				Delta:        event.Response,
				FinishReason: "stop",
				Done:         true,
			}, nil
		}
		if event.Response == "" {
			continue
		}

		return &StreamChunk{Delta: event.Response}, nil
	}
}

// Close stops the stream.
func (s *ollamaStream) Close() error {
	return s.body.Close()
}

// ollamaResponse is the Ollama generate response format.
type ollamaResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Verify Ollama implements Provider at compile time.
var _ Provider = (*Ollama)(nil)
