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

const providerGemini = "gemini"

// Gemini implements the Provider interface for Google's Gemini API.
// This is the preferred cloud provider when an API key is configured.
type Gemini struct {
	apiKey string
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	cfg.Model = "gemini-2.0-flash"
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}

	return &Gemini{
		apiKey: cfg.APIKey,
		config: cfg,
		http:   httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

// Chat generates a chat completion using Gemini.
func (g *Gemini) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.config.Model
	}

	body, err := json.Marshal(g.buildPayload(req))
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.config.BaseURL, model, g.apiKey)
	resp, err := g.post(ctx, g.http, url, body)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.parseError(resp)
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("decode response: %w", err))
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, WrapError(providerGemini, ErrNoContent)
	}

	candidate := result.Candidates[0]

	return &ChatResponse{
		Message: Message{
			Role:    RoleAssistant,
			Content: strings.TrimSpace(candidate.Content.Parts[0].Text),
		},
		FinishReason: candidate.FinishReason,
		Usage: Usage{
			PromptTokens:     result.UsageMetadata.PromptTokenCount,
			CompletionTokens: result.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      result.UsageMetadata.TotalTokenCount,
		},
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Stream generates a streaming completion using Gemini's SSE endpoint.
// Fragments are yielded as they arrive; nothing is buffered to completion.
func (g *Gemini) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	model := req.Model
	if model == "" {
		model = g.config.Model
	}

	body, err := json.Marshal(g.buildPayload(req))
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s",
		g.config.BaseURL, model, g.apiKey)

	client := httpc.NewClient(g.config.StreamTimeout)
	resp, err := g.post(ctx, client, url, body)
	if err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("stream request: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, g.parseError(resp)
	}

	return &geminiStream{
		reader: bufio.NewReader(resp.Body),
		body:   resp.Body,
	}, nil
}

// ParseIntent classifies the message, falling back to the keyword classifier
// when the model output is not usable JSON.
func (g *Gemini) ParseIntent(ctx context.Context, message string) (*Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.IntentTimeout)
	defer cancel()

	model := g.config.IntentModel
	if model == "" {
		model = g.config.Model
	}

	resp, err := g.Chat(ctx, &ChatRequest{
		Messages:    []Message{NewUserMessage(fmt.Sprintf(intentPrompt, message))},
		Model:       model,
		Temperature: 0.1,
		MaxTokens:   200,
	})
	if err != nil {
		g.logger.Warn("intent classification failed, using keyword fallback", "error", err)
		return FallbackIntent(message), nil
	}

	if intent, ok := decodeIntent(resp.Message.Content); ok {
		return intent, nil
	}

	g.logger.Debug("malformed intent JSON, using keyword fallback")
	return FallbackIntent(message), nil
}

// Health checks API connectivity and key validity.
func (g *Gemini) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.config.HealthTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/models?key=%s&pageSize=1", g.config.BaseURL, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return WrapError(providerGemini, err)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return WrapError(providerGemini, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return g.parseError(resp)
	}
	return nil
}

// Close releases resources.
func (g *Gemini) Close() error {
	g.http.CloseIdleConnections()
	return nil
}

// buildPayload converts a ChatRequest to Gemini's wire format.
// System messages become the systemInstruction; assistant turns map to "model".
func (g *Gemini) buildPayload(req *ChatRequest) map[string]any {
	var system strings.Builder
	contents := make([]map[string]any, 0, len(req.Messages))

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(msg.Content)
		case RoleAssistant:
			contents = append(contents, map[string]any{
				"role":  "model",
				"parts": []map[string]string{{"text": msg.Content}},
			})
		default:
			contents = append(contents, map[string]any{
				"role":  "user",
				"parts": []map[string]string{{"text": msg.Content}},
			})
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = g.config.Temperature
	}

	genConfig := map[string]any{
		"temperature":     temp,
		"topP":            0.95,
		"maxOutputTokens": maxTokens,
	}
	if req.TopP > 0 {
		genConfig["topP"] = req.TopP
	}
	if len(req.Stop) > 0 {
		genConfig["stopSequences"] = req.Stop
	}

	payload := map[string]any{
		"contents":         contents,
		"generationConfig": genConfig,
	}
	if system.Len() > 0 {
		payload["systemInstruction"] = map[string]any{
			"parts": []map[string]string{{"text": system.String()}},
		}
	}
	return payload
}

// post sends a JSON POST request.
func (g *Gemini) post(ctx context.Context, client *http.Client, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return client.Do(req)
}

// parseError reads and parses an error response.
func (g *Gemini) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   providerGemini,
	}
}

// geminiStream implements Stream for Gemini's SSE responses.
type geminiStream struct {
	reader *bufio.Reader
	body   io.ReadCloser
}

// Recv returns the next stream chunk.
func (s *geminiStream) Recv() (*StreamChunk, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err == io.EOF {
			return &StreamChunk{Done: true}, nil
		}
		if err != nil {
			return nil, WrapError(providerGemini, fmt.Errorf("read stream: %w", err))
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event geminiResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			// Skip malformed events
			continue
		}

		if len(event.Candidates) == 0 {
			continue
		}

		candidate := event.Candidates[0]
		delta := ""
		if len(candidate.Content.Parts) > 0 {
			delta = candidate.Content.Parts[0].Text
		}

		return &StreamChunk{
			Delta:        delta,
			FinishReason: candidate.FinishReason,
			Done:         candidate.FinishReason != "",
		}, nil
	}
}

// Close stops the stream.
func (s *geminiStream) Close() error {
	return s.body.Close()
}

// geminiResponse is the Gemini API response format.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Verify Gemini implements Provider at compile time.
var _ Provider = (*Gemini)(nil)
