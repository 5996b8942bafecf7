package voicecall

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client talks to the assistant backend's chat endpoints.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
}

// NewClient creates a backend client. The HTTP client must not carry an
// overall timeout; streams stay open for the whole reply and the
// context bounds each request instead.
func NewClient(baseURL, userID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		http:    httpClient,
	}
}

// chatRequest is the shared request body for both endpoints.
type chatRequest struct {
	Message       string `json:"message"`
	IncludeMemory bool   `json:"includeMemory"`
	UserID        string `json:"userId"`
}

// event is one SSE frame from the streaming endpoint.
type event struct {
	Type         string `json:"type"`
	Content      string `json:"content,omitempty"`
	FullResponse string `json:"fullResponse,omitempty"`
	Message      string `json:"message,omitempty"`
}

// StreamChat posts a message to the streaming endpoint and invokes
// onSentence for each chunk event. Returns the full reply from the done
// event. A server error event or a transport failure aborts the stream.
func (c *Client) StreamChat(ctx context.Context, message string, onSentence func(string) error) (string, error) {
	body, err := json.Marshal(chatRequest{Message: message, UserID: c.userID})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/stream", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stream request failed: status %d", resp.StatusCode)
	}

	var assembled strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var evt event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
			// Skip malformed frames rather than killing the call
			continue
		}

		switch evt.Type {
		case "chunk":
			if evt.Content == "" {
				continue
			}
			if assembled.Len() > 0 {
				assembled.WriteString(" ")
			}
			assembled.WriteString(evt.Content)
			if err := onSentence(evt.Content); err != nil {
				return "", err
			}
		case "done":
			if evt.FullResponse != "" {
				return evt.FullResponse, nil
			}
			return assembled.String(), nil
		case "error":
			return "", fmt.Errorf("stream error: %s", evt.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return "", fmt.Errorf("stream ended without done event")
}

// Chat posts a message to the non-streaming endpoint.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(chatRequest{Message: message, UserID: c.userID})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("chat request failed: status %d", resp.StatusCode)
	}

	var out struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	return out.Content, nil
}
