package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SaiPranay04/Vezora-AI/pkg/chat"
	"github.com/SaiPranay04/Vezora-AI/pkg/hub"
	"github.com/SaiPranay04/Vezora-AI/pkg/inference"
	"github.com/SaiPranay04/Vezora-AI/pkg/journal"
	"github.com/SaiPranay04/Vezora-AI/pkg/memory"
	"github.com/SaiPranay04/Vezora-AI/pkg/settings"
	"github.com/SaiPranay04/Vezora-AI/pkg/tts"
)

type testServer struct {
	srv      *Server
	provider *inference.Mock
	speech   *tts.Mock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	logger := slog.Default()

	st, err := settings.NewStore(filepath.Join(dir, "settings.json"), logger)
	if err != nil {
		t.Fatalf("settings store: %v", err)
	}
	mem, err := memory.NewStore(filepath.Join(dir, "memory.json"), logger)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	jrn, err := journal.New(filepath.Join(dir, "logs.json"), logger)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	t.Cleanup(func() { jrn.Close() })

	provider := inference.NewMock()
	sel, err := inference.NewSelector(provider, nil)
	if err != nil {
		t.Fatalf("selector: %v", err)
	}
	sel.SetLabels("gemini", "ollama")

	speech := tts.NewMock()
	srv := NewServer(Config{
		Port:     "0",
		Chat:     chat.NewService(sel, st, mem, jrn, logger),
		Speech:   speech,
		Settings: st,
		Memory:   mem,
		Journal:  jrn,
		Logger:   logger,
	})
	t.Cleanup(func() { srv.Shutdown() })

	return &testServer{srv: srv, provider: provider, speech: speech}
}

func (ts *testServer) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, path, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestChatEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.provider.ChatFunc = func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
		return &inference.ChatResponse{
			Message: inference.NewAssistantMessage("Hello!"),
			Model:   "gemini-2.0-flash",
			Usage:   inference.Usage{TotalTokens: 12},
		}, nil
	}

	resp := ts.request(t, "POST", "/api/chat", map[string]string{"message": "hi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body := decode[chat.Response](t, resp)
	if body.Content != "Hello!" || body.Role != "assistant" {
		t.Errorf("Unexpected response: %+v", body)
	}
	if body.Provider != "gemini" || body.Model != "gemini-2.0-flash" {
		t.Errorf("Unexpected provider info: %+v", body)
	}
	if body.Intent == nil {
		t.Error("Response should carry an intent")
	}
}

func TestChatEndpointValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, "POST", "/api/chat", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestChatEndpointProvidersDown(t *testing.T) {
	ts := newTestServer(t)

	primary := inference.WithError(errors.New("down"))
	primary.HealthFunc = func(ctx context.Context) error { return nil }
	secondary := inference.WithError(errors.New("also down"))
	sel, _ := inference.NewSelector(primary, secondary)

	dir := t.TempDir()
	st, _ := settings.NewStore(filepath.Join(dir, "settings.json"), slog.Default())
	mem, _ := memory.NewStore(filepath.Join(dir, "memory.json"), slog.Default())
	ts.srv.chat = chat.NewService(sel, st, mem, nil, slog.Default())

	resp := ts.request(t, "POST", "/api/chat", map[string]string{"message": "hi"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when all providers fail, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestChatStreamEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.provider.StreamFunc = func(ctx context.Context, req *inference.ChatRequest) (inference.Stream, error) {
		return inference.NewMockStream("One sentence. And ", "the rest"), nil
	}

	resp := ts.request(t, "POST", "/api/chat/stream", map[string]string{"message": "hi"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Expected SSE content type, got %q", ct)
	}

	var events []chat.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var evt chat.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
			t.Fatalf("bad event line %q: %v", line, err)
		}
		events = append(events, evt)
	}

	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d: %+v", len(events), events)
	}
	if events[0].Type != "chunk" || events[0].Content != "One sentence." {
		t.Errorf("Unexpected first event: %+v", events[0])
	}
	if events[1].Type != "chunk" || events[1].Content != "And the rest" {
		t.Errorf("Unexpected second event: %+v", events[1])
	}
	if events[2].Type != "done" || events[2].FullResponse != "One sentence. And the rest" {
		t.Errorf("Unexpected done event: %+v", events[2])
	}
}

func TestChatStreamValidation(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []any{
		map[string]string{},
		map[string]any{"message": "hi", "messages": []map[string]string{{"role": "user", "content": "hi"}}},
	} {
		resp := ts.request(t, "POST", "/api/chat/stream", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400 before any streaming, got %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/event-stream") {
			t.Error("Malformed requests must not commit SSE headers")
		}
		resp.Body.Close()
	}
}

func TestIntentEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, "POST", "/api/chat/intent", map[string]string{"message": "open chrome"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	intent := decode[inference.Intent](t, resp)
	if intent.Action != inference.ActionOpenApp || intent.Target != "chrome" {
		t.Errorf("Unexpected intent: %+v", intent)
	}

	resp = ts.request(t, "POST", "/api/chat/intent", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing message, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestChatHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, "GET", "/api/chat/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	report := decode[chat.HealthReport](t, resp)
	if report.ActiveProvider != "gemini" {
		t.Errorf("Expected active gemini, got %q", report.ActiveProvider)
	}
	if !report.FallbackEnabled {
		t.Error("Fallback should be reported enabled")
	}
}

func TestSpeakEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, "POST", "/api/voice/speak", map[string]any{
		"text":  "Hello there.",
		"speed": 1.2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	result := decode[tts.Result](t, resp)
	if result.Format != "mp3" || result.Audio == "" {
		t.Errorf("Unexpected result: %+v", result)
	}
	if got := ts.speech.Synthesized(); len(got) != 1 || got[0] != "Hello there." {
		t.Errorf("Unexpected synthesis calls: %+v", got)
	}
}

func TestSpeakBroadcastsAudio(t *testing.T) {
	ts := newTestServer(t)
	go ts.srv.statusHub.Run()

	msgs, detach := ts.srv.statusHub.Subscribe(8)
	defer detach()

	resp := ts.request(t, "POST", "/api/voice/speak", map[string]string{"text": "Hi."})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-msgs:
			if msg.Kind != hub.KindAudio {
				continue
			}
			if len(msg.Data) == 0 {
				t.Error("Audio frame should carry the synthesized payload")
			}
			return
		case <-deadline:
			t.Fatal("No audio frame reached the status hub")
		}
	}
}

func TestSpeakBrowserFallback(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.speech = nil

	resp := ts.request(t, "POST", "/api/voice/speak", map[string]string{"text": "Hi."})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body := decode[map[string]any](t, resp)
	if body["format"] != "browser-tts" {
		t.Errorf("Expected browser-tts fallback, got %+v", body)
	}
	if body["text"] != "Hi." {
		t.Errorf("Fallback should echo the text, got %+v", body)
	}
}

func TestSpeakValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, "POST", "/api/voice/speak", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing text, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSettingsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, "GET", "/api/settings?userId=alice", nil)
	prefs := decode[settings.Settings](t, resp)
	if prefs.VoiceTone != "friendly" {
		t.Errorf("Expected default tone, got %q", prefs.VoiceTone)
	}

	resp = ts.request(t, "PUT", "/api/settings?userId=alice", map[string]any{"voiceTone": "calm"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	updated := decode[settings.Settings](t, resp)
	if updated.VoiceTone != "calm" {
		t.Errorf("Expected calm, got %q", updated.VoiceTone)
	}

	resp = ts.request(t, "POST", "/api/settings/reset?userId=alice", nil)
	reset := decode[settings.Settings](t, resp)
	if reset.VoiceTone != "friendly" {
		t.Errorf("Expected reset to defaults, got %q", reset.VoiceTone)
	}
}

func TestMemoryEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, "POST", "/api/memory?userId=alice", map[string]string{
		"content":  "likes tea",
		"category": "preference",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	entry := decode[memory.Entry](t, resp)
	if entry.ID == "" || entry.Content != "likes tea" {
		t.Errorf("Unexpected entry: %+v", entry)
	}

	resp = ts.request(t, "GET", "/api/memory?userId=alice", nil)
	entries := decode[[]memory.Entry](t, resp)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	resp = ts.request(t, "PUT", "/api/memory/"+entry.ID+"?userId=alice", map[string]string{
		"content": "prefers coffee now",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = ts.request(t, "DELETE", "/api/memory/"+entry.ID+"?userId=alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = ts.request(t, "DELETE", "/api/memory/no-such-id?userId=alice", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown entry, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	// Generate one interaction so the journal has an entry
	resp := ts.request(t, "POST", "/api/chat", map[string]string{"message": "hi"})
	resp.Body.Close()
	ts.srv.journal.Close()

	resp = ts.request(t, "GET", "/api/logs", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	entries := decode[[]journal.Entry](t, resp)
	if len(entries) != 1 || entries[0].Type != "chat" {
		t.Errorf("Unexpected entries: %+v", entries)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.request(t, "GET", "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["status"] != "ok" {
		t.Errorf("Unexpected health body: %+v", body)
	}
}
