package web

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/SaiPranay04/Vezora-AI/pkg/chat"
	"github.com/SaiPranay04/Vezora-AI/pkg/inference"
	"github.com/SaiPranay04/Vezora-AI/pkg/journal"
	"github.com/SaiPranay04/Vezora-AI/pkg/memory"
	"github.com/SaiPranay04/Vezora-AI/pkg/tts"
)

// handleHealth is the basic liveness probe.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleChat answers a chat turn in one response.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chat.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	resp, err := s.chat.Respond(c.Context(), &req)
	if err != nil {
		return s.chatError(c, err)
	}

	s.notify(statusEvent{Type: "chat", UserID: req.UserID, Provider: resp.Provider})
	return c.JSON(resp)
}

// handleChatStream answers a chat turn as server-sent events. Each
// complete sentence becomes a chunk event; the stream ends with a done
// event carrying the full reply, or an error event.
func (s *Server) handleChatStream(c *fiber.Ctx) error {
	var req chat.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	// Reject malformed requests while a plain 400 is still possible;
	// once streaming starts, failures can only arrive as error events.
	if err := chat.ValidateRequest(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	s.notify(statusEvent{Type: "stream_start", UserID: req.UserID})

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// The fiber handler has returned by the time this runs, so the
		// request context is gone. A failed flush means the client left.
		err := s.chat.Stream(context.Background(), &req, func(evt chat.Event) error {
			return writeSSE(w, evt)
		})
		if err != nil {
			s.logger.Error("stream aborted", "error", err)
			if !isClientGone(err) {
				writeSSE(w, chat.Event{Type: "error", Message: "failed to stream response"})
			}
		}
		s.notify(statusEvent{Type: "stream_end", UserID: req.UserID})
	}))

	return nil
}

// writeSSE encodes one event as an SSE data line and flushes it so the
// client sees each sentence as soon as it exists.
func writeSSE(w *bufio.Writer, evt chat.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if _, err := w.WriteString("data: " + string(data) + "\n\n"); err != nil {
		return err
	}
	return w.Flush()
}

// isClientGone reports whether the error came from writing to a closed
// connection rather than from the pipeline itself.
func isClientGone(err error) bool {
	var chainErr *inference.ChainError
	if errors.As(err, &chainErr) {
		return false
	}
	return errors.Is(err, fasthttp.ErrConnectionClosed) || errors.Is(err, context.Canceled)
}

// handleIntent classifies a message without generating a reply.
func (s *Server) handleIntent(c *fiber.Ctx) error {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	intent, err := s.chat.Intent(c.Context(), req.Message)
	if err != nil {
		return s.chatError(c, err)
	}
	return c.JSON(intent)
}

// handleChatHealth reports provider availability.
func (s *Server) handleChatHealth(c *fiber.Ctx) error {
	return c.JSON(s.chat.Health(c.Context()))
}

// chatError maps service errors to HTTP status codes.
func (s *Server) chatError(c *fiber.Ctx, err error) error {
	if errors.Is(err, chat.ErrBadRequest) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var chainErr *inference.ChainError
	if errors.As(err, &chainErr) || errors.Is(err, inference.ErrProviderUnavailable) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "No AI provider available. Start Ollama (ollama serve) or add GEMINI_API_KEY to .env",
		})
	}

	s.logger.Error("chat request failed", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "Failed to generate response",
		"details": err.Error(),
	})
}

// speakRequest is the voice synthesis request body.
type speakRequest struct {
	Text     string  `json:"text"`
	Voice    string  `json:"voice"`
	Speed    float64 `json:"speed"`
	Pitch    float64 `json:"pitch"`
	Language string  `json:"language"`
}

// handleSpeak synthesizes speech for a text. Without a configured
// backend the client is told to use browser-side synthesis.
func (s *Server) handleSpeak(c *fiber.Ctx) error {
	var req speakRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text is required"})
	}

	if s.speech == nil {
		return c.JSON(fiber.Map{
			"audio":    nil,
			"format":   "browser-tts",
			"text":     req.Text,
			"duration": tts.EstimateDuration(req.Text, req.Speed).Seconds(),
			"message":  "Use browser speech synthesis",
		})
	}

	result, err := s.speech.Synthesize(c.Context(), req.Text, tts.Options{
		Voice:    req.Voice,
		Speed:    req.Speed,
		Pitch:    req.Pitch,
		Language: req.Language,
	})
	if err != nil {
		s.logger.Error("synthesis failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "TTS failed"})
	}

	// Mirror the audio to websocket listeners so dashboards can play
	// along with the requesting client.
	if audio, decErr := base64.StdEncoding.DecodeString(result.Audio); decErr == nil {
		s.statusHub.BroadcastAudio(audio)
	}

	s.notify(statusEvent{Type: "speak", Detail: req.Text})
	return c.JSON(result)
}

// handleVoices lists available synthesis voices.
func (s *Server) handleVoices(c *fiber.Ctx) error {
	if s.speech == nil {
		return c.JSON([]tts.Voice{
			{Name: "default", LanguageCodes: []string{"en-US"}, Gender: "NEUTRAL"},
		})
	}

	voices, err := s.speech.Voices(c.Context())
	if err != nil {
		s.logger.Error("failed to list voices", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list voices"})
	}
	return c.JSON(voices)
}

func userID(c *fiber.Ctx) string {
	return c.Query("userId", "default")
}

// handleGetSettings returns the user's settings.
func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	return c.JSON(s.settings.Get(userID(c)))
}

// handleUpdateSettings applies a partial settings patch.
func (s *Server) handleUpdateSettings(c *fiber.Ctx) error {
	updated, err := s.settings.Update(userID(c), c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	s.notify(statusEvent{Type: "settings", UserID: userID(c)})
	return c.JSON(updated)
}

// handleResetSettings restores defaults.
func (s *Server) handleResetSettings(c *fiber.Ctx) error {
	reset, err := s.settings.Reset(userID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(reset)
}

// handleListMemory returns the user's memory entries.
func (s *Server) handleListMemory(c *fiber.Ctx) error {
	return c.JSON(s.memory.List(userID(c)))
}

// memoryRequest is the add/update body.
type memoryRequest struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

// handleAddMemory stores a new entry.
func (s *Server) handleAddMemory(c *fiber.Ctx) error {
	var req memoryRequest
	if err := c.BodyParser(&req); err != nil || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content is required"})
	}

	entry, err := s.memory.Add(userID(c), req.Content, req.Category)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// handleUpdateMemory replaces an entry's content.
func (s *Server) handleUpdateMemory(c *fiber.Ctx) error {
	var req memoryRequest
	if err := c.BodyParser(&req); err != nil || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content is required"})
	}

	entry, err := s.memory.Update(userID(c), c.Params("id"), req.Content)
	if err != nil {
		return s.memoryError(c, err)
	}
	return c.JSON(entry)
}

// handleDeleteMemory removes one entry.
func (s *Server) handleDeleteMemory(c *fiber.Ctx) error {
	if err := s.memory.Delete(userID(c), c.Params("id")); err != nil {
		return s.memoryError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// handleClearMemory removes all of the user's entries.
func (s *Server) handleClearMemory(c *fiber.Ctx) error {
	if err := s.memory.Clear(userID(c)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"cleared": true})
}

func (s *Server) memoryError(c *fiber.Ctx, err error) error {
	if errors.Is(err, memory.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "memory entry not found"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

// handleListLogs returns recent interaction journal entries.
func (s *Server) handleListLogs(c *fiber.Ctx) error {
	entries := s.journal.List(userID(c), journal.ListOptions{
		Type:   c.Query("type"),
		Offset: c.QueryInt("offset", 0),
		Limit:  c.QueryInt("limit", 100),
	})
	if entries == nil {
		entries = []journal.Entry{}
	}
	return c.JSON(entries)
}
